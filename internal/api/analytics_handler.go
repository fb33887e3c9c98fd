package api

import (
	"fmt"
	"net/http"
	"strings"
)

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing org_id parameter"))
		return
	}
	days := queryInt(r, "days", 0)
	limit := queryInt(r, "limit", 0)
	trending, err := s.engine.Trending(r.Context(), orgID, days, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"trending": trending})
}

func (s *Server) handleTotals(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing org_id parameter"))
		return
	}
	totals, err := s.engine.Analytics(r.Context(), orgID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, totals)
}
