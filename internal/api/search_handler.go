package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/search"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing org_id parameter"))
		return
	}
	req := search.Request{
		Query:          r.URL.Query().Get("q"),
		OrganizationID: orgID,
		UserID:         r.URL.Query().Get("user_id"),
		Limit:          queryInt(r, "limit", 0),
	}
	if raw := r.URL.Query().Get("types"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			t, err := entity.ParseType(part)
			if err != nil {
				writeError(w, http.StatusBadRequest, err)
				return
			}
			req.Types = append(req.Types, t)
		}
	}
	req.Filters.Status = r.URL.Query().Get("status")
	req.Filters.Priority = r.URL.Query().Get("priority")
	var err error
	if req.Filters.DateFrom, err = queryTime(r, "date_from"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Filters.DateTo, err = queryTime(r, "date_to"); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	logger.Info("api: search request", "org", orgID, "query", req.Query, "types", len(req.Types))
	resp, err := s.engine.Search(r.Context(), req)
	if err != nil {
		if errors.Is(err, search.ErrQueryTooShort) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSuggestions(w http.ResponseWriter, r *http.Request) {
	orgID := strings.TrimSpace(r.URL.Query().Get("org_id"))
	if orgID == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing org_id parameter"))
		return
	}
	partial := r.URL.Query().Get("q")
	limit := queryInt(r, "limit", 0)
	suggestions := s.engine.Suggestions(r.Context(), orgID, partial, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"suggestions": suggestions})
}

func queryInt(r *http.Request, key string, fallback int) int {
	if v := r.URL.Query().Get(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return fallback
}

// queryTime accepts RFC 3339 timestamps or bare dates.
func queryTime(r *http.Request, key string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return &parsed, nil
	}
	parsed, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", key, raw)
	}
	return &parsed, nil
}
