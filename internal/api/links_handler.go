package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
)

func (s *Server) handleAutoLink(w http.ResponseWriter, r *http.Request) {
	var req entityRefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	orgID, ref, err := req.resolve()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	source, err := s.catalog.Get(r.Context(), orgID, ref)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	common.Logger().Info("api: auto-link requested", "org", orgID, "entity", ref.String())
	if err := s.linker.LinkContent(r.Context(), source); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	links, err := s.catalog.LinksFor(r.Context(), orgID, ref, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"links": links})
}

func (s *Server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	orgID, ref, err := queryRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	links, err := s.catalog.LinksFor(r.Context(), orgID, ref, queryInt(r, "limit", 0))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"links": links})
}
