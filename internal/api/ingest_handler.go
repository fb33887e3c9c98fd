package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
)

type upsertEntityRequest struct {
	entity.Entity
	// AutoLink triggers relationship discovery immediately after the write
	// instead of waiting for the next explicit /v1/links/auto call.
	AutoLink bool `json:"auto_link,omitempty"`
}

// handleUpsertEntity mirrors an entity record into the catalog. Keywords are
// backfilled from the summarization provider when the caller supplies none;
// provider failures degrade to an un-keyworded entity rather than rejecting
// the write.
func (s *Server) handleUpsertEntity(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	var req upsertEntityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	e := req.Entity
	if _, err := entity.ParseType(string(e.Type)); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(e.ID) == "" || strings.TrimSpace(e.OrganizationID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("id and organization_id required"))
		return
	}
	if len(e.Keywords) == 0 && s.provider != nil {
		extracted, err := s.provider.Keywords(r.Context(), e.Title, e.Body)
		if err != nil {
			logger.Warn("api: keyword extraction degraded", "entity", e.Ref().String(), "error", err)
		} else {
			e.Keywords = extracted
		}
	}
	if err := s.catalog.UpsertEntity(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if req.AutoLink {
		if err := s.linker.LinkContent(r.Context(), e); err != nil {
			logger.Warn("api: post-ingest auto-link failed", "entity", e.Ref().String(), "error", err)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"entity":   e.Ref(),
		"keywords": e.Keywords,
	})
}

type upsertUserRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleUpsertUser(w http.ResponseWriter, r *http.Request) {
	var req upsertUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("user id required"))
		return
	}
	if err := s.catalog.UpsertUser(r.Context(), req.ID, req.Name); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": req.ID})
}
