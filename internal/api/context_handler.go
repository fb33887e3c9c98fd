package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/entity"
)

type entityRefRequest struct {
	OrganizationID string `json:"organization_id"`
	Type           string `json:"type"`
	ID             string `json:"id"`
}

func (req entityRefRequest) resolve() (string, entity.Ref, error) {
	orgID := strings.TrimSpace(req.OrganizationID)
	if orgID == "" {
		return "", entity.Ref{}, fmt.Errorf("organization_id required")
	}
	t, err := entity.ParseType(req.Type)
	if err != nil {
		return "", entity.Ref{}, err
	}
	ref := entity.Ref{Type: t, ID: strings.TrimSpace(req.ID)}
	if !ref.Valid() {
		return "", entity.Ref{}, fmt.Errorf("entity id required")
	}
	return orgID, ref, nil
}

func queryRef(r *http.Request) (string, entity.Ref, error) {
	return entityRefRequest{
		OrganizationID: r.URL.Query().Get("org_id"),
		Type:           r.URL.Query().Get("type"),
		ID:             r.URL.Query().Get("id"),
	}.resolve()
}

func (s *Server) handleContext(w http.ResponseWriter, r *http.Request) {
	orgID, ref, err := queryRef(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	p, err := s.composer.GetContext(r.Context(), orgID, ref)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleContextRecompute(w http.ResponseWriter, r *http.Request) {
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
	common.Logger().Info("api: forced panel recompute", "org", orgID, "entity", ref.String())
	p, err := s.composer.ComputeContext(r.Context(), orgID, ref)
	if err != nil {
		if errors.Is(err, entity.ErrNotFound) {
			writeError(w, http.StatusNotFound, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}
