package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"

	"github.com/davitacols/recall-sub001/internal/entity"
	"github.com/davitacols/recall-sub001/internal/panel"
	"github.com/davitacols/recall-sub001/internal/search"
	"github.com/davitacols/recall-sub001/internal/store"
)

type staticProvider struct{ keywords []string }

func (s *staticProvider) Keywords(ctx context.Context, title, body string) ([]string, error) {
	return s.keywords, nil
}

func (s *staticProvider) Name() string { return "static" }

func newTestServer(t *testing.T, provider *staticProvider) (*Server, *store.Catalog) {
	t.Helper()
	catalog, err := store.Open(filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("open catalog: %v", err)
	}
	t.Cleanup(func() { _ = catalog.Close() })
	if provider == nil {
		provider = &staticProvider{}
	}
	srv, err := NewServer(catalog, provider)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	return srv, catalog
}

func postJSON(t *testing.T, srv *Server, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()
	body, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func getPath(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := getPath(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status: %d", rec.Code)
	}
}

func TestUpsertEntityBackfillsKeywords(t *testing.T) {
	srv, catalog := newTestServer(t, &staticProvider{keywords: []string{"queue", "broker"}})
	rec := postJSON(t, srv, "/v1/entities", map[string]interface{}{
		"id": "d1", "organization_id": "org", "type": "decision",
		"title": "Adopt message queue", "body": "Move async work onto a broker.",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert status: %d body %s", rec.Code, rec.Body.String())
	}
	got, err := catalog.Get(context.Background(), "org", entity.Ref{Type: entity.TypeDecision, ID: "d1"})
	if err != nil {
		t.Fatalf("get entity: %v", err)
	}
	if len(got.Keywords) != 2 || got.Keywords[0] != "queue" {
		t.Fatalf("keywords not backfilled: %v", got.Keywords)
	}
}

func TestUpsertEntityRejectsUnknownType(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := postJSON(t, srv, "/v1/entities", map[string]interface{}{
		"id": "x1", "organization_id": "org", "type": "epic", "title": "Nope",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestSearchEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	seed := []map[string]interface{}{
		{"id": "d1", "organization_id": "org", "type": "decision",
			"title": "Adopt token authentication", "body": "JWT everywhere.",
			"keywords": []string{"auth", "jwt"}},
		{"id": "c1", "organization_id": "org", "type": "conversation",
			"title": "Lunch thread", "body": "Tacos."},
	}
	for _, payload := range seed {
		if rec := postJSON(t, srv, "/v1/entities", payload); rec.Code != http.StatusOK {
			t.Fatalf("seed failed: %d %s", rec.Code, rec.Body.String())
		}
	}

	rec := getPath(t, srv, "/v1/search?org_id=org&q=authentication")
	if rec.Code != http.StatusOK {
		t.Fatalf("search status: %d body %s", rec.Code, rec.Body.String())
	}
	var resp search.Response
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Total != 1 || resp.Results[0].ID != "d1" {
		t.Fatalf("unexpected results: %+v", resp)
	}

	if rec := getPath(t, srv, "/v1/search?org_id=org&q=a"); rec.Code != http.StatusBadRequest {
		t.Fatalf("short query not rejected: %d", rec.Code)
	}
	if rec := getPath(t, srv, "/v1/search?q=authentication"); rec.Code != http.StatusBadRequest {
		t.Fatalf("missing org_id not rejected: %d", rec.Code)
	}
	if rec := getPath(t, srv, "/v1/search?org_id=org&q=auth&types=epic"); rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown type filter not rejected: %d", rec.Code)
	}
}

func TestAutoLinkAndListLinks(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	seed := []map[string]interface{}{
		{"id": "d1", "organization_id": "org", "type": "decision",
			"title": "Adopt queueing", "keywords": []string{"queue"}},
		{"id": "t1", "organization_id": "org", "type": "task",
			"title": "Provision broker", "keywords": []string{"queue", "broker"}},
	}
	for _, payload := range seed {
		if rec := postJSON(t, srv, "/v1/entities", payload); rec.Code != http.StatusOK {
			t.Fatalf("seed failed: %d", rec.Code)
		}
	}
	rec := postJSON(t, srv, "/v1/links/auto", map[string]string{
		"organization_id": "org", "type": "decision", "id": "d1",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("auto-link status: %d body %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Links []json.RawMessage `json:"links"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Links) != 1 {
		t.Fatalf("expected one derived link, got %d", len(payload.Links))
	}

	listed := getPath(t, srv, "/v1/links?org_id=org&type=task&id=t1")
	if listed.Code != http.StatusOK {
		t.Fatalf("list links status: %d", listed.Code)
	}
	if err := json.Unmarshal(listed.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode listing: %v", err)
	}
	if len(payload.Links) != 1 {
		t.Fatalf("reverse listing missed the edge: %d", len(payload.Links))
	}
}

func TestContextEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := postJSON(t, srv, "/v1/entities", map[string]interface{}{
		"id": "d1", "organization_id": "org", "type": "decision",
		"title": "Rewrite billing", "priority": "high",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", rec.Code)
	}
	rec := getPath(t, srv, "/v1/context?org_id=org&type=decision&id=d1")
	if rec.Code != http.StatusOK {
		t.Fatalf("context status: %d body %s", rec.Code, rec.Body.String())
	}
	var p panel.Panel
	if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
		t.Fatalf("decode panel: %v", err)
	}
	if p.Entity.ID != "d1" || p.LastComputed.IsZero() {
		t.Fatalf("unexpected panel: %+v", p)
	}
	if len(p.RiskIndicators) == 0 {
		t.Fatalf("expected risk indicators for an unjustified high-priority decision")
	}

	if rec := getPath(t, srv, "/v1/context?org_id=org&type=decision&id=missing"); rec.Code != http.StatusNotFound {
		t.Fatalf("missing entity status: %d", rec.Code)
	}

	recompute := postJSON(t, srv, "/v1/context/recompute", map[string]string{
		"organization_id": "org", "type": "decision", "id": "d1",
	})
	if recompute.Code != http.StatusOK {
		t.Fatalf("recompute status: %d", recompute.Code)
	}
}

func TestSuggestionsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := postJSON(t, srv, "/v1/entities", map[string]interface{}{
		"id": "s1", "organization_id": "org", "type": "sprint",
		"title": "Auth hardening sprint",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", rec.Code)
	}
	rec := getPath(t, srv, "/v1/suggestions?org_id=org&q="+url.QueryEscape("au"))
	if rec.Code != http.StatusOK {
		t.Fatalf("suggestions status: %d", rec.Code)
	}
	var payload struct {
		Suggestions []search.Suggestion `json:"suggestions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode suggestions: %v", err)
	}
	found := false
	for _, suggestion := range payload.Suggestions {
		if suggestion.Type == "sprint" && suggestion.Value == "s1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("sprint suggestion missing: %+v", payload.Suggestions)
	}
}

func TestAnalyticsEndpoints(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	if rec := postJSON(t, srv, "/v1/entities", map[string]interface{}{
		"id": "d1", "organization_id": "org", "type": "decision",
		"title": "Adopt caching", "body": "Cache the hot path.",
	}); rec.Code != http.StatusOK {
		t.Fatalf("seed failed: %d", rec.Code)
	}
	for i := 0; i < 3; i++ {
		if rec := getPath(t, srv, "/v1/search?org_id=org&q=caching"); rec.Code != http.StatusOK {
			t.Fatalf("search %d status: %d", i, rec.Code)
		}
	}

	rec := getPath(t, srv, "/v1/analytics/trending?org_id=org")
	if rec.Code != http.StatusOK {
		t.Fatalf("trending status: %d", rec.Code)
	}
	var trendingPayload struct {
		Trending []search.TrendingQuery `json:"trending"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &trendingPayload); err != nil {
		t.Fatalf("decode trending: %v", err)
	}
	if len(trendingPayload.Trending) != 1 || trendingPayload.Trending[0].Count != 3 {
		t.Fatalf("unexpected trending: %+v", trendingPayload.Trending)
	}

	totalsRec := getPath(t, srv, "/v1/analytics/totals?org_id=org")
	if totalsRec.Code != http.StatusOK {
		t.Fatalf("totals status: %d", totalsRec.Code)
	}
	var totals search.Totals
	if err := json.Unmarshal(totalsRec.Body.Bytes(), &totals); err != nil {
		t.Fatalf("decode totals: %v", err)
	}
	if totals.TotalSearches != 3 || totals.DistinctQueries != 1 {
		t.Fatalf("unexpected totals: %+v", totals)
	}
}

func TestUpsertUserEndpoint(t *testing.T) {
	srv, catalog := newTestServer(t, nil)
	rec := postJSON(t, srv, "/v1/users", map[string]string{"id": "u1", "name": "Imani"})
	if rec.Code != http.StatusOK {
		t.Fatalf("upsert user status: %d", rec.Code)
	}
	name, err := catalog.UserName(context.Background(), "u1")
	if err != nil || name != "Imani" {
		t.Fatalf("user not stored: %q %v", name, err)
	}
}

func TestLogsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)
	rec := getPath(t, srv, fmt.Sprintf("/v1/logs?limit=%d", 5))
	if rec.Code != http.StatusOK {
		t.Fatalf("logs status: %d", rec.Code)
	}
	var payload struct {
		Logs []map[string]interface{} `json:"logs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode logs: %v", err)
	}
	if len(payload.Logs) > 5 {
		t.Fatalf("limit not applied: %d entries", len(payload.Logs))
	}
}
