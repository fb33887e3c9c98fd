package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	chi "github.com/go-chi/chi/v5"

	"github.com/davitacols/recall-sub001/internal/common"
	"github.com/davitacols/recall-sub001/internal/keywords"
	"github.com/davitacols/recall-sub001/internal/linker"
	"github.com/davitacols/recall-sub001/internal/panel"
	"github.com/davitacols/recall-sub001/internal/search"
	"github.com/davitacols/recall-sub001/internal/store"
)

// Server exposes the link graph, context panels, and retrieval engine over
// HTTP. All state lives in the catalog; the server itself is stateless.
type Server struct {
	router   chi.Router
	catalog  *store.Catalog
	engine   *search.Engine
	composer *panel.Composer
	linker   *linker.AutoLinker
	provider keywords.Provider
}

// NewServer wires the catalog and the domain services into a routed server.
func NewServer(catalog *store.Catalog, provider keywords.Provider) (*Server, error) {
	logger := common.Logger()
	if catalog == nil {
		return nil, fmt.Errorf("catalog required")
	}
	engine := search.NewEngine(search.DefaultConfig(), catalog, catalog, catalog)
	composer := panel.NewComposer(panel.DefaultConfig(), catalog, catalog, catalog, catalog, catalog, catalog)
	autoLinker := linker.New(linker.DefaultConfig(), catalog, catalog)
	providerName := "none"
	if provider != nil {
		providerName = provider.Name()
	}
	logger.Info("api: building server", "keywords_provider", providerName)
	srv := &Server{
		router:   chi.NewRouter(),
		catalog:  catalog,
		engine:   engine,
		composer: composer,
		linker:   autoLinker,
		provider: provider,
	}
	srv.routes()
	logger.Info("api: server ready")
	return srv, nil
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	logger := common.Logger()
	s.router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, r)
			logger.Debug("request", "method", r.Method, "path", r.URL.Path, "dur", time.Since(start), "remote", r.RemoteAddr)
		})
	})

	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	s.router.Get("/v1/search", s.handleSearch)
	s.router.Get("/v1/suggestions", s.handleSuggestions)
	s.router.Get("/v1/context", s.handleContext)
	s.router.Post("/v1/context/recompute", s.handleContextRecompute)
	s.router.Post("/v1/links/auto", s.handleAutoLink)
	s.router.Get("/v1/links", s.handleListLinks)
	s.router.Get("/v1/analytics/trending", s.handleTrending)
	s.router.Get("/v1/analytics/totals", s.handleTotals)
	s.router.Post("/v1/entities", s.handleUpsertEntity)
	s.router.Post("/v1/users", s.handleUpsertUser)
	s.router.Get("/v1/logs", s.handleLogs)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
