// Package http exposes the search service over HTTP.
package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/logging"
	"github.com/turtacn/molsearch/internal/infrastructure/monitoring/prometheus"
	"github.com/turtacn/molsearch/internal/interfaces/http/handlers"
	"github.com/turtacn/molsearch/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies of the
// route tree.
type RouterConfig struct {
	SearchHandler   *handlers.SearchHandler
	MoleculeHandler *handlers.MoleculeHandler
	HealthHandler   *handlers.HealthHandler

	Logger        logging.Logger
	Metrics       *prometheus.SearchMetrics
	MetricsPath   string
	MetricsServer http.Handler
}

// NewRouter builds the route tree.
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.Metrics != nil {
		r.Use(middleware.Metrics(cfg.Metrics))
	}

	if cfg.HealthHandler != nil {
		r.Get("/healthz", cfg.HealthHandler.Liveness)
		r.Get("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsServer != nil {
		path := cfg.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Handle(path, cfg.MetricsServer)
	}

	r.Route("/api/v1", func(api chi.Router) {
		registerMoleculeRoutes(api, cfg.MoleculeHandler)
		registerSearchRoutes(api, cfg.SearchHandler)
	})
	return r
}

// registerMoleculeRoutes mounts document writes and index maintenance.
func registerMoleculeRoutes(r chi.Router, h *handlers.MoleculeHandler) {
	if h == nil {
		return
	}
	r.Route("/molecules", func(mr chi.Router) {
		mr.Post("/", h.Create)
		mr.Post("/bulk-delete", h.BulkDelete)
		mr.Delete("/{id}", h.Delete)
	})
	r.Route("/index", func(ir chi.Router) {
		ir.Post("/commit", h.Commit)
		ir.Post("/recount", h.Recount)
		ir.Get("/codebooks", h.Codebooks)
	})
}

// registerSearchRoutes mounts the streaming query endpoints.
func registerSearchRoutes(r chi.Router, h *handlers.SearchHandler) {
	if h == nil {
		return
	}
	r.Route("/search", func(sr chi.Router) {
		sr.Post("/substructure", h.Substructure)
		sr.Post("/similarity", h.Similarity)
	})
}
