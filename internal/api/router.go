package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rogeraird/rgo/internal/metrics"
)

// NewRouter creates and returns the main HTTP router. m may be nil.
func NewRouter(ctrl Controller, bus EventBus, m *metrics.Metrics) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)

	h := &Handlers{ctrl: ctrl, events: bus, metrics: m}

	// Operational endpoints. Nothing here is access controlled.
	r.Route("/priv", func(r chi.Router) {
		r.Get("/list", h.list)
		r.Get("/subscribe", h.sseEvents)
		r.Get("/healthz", h.healthz)
		r.Method(http.MethodGet, "/metrics", m.Handler())
	})

	// Fallback target for unknown keys; must win over /{key}.
	r.Get("/404", h.notFound)
	r.Get("/{key}", h.redirect)

	return r
}
