package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"fundrank/internal/middleware"
)

// RouterDeps carries everything the router mounts. Metrics and
// MetricsHandler may be nil when telemetry is not wired.
type RouterDeps struct {
	Results        *ResultsHandler
	Runs           *RunsHandler
	Health         *HealthHandler
	Metrics        *middleware.HTTPMetrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// NewRouter assembles the results server's route tree and middleware
// chain.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.StructuredLogger(deps.Logger))
	r.Use(deps.Metrics.Handler)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))

	r.Get("/healthz", deps.Health.Healthz)
	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/version", deps.Health.Version)
		r.Mount("/results", deps.Results.Routes())
		if deps.Runs != nil {
			r.Mount("/runs", deps.Runs.Routes())
		}
	})

	return r
}
