/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for the admin frontend

ROUTE GROUPS:
  /api/enrollments     Commission computation trigger
  /api/quotes          Dry-run resolution
  /api/rates           Rate table
  /api/agents/*        Agent directory and history
  /api/commissions/*   Stats, status transitions, payouts
  /metrics             Prometheus scrape endpoint
  /healthz             Liveness (new store ping)

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new router with all routes configured. An empty
// allowedOrigins allows any origin.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
	}))

	r.Get("/healthz", h.Health)
	if h.Metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(h.Metrics.Registry, promhttp.HandlerOpts{}))
	}

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Post("/enrollments", h.ProcessEnrollment)
		r.Post("/quotes", h.Quote)
		r.Get("/rates", h.GetRates)

		// Agent routes
		r.Route("/agents", func(r chi.Router) {
			r.Get("/", h.ListAgents)
			r.Post("/", h.CreateAgent)
			r.Get("/{id}", h.GetAgent)
			r.Get("/{id}/commissions", h.GetAgentCommissions)
		})

		// Commission routes
		r.Route("/commissions", func(r chi.Router) {
			r.Get("/stats", h.GetCommissionStats)
			r.Post("/mark-paid", h.MarkCommissionsPaid)
			r.Post("/payouts", h.BatchUpdatePayout)
			r.Get("/{id}", h.GetCommission)
			r.Post("/{id}/status", h.UpdateCommissionStatus)
		})
	})

	return r
}
