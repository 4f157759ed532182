package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/event-seat-allocator/internal/auth"
)

// NewRouter builds the HTTP router. Every /events route requires a bearer token.
func NewRouter(h *EventHandler, manager *auth.Manager, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack
	r.Use(chimiddleware.Recoverer) // recover from panics, return 500
	r.Use(chimiddleware.RequestID) // attach request IDs
	r.Use(chimiddleware.RealIP)    // trust X-Forwarded-For
	r.Use(Logger(logger))          // structured access log
	r.Use(Metrics)                 // per-route latency
	r.Use(CORS)                    // permissive CORS

	r.Get("/health", HealthCheck)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/events", func(r chi.Router) {
		r.Use(Authenticate(manager))

		r.Post("/", h.CreateEvent)
		r.Get("/{id}", h.GetEvent)
		r.Patch("/{id}", h.UpdateEvent)
		r.Post("/{id}/cancel", h.CancelEvent)
		r.Post("/{id}/claim", h.ClaimSeat)
		r.Post("/{id}/leave", h.LeaveSeat)
		r.Get("/{id}/members", h.ListMembers)
		r.Post("/{id}/invites", h.CreateInvite)
		r.Post("/{id}/invites/accept", h.AcceptInvite)
	})

	return r
}
