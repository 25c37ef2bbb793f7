// internal/api/router.go
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter wires the HTTP surface: health, the readings API, the
// websocket broadcast endpoint and prometheus metrics.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// The dashboard is served from another origin; allow all.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/", h.HealthCheck)
	r.Route("/api/readings", func(r chi.Router) {
		r.Post("/", h.CreateReading)
		r.Get("/", h.ListReadings)
		r.Get("/latest", h.LatestReading)
	})
	r.Get("/ws", h.HandleWebSocket)
	r.Handle("/metrics", promhttp.Handler())

	return r
}
