package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"

	"github.com/pointflow/pointflow/internal/realtime"
	"github.com/pointflow/pointflow/internal/scales"
	"github.com/pointflow/pointflow/internal/sessions"
)

// NewRouter creates the Chi router with all routes and middleware.
func NewRouter(
	store *sessions.Store,
	catalog *scales.Catalog,
	hub *realtime.Hub,
	policy OriginPolicy,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware (runs on ALL routes including /health)
	r.Use(CORS(policy))
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	// Handlers
	healthH := NewHealthHandler(store, hub)
	scaleH := NewScaleHandler(catalog)
	sessionH := NewSessionHandler(store)
	wsH := NewWSHandler(hub, policy, logger)

	r.Get("/health", healthH.Health)
	r.Get("/ws", wsH.Upgrade)

	r.Route("/api", func(r chi.Router) {
		r.Get("/scales", scaleH.List)
		r.Get("/sessions/{code}", sessionH.Preview)
	})

	return r
}
