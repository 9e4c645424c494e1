package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Public.
	r.Get("/health", g.handleHealth())
	r.Handle("/metrics", promhttp.Handler())

	// Webhooks carry their own per-source HMAC validation.
	r.Post("/webhooks/{source}", g.dispatcher.ServeHTTP)

	// Admin endpoints require auth; they are not mounted at all when no
	// credentials are configured.
	if g.config.Auth.IsConfigured() {
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware(g.config.Auth))
			r.Get("/status", g.handleStatus())
			r.Get("/ws/events", g.handleEvents())
			r.Route("/api", func(r chi.Router) {
				r.Get("/bans", g.handleListBans())
				r.Put("/bans/{id}", g.handleBan())
				r.Delete("/bans/{id}", g.handleUnban())
				r.Post("/prompts/reload", g.handleReloadPrompts())
			})
		})
	}

	return r
}
