package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// banListJSON is the response shape for GET /api/bans.
type banListJSON struct {
	Banned []string `json:"banned"`
}

// handleListBans returns all banned sender IDs.
func (g *Gateway) handleListBans() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}
		ids := g.relay.Bans().IDs()
		if ids == nil {
			ids = []string{}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(banListJSON{Banned: ids})
	}
}

// handleBan adds a sender ID to the ban list.
func (g *Gateway) handleBan() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing sender id", http.StatusBadRequest)
			return
		}
		changed := g.relay.Bans().Ban(id)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"changed": changed})
	}
}

// handleUnban removes a sender ID from the ban list.
func (g *Gateway) handleUnban() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}
		id := chi.URLParam(r, "id")
		if id == "" {
			http.Error(w, "missing sender id", http.StatusBadRequest)
			return
		}
		changed := g.relay.Bans().Unban(id)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]bool{"changed": changed})
	}
}

// handleReloadPrompts re-reads the prompt template from disk.
func (g *Gateway) handleReloadPrompts() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}
		if err := g.relay.ReloadPrompts(); err != nil {
			g.logger.Error("prompt reload failed", "error", err)
			http.Error(w, "reload failed", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}
}
