package gateway

import (
	"encoding/json"
	"net/http"
)

// handleStatus returns the relay's status snapshot for GET /status.
func (g *Gateway) handleStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(g.relay.Status())
	}
}
