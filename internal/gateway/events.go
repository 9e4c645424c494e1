package gateway

import (
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// eventBuffer is the per-subscriber channel depth. A subscriber that falls
// further behind than this misses events rather than stalling the relay.
const eventBuffer = 64

// handleEvents upgrades GET /ws/events to a WebSocket and streams relay
// events as JSON, one message per event, until the client disconnects.
func (g *Gateway) handleEvents() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if g.relay == nil {
			http.Error(w, "relay not available", http.StatusServiceUnavailable)
			return
		}

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			g.logger.Warn("websocket accept failed", "error", err)
			return
		}
		defer conn.CloseNow()

		events, cancel := g.relay.Events().Subscribe(eventBuffer)
		defer cancel()

		ctx := r.Context()
		for {
			select {
			case <-ctx.Done():
				_ = conn.Close(websocket.StatusNormalClosure, "")
				return
			case ev, ok := <-events:
				if !ok {
					_ = conn.Close(websocket.StatusGoingAway, "event stream closed")
					return
				}
				if err := wsjson.Write(ctx, conn, ev); err != nil {
					return
				}
			}
		}
	}
}
