package server

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"

	"github.com/aristath/screener/internal/events"
)

// WSHandler streams job progress events to clients over WebSocket.
// The watch-facing UI consumes this endpoint for live progress updates.
type WSHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewWSHandler creates a new WebSocket handler
func NewWSHandler(bus *events.Bus, log zerolog.Logger) *WSHandler {
	return &WSHandler{
		bus: bus,
		log: log.With().Str("component", "ws_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/ws requests
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Same-host UI; no origin allowlist needed
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket accept failed")
		return
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	eventChan := make(chan *events.Event, 100)
	h.bus.SubscribeAll(func(event *events.Event) {
		select {
		case eventChan <- event:
		default:
		}
	})

	h.log.Info().Msg("WebSocket client connected")

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			h.log.Info().Msg("WebSocket client disconnected")
			return
		case event := <-eventChan:
			writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, event)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Msg("WebSocket write failed, closing")
				return
			}
		}
	}
}
