package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/screener/internal/events"
)

// EventsStreamHandler streams system events to clients over Server-Sent
// Events. Clients may filter by event type via the ?types= query parameter.
type EventsStreamHandler struct {
	bus *events.Bus
	log zerolog.Logger
}

// NewEventsStreamHandler creates a new SSE handler
func NewEventsStreamHandler(bus *events.Bus, log zerolog.Logger) *EventsStreamHandler {
	return &EventsStreamHandler{
		bus: bus,
		log: log.With().Str("component", "events_stream").Logger(),
	}
}

// ServeHTTP handles GET /api/events/stream requests
func (h *EventsStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	var allowed map[events.EventType]bool
	if filter := r.URL.Query().Get("types"); filter != "" {
		allowed = make(map[events.EventType]bool)
		for _, t := range strings.Split(filter, ",") {
			allowed[events.EventType(strings.TrimSpace(t))] = true
		}
	}

	// Buffered so a slow client drops events instead of blocking emitters.
	eventChan := make(chan *events.Event, 100)
	h.bus.SubscribeAll(func(event *events.Event) {
		if allowed != nil && !allowed[event.Type] {
			return
		}
		select {
		case eventChan <- event:
		default:
			h.log.Warn().Str("event_type", string(event.Type)).Msg("Event channel full, dropping event")
		}
	})

	h.log.Info().Msg("Client connected to event stream")

	for {
		select {
		case <-r.Context().Done():
			h.log.Info().Msg("Client disconnected from event stream")
			return
		case event := <-eventChan:
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Type, payload)
			flusher.Flush()
		}
	}
}
