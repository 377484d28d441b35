// Package events provides the in-process publish/subscribe bus used to fan out
// job lifecycle and progress events to the HTTP streaming endpoints.
package events

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// EventType identifies a kind of system event
type EventType string

const (
	JobQueued    EventType = "JOB_QUEUED"
	JobStarted   EventType = "JOB_STARTED"
	JobProgress  EventType = "JOB_PROGRESS"
	JobCompleted EventType = "JOB_COMPLETED"
	JobFailed    EventType = "JOB_FAILED"
	JobCancelled EventType = "JOB_CANCELLED"
	JobTimedOut  EventType = "JOB_TIMED_OUT"
	JobReaped    EventType = "JOB_REAPED"

	ScreenCached   EventType = "SCREEN_CACHED"
	BackupFinished EventType = "BACKUP_FINISHED"
	ErrorOccurred  EventType = "ERROR_OCCURRED"
)

// Event is a single published event with its payload
type Event struct {
	Type      EventType `json:"type"`
	Module    string    `json:"module"`
	Timestamp time.Time `json:"timestamp"`
	Data      EventData `json:"data,omitempty"`
}

// Handler receives published events
type Handler func(event *Event)

// Bus is a simple synchronous pub/sub bus. Handlers run on the publishing
// goroutine, so they must not block.
type Bus struct {
	handlers map[EventType][]Handler
	all      []Handler
	log      zerolog.Logger
	mu       sync.RWMutex
}

// NewBus creates a new event bus
func NewBus(log zerolog.Logger) *Bus {
	return &Bus{
		handlers: make(map[EventType][]Handler),
		log:      log.With().Str("component", "event_bus").Logger(),
	}
}

// Subscribe registers a handler for a specific event type
func (b *Bus) Subscribe(eventType EventType, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// SubscribeAll registers a handler that receives every event
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.all = append(b.all, handler)
}

// Emit publishes an event to all matching subscribers
func (b *Bus) Emit(eventType EventType, module string, data EventData) {
	event := &Event{
		Type:      eventType,
		Module:    module,
		Timestamp: time.Now(),
		Data:      data,
	}

	b.mu.RLock()
	typed := b.handlers[eventType]
	all := b.all
	b.mu.RUnlock()

	b.log.Debug().
		Str("event_type", string(eventType)).
		Str("module", module).
		Msg("Event emitted")

	for _, h := range typed {
		h(event)
	}
	for _, h := range all {
		h(event)
	}
}

// EmitError publishes an error event
func (b *Bus) EmitError(module string, err error) {
	b.Emit(ErrorOccurred, module, &ErrorData{Error: err.Error()})
}
