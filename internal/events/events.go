// Package events is an in-process bus for staff actions on reservations,
// tables and hours.
package events

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tablebook/internal/model"
)

// Type names an event kind.
type Type string

const (
	ReservationCreated       Type = "reservation.created"
	ReservationStatusChanged Type = "reservation.status_changed"
	ReservationDeleted       Type = "reservation.deleted"
	TableChanged             Type = "table.changed"
	HoursChanged             Type = "hours.changed"
)

// Event is a staff action that already succeeded upstream.
type Event struct {
	ID          string
	Type        Type
	Actor       string
	SubjectID   string
	Reservation *model.Reservation
	Detail      string
	OccurredAt  time.Time
}

// Handler reacts to an event.
type Handler func(ctx context.Context, event Event) error

// Bus provides in-process pub/sub for events.
type Bus struct {
	subscribers map[Type][]Handler
	wildcard    []Handler
	mu          sync.RWMutex
	logger      zerolog.Logger
}

// NewBus constructs an empty bus. Handler failures are logged, not returned.
func NewBus(logger zerolog.Logger) *Bus {
	return &Bus{subscribers: make(map[Type][]Handler), logger: logger}
}

// Subscribe registers a handler for a given event type.
func (b *Bus) Subscribe(t Type, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers[t] = append(b.subscribers[t], handler)
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.wildcard = append(b.wildcard, handler)
}

// Publish runs the matching handlers synchronously, in subscription order,
// wildcard handlers first.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.wildcard)+len(b.subscribers[event.Type]))
	handlers = append(handlers, b.wildcard...)
	handlers = append(handlers, b.subscribers[event.Type]...)
	b.mu.RUnlock()

	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now()
	}

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Warn().Err(err).Str("event", string(event.Type)).Str("event_id", event.ID).Msg("event handler failed")
		}
	}
}
