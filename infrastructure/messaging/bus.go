// Package messaging delivers domain events inside the process.
package messaging

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/yash-217/yash.fun/application/ports"
	"github.com/yash-217/yash.fun/domain/events"
)

// AllEvents subscribes a handler to every event type.
const AllEvents = "*"

// Handler reacts to one event. Errors are logged and do not stop delivery.
type Handler func(ctx context.Context, event events.DomainEvent) error

// MemoryBus fans events out to in-process subscribers and keeps a bounded
// history of what it delivered.
type MemoryBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
	history  []events.DomainEvent
	capacity int
	logger   *zap.Logger
}

var _ ports.EventBus = (*MemoryBus)(nil)

// NewMemoryBus creates a bus remembering up to capacity events.
func NewMemoryBus(capacity int, logger *zap.Logger) *MemoryBus {
	if capacity <= 0 {
		capacity = 256
	}
	return &MemoryBus{
		handlers: make(map[string][]Handler),
		capacity: capacity,
		logger:   logger,
	}
}

// Subscribe registers handler for eventType, or for everything with AllEvents.
func (b *MemoryBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers evts in order.
func (b *MemoryBus) Publish(ctx context.Context, evts []events.DomainEvent) error {
	for _, event := range evts {
		b.mu.Lock()
		b.history = append(b.history, event)
		if over := len(b.history) - b.capacity; over > 0 {
			b.history = append([]events.DomainEvent(nil), b.history[over:]...)
		}
		handlers := append([]Handler(nil), b.handlers[event.GetEventType()]...)
		handlers = append(handlers, b.handlers[AllEvents]...)
		b.mu.Unlock()

		for _, h := range handlers {
			if err := h(ctx, event); err != nil {
				b.logger.Warn("Event handler failed",
					zap.String("eventType", event.GetEventType()),
					zap.String("aggregateID", event.GetAggregateID()),
					zap.Error(err),
				)
			}
		}
	}
	return nil
}

// Recent returns up to n of the latest events, oldest first.
func (b *MemoryBus) Recent(n int) []events.DomainEvent {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if n <= 0 || n > len(b.history) {
		n = len(b.history)
	}
	return append([]events.DomainEvent(nil), b.history[len(b.history)-n:]...)
}

// NopBus drops every event.
type NopBus struct{}

var _ ports.EventBus = NopBus{}

func (NopBus) Publish(context.Context, []events.DomainEvent) error { return nil }

// MultiBus publishes to several buses and returns the first error.
type MultiBus []ports.EventBus

func (m MultiBus) Publish(ctx context.Context, evts []events.DomainEvent) error {
	var first error
	for _, bus := range m {
		if err := bus.Publish(ctx, evts); err != nil && first == nil {
			first = err
		}
	}
	return first
}
