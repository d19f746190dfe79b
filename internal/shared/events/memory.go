package events

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
)

// NoopBus is an in-process bus used when no event store is configured.
// Publishes are delivered synchronously to matching subscribers.
type NoopBus struct {
	mu   sync.RWMutex
	subs []memorySub
	log  zerolog.Logger
}

type memorySub struct {
	pattern string
	handler Handler
}

// NewNoopBus creates an in-process event bus
func NewNoopBus(log zerolog.Logger) *NoopBus {
	return &NoopBus{log: log}
}

// Publish delivers the event to matching subscribers in-process
func (b *NoopBus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	subs := make([]memorySub, len(b.subs))
	copy(subs, b.subs)
	b.mu.RUnlock()

	for _, s := range subs {
		if !matchesPattern(event.Type, s.pattern) {
			continue
		}
		if err := s.handler(ctx, event); err != nil {
			b.log.Error().Err(err).Str("event_id", event.ID).Str("event_type", event.Type).Msg("Event handler failed")
		}
	}
	return nil
}

// Subscribe registers a handler for events matching the pattern
func (b *NoopBus) Subscribe(ctx context.Context, pattern string, consumerName string, handler Handler) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = append(b.subs, memorySub{pattern: pattern, handler: handler})
	return nil
}

// Close is a no-op
func (b *NoopBus) Close() {}

// Health always reports healthy
func (b *NoopBus) Health() error {
	return nil
}
