package events

import (
	"log/slog"
	"sync"

	"github.com/xrmultiplayer/sessionflow/internal/dependencies/clock"
	"github.com/xrmultiplayer/sessionflow/internal/model"
)

const (
	// Buffer size for subscriber channels
	subscriberBufferSize = 64
)

// Bus fans session lifecycle events out to subscribers. Publishing never
// blocks: a subscriber that falls behind has events dropped rather than
// stalling the state machine.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan model.Event]bool
	closed      bool
	clock       clock.Clock
	logger      *slog.Logger
}

// NewBus creates an event bus with no subscribers
func NewBus(clk clock.Clock, logger *slog.Logger) *Bus {
	return &Bus{
		subscribers: make(map[chan model.Event]bool),
		clock:       clk,
		logger:      logger.With(slog.String("component", "events")),
	}
}

// Subscribe registers a new subscriber and returns its channel. The channel
// is closed when the subscriber unsubscribes or the bus closes.
func (b *Bus) Subscribe() chan model.Event {
	ch := make(chan model.Event, subscriberBufferSize)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subscribers[ch] = true
	b.logger.Debug("subscriber registered", slog.Int("total_subscribers", len(b.subscribers)))
	return ch
}

// Unsubscribe removes a subscriber and closes its channel
func (b *Bus) Unsubscribe(ch chan model.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subscribers[ch]; ok {
		delete(b.subscribers, ch)
		close(ch)
	}
}

// Publish delivers an event to every subscriber. The event's timestamp is
// stamped here if unset.
func (b *Bus) Publish(event model.Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = b.clock.Now()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}
	dropped := 0
	for ch := range b.subscribers {
		select {
		case ch <- event:
		default:
			dropped++
		}
	}
	if dropped > 0 {
		b.logger.Warn("event dropped - subscriber buffer full",
			slog.String("event_type", string(event.Type)),
			slog.Int("dropped", dropped))
	}
}

// Close shuts down the bus and closes all subscriber channels
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subscribers {
		close(ch)
		delete(b.subscribers, ch)
	}
	b.logger.Info("event bus closed")
}

// SubscriberCount returns the number of active subscribers
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
