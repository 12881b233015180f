// Package events provides the status notification surface: a small
// publish/subscribe bus of {name, data} pairs consumed by the status server
// and any other subscriber, without depending on subscriber behavior.
package events

import (
	"log/slog"
	"sync"
)

// Event names published by the pipeline.
const (
	ConnectionState    = "connection_state"
	Transcription      = "transcription"
	KeywordMatched     = "keyword_matched"
	TriggerFired       = "trigger_fired"
	TriggerFailed      = "trigger_failed"
	CooldownSuppressed = "cooldown_suppressed"
	BufferOverflow     = "buffer_overflow"
	CatalogSynced      = "catalog_synced"
)

// Event is a named status payload.
type Event struct {
	Name string `json:"name"`
	Data any    `json:"data"`
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// that falls behind loses events, counted per subscription.
type Bus struct {
	mu   sync.RWMutex
	subs map[*Subscription]struct{}
}

// Subscription is one subscriber's event feed.
type Subscription struct {
	ch      chan Event
	bus     *Bus
	once    sync.Once
	dropped int
	mu      sync.Mutex
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[*Subscription]struct{})}
}

// Publish delivers the event to every current subscriber without blocking.
func (b *Bus) Publish(name string, data any) {
	ev := Event{Name: name, Data: data}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for sub := range b.subs {
		select {
		case sub.ch <- ev:
		default:
			sub.mu.Lock()
			sub.dropped++
			n := sub.dropped
			sub.mu.Unlock()
			if n == 1 || n%100 == 0 {
				slog.Debug("slow event subscriber, dropping", "event", name, "dropped", n)
			}
		}
	}
}

// Subscribe registers a new subscriber with the given channel buffer.
func (b *Bus) Subscribe(buffer int) *Subscription {
	if buffer <= 0 {
		buffer = 16
	}
	sub := &Subscription{ch: make(chan Event, buffer), bus: b}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	return sub
}

// Events returns the subscriber's feed.
func (s *Subscription) Events() <-chan Event { return s.ch }

// Dropped returns how many events this subscriber has missed.
func (s *Subscription) Dropped() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dropped
}

// Close deregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		close(s.ch)
	})
}
