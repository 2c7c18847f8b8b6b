// Package hub implements the broadcast hub: it tracks the set of connected
// subscribers and fans the canonical control snapshot out to all of them on
// every accepted mutation, plus a keep-alive signal on a fixed cadence so
// intermediaries do not time out idle push connections.
//
// A broadcast never blocks on a single subscriber. Sends are non-blocking:
// a subscriber whose buffer is full is evicted and the fan-out continues to
// the rest.
package hub

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/oceanbureau/goosd/controls"
	"github.com/oceanbureau/goosd/idgen"
)

// EventKind labels an outbound event.
type EventKind string

const (
	// EventSync carries the current snapshot to a freshly connected
	// subscriber.
	EventSync EventKind = "sync"
	// EventUpdate carries the new canonical snapshot after a mutation.
	EventUpdate EventKind = "update"
	// EventHeartbeat is the keep-alive signal. It carries no snapshot and
	// must never be rendered as an update.
	EventHeartbeat EventKind = "heartbeat"
)

// Event is a labeled message fanned out to subscribers.
type Event struct {
	Kind     EventKind
	Snapshot controls.Snapshot
}

// Subscriber is one registered outbound channel. The hub owns the lifecycle:
// callers read from Events until Done is closed or their own connection ends,
// then call Unsubscribe.
type Subscriber struct {
	ID string

	ch   chan Event
	done chan struct{}
	once sync.Once
}

// Events is the stream of hub events for this subscriber.
func (s *Subscriber) Events() <-chan Event { return s.ch }

// Done is closed when the hub evicts or unsubscribes this subscriber.
func (s *Subscriber) Done() <-chan struct{} { return s.done }

func (s *Subscriber) close() {
	s.once.Do(func() { close(s.done) })
}

// Hub is the shared fan-out point. Safe for concurrent Subscribe,
// Unsubscribe and Broadcast.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]*Subscriber

	logger    *slog.Logger
	newID     idgen.Generator
	interval  time.Duration
	buffer    int
	onEvicted func(subscriberID string)
}

// Option configures a Hub.
type Option func(*Hub)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) { h.logger = l }
}

// WithHeartbeatInterval sets the keep-alive cadence. Default: 15s.
func WithHeartbeatInterval(d time.Duration) Option {
	return func(h *Hub) {
		if d > 0 {
			h.interval = d
		}
	}
}

// WithBufferSize sets the per-subscriber channel buffer. Default: 16.
func WithBufferSize(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.buffer = n
		}
	}
}

// WithIDGenerator sets a custom subscriber ID generator.
func WithIDGenerator(gen idgen.Generator) Option {
	return func(h *Hub) { h.newID = gen }
}

// WithEvictedHook installs a callback invoked (outside the hub lock) whenever
// a dead subscriber is removed during a broadcast.
func WithEvictedHook(fn func(subscriberID string)) Option {
	return func(h *Hub) { h.onEvicted = fn }
}

// New creates a Hub. Call Run to start the heartbeat loop.
func New(opts ...Option) *Hub {
	h := &Hub{
		subs:     make(map[string]*Subscriber),
		logger:   slog.Default(),
		newID:    idgen.Prefixed("sub_", idgen.Default),
		interval: 15 * time.Second,
		buffer:   16,
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers a new outbound channel and returns its handle.
// The new subscriber does not receive broadcasts already in flight; the
// caller is expected to send it a sync event with the current snapshot.
func (h *Hub) Subscribe() *Subscriber {
	sub := &Subscriber{
		ID:   h.newID(),
		ch:   make(chan Event, h.buffer),
		done: make(chan struct{}),
	}
	h.mu.Lock()
	h.subs[sub.ID] = sub
	n := len(h.subs)
	h.mu.Unlock()

	h.logger.Debug("hub: subscriber joined", "subscriber", sub.ID, "total", n)
	return sub
}

// Unsubscribe removes a subscriber. Safe to call more than once and for
// already-evicted subscribers.
func (h *Hub) Unsubscribe(sub *Subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	n := len(h.subs)
	h.mu.Unlock()

	sub.close()
	if present {
		h.logger.Debug("hub: subscriber left", "subscriber", sub.ID, "total", n)
	}
}

// Len returns the number of registered subscribers.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// Broadcast sends a labeled event to every currently registered subscriber.
// It takes a stable copy of the subscriber set first, so a subscriber joining
// mid-broadcast simply waits for the next one (its initial sync already keeps
// it current). Subscribers whose buffer is full are evicted and skipped on
// all subsequent broadcasts.
func (h *Hub) Broadcast(kind EventKind, snap controls.Snapshot) {
	h.mu.RLock()
	targets := make([]*Subscriber, 0, len(h.subs))
	for _, sub := range h.subs {
		targets = append(targets, sub)
	}
	h.mu.RUnlock()

	ev := Event{Kind: kind, Snapshot: snap}
	for _, sub := range targets {
		select {
		case sub.ch <- ev:
		default:
			h.evict(sub)
		}
	}
}

// evict removes a subscriber that could not accept a write. The failure is
// recovered locally: remaining subscribers are unaffected and no caller sees
// an error.
func (h *Hub) evict(sub *Subscriber) {
	h.mu.Lock()
	_, present := h.subs[sub.ID]
	delete(h.subs, sub.ID)
	h.mu.Unlock()

	sub.close()
	if !present {
		return
	}
	h.logger.Warn("hub: evicted unresponsive subscriber", "subscriber", sub.ID)
	if h.onEvicted != nil {
		h.onEvicted(sub.ID)
	}
}

// Run emits a heartbeat to every subscriber on the configured interval until
// ctx is cancelled. The heartbeat doubles as dead-connection discovery: a
// subscriber that stopped draining its channel fails the non-blocking send
// and is evicted.
func (h *Hub) Run(ctx context.Context) {
	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.logger.Info("hub: heartbeat loop started", "interval", h.interval)
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("hub: heartbeat loop stopped")
			return
		case <-ticker.C:
			h.Broadcast(EventHeartbeat, controls.Snapshot{})
		}
	}
}
