// Package stream implements the observability interface of spec.md §6: a
// typed, append-only feed of the plan-executive's externally visible
// state changes (tasks added/removed, events emitted, relations wired,
// tick summaries), fanned out to any number of subscribers.
package stream

import (
	"sync"
	"time"

	"github.com/dagu-org/taskkernel/internal/handle"
)

// TaskAdded records that a task entered the plan.
type TaskAdded struct {
	ID         handle.ID
	ExternalID any
	At         time.Time
}

// TaskRemoved records that a task was finalised.
type TaskRemoved struct {
	ID handle.ID
	At time.Time
}

// Emitted records one event firing.
type Emitted struct {
	Event   handle.ID
	At      float64
	Payload any
}

// RelationAdded records one relation edge being wired.
type RelationAdded struct {
	Kind string
	From handle.ID
	To   handle.ID
}

// RelationRemoved records one relation edge being severed.
type RelationRemoved struct {
	Kind string
	From handle.ID
	To   handle.ID
}

// TickReport summarises one executor tick (§4.H).
type TickReport struct {
	At       time.Time
	Started  []handle.ID
	Errors   []string
	NumTicks int
}

// Publisher receives plan-executive observability records. Implementations
// must not block the caller for long; Hub.Publish never blocks for exactly
// that reason, dropping the record for any subscriber whose buffer is full.
type Publisher interface {
	Publish(event any)
}

// Noop discards every record. It is the default Publisher for a Plan
// constructed without plan.WithPublisher, so instrumentation is always
// opt-in.
type Noop struct{}

// Publish implements Publisher by doing nothing.
func (Noop) Publish(event any) {}

// Hub fans published records out to any number of subscribers, each with
// its own bounded channel. A slow subscriber drops records rather than
// blocking publication, mirroring the SSE hub's per-client buffering.
type Hub struct {
	mu          sync.RWMutex
	subscribers map[int]chan any
	nextID      int
	bufferSize  int
}

// HubOption configures a new Hub.
type HubOption func(*Hub)

// WithBufferSize sets the per-subscriber channel buffer (default 64).
func WithBufferSize(n int) HubOption {
	return func(h *Hub) { h.bufferSize = n }
}

// NewHub constructs an empty Hub.
func NewHub(opts ...HubOption) *Hub {
	h := &Hub{
		subscribers: make(map[int]chan any),
		bufferSize:  64,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Publish implements Publisher, broadcasting event to every subscriber.
func (h *Hub) Publish(event any) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subscribers {
		select {
		case ch <- event:
		default:
			// subscriber too slow; drop rather than stall the publisher.
		}
	}
}

// Subscribe registers a new listener and returns its channel plus an
// unsubscribe function the caller must call when done.
func (h *Hub) Subscribe() (<-chan any, func()) {
	h.mu.Lock()
	defer h.mu.Unlock()
	id := h.nextID
	h.nextID++
	ch := make(chan any, h.bufferSize)
	h.subscribers[id] = ch
	return ch, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if existing, ok := h.subscribers[id]; ok {
			delete(h.subscribers, id)
			close(existing)
		}
	}
}

// SubscriberCount reports the number of active subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subscribers)
}
