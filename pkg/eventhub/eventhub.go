// Package eventhub is the in-process publish/subscribe registry used to
// broadcast state changes to consumers. Delivery is synchronous and in
// registration order; subscriptions are handle-based so the same handler
// function can be registered more than once without ambiguity.
package eventhub

import (
	"sync"

	"github.com/rs/zerolog"
)

// Handler receives one published event. Handlers run synchronously on the
// publisher's goroutine; a panicking handler is isolated so the remaining
// handlers still run, and it is not retried.
type Handler func(Event)

// Subscription is the opaque token returned by Subscribe and consumed by
// Unsubscribe.
type Subscription struct {
	kind Kind
	id   uint64
}

type entry struct {
	id uint64
	fn Handler
}

// Hub maps event kinds to ordered subscriber lists.
type Hub struct {
	logger zerolog.Logger

	mu     sync.Mutex
	nextID uint64
	subs   map[Kind][]entry
}

func New(logger zerolog.Logger) *Hub {
	return &Hub{
		logger: logger,
		subs:   make(map[Kind][]entry),
	}
}

// Subscribe registers fn for events of kind k and returns the token that
// removes exactly this registration. Duplicate registrations are allowed
// and are invoked once each, in registration order.
func (h *Hub) Subscribe(k Kind, fn Handler) Subscription {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nextID++
	h.subs[k] = append(h.subs[k], entry{id: h.nextID, fn: fn})
	return Subscription{kind: k, id: h.nextID}
}

// Unsubscribe removes the registration identified by s. Unknown or already
// removed tokens are a no-op.
func (h *Hub) Unsubscribe(s Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	list := h.subs[s.kind]
	for i, e := range list {
		if e.id == s.id {
			h.subs[s.kind] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// Publish delivers e to every current subscriber of its kind, synchronously
// and in registration order. Subscribers added or removed by a handler take
// effect from the next publish.
func (h *Hub) Publish(e Event) {
	h.mu.Lock()
	list := h.subs[e.Kind()]
	snapshot := make([]entry, len(list))
	copy(snapshot, list)
	h.mu.Unlock()

	for _, sub := range snapshot {
		h.invoke(e, sub)
	}
}

func (h *Hub) invoke(e Event, sub entry) {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error().
				Str("event", string(e.Kind())).
				Interface("panic", r).
				Msg("event handler panicked")
		}
	}()
	sub.fn(e)
}
