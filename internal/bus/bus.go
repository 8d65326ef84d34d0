package bus

import (
	"strings"
	"sync"
	"time"
)

// Bus is the in-process publish/subscribe fan-out shared by every component.
// The socket read pump publishes each inbound transport event exactly once;
// any number of local consumers (thread engine, notification store, views)
// subscribe with their own channel, so no component ever attaches a second
// listener to the transport itself.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]*subscriber
	next int
}

type subscriber struct {
	prefix string
	ch     chan Event
}

// New creates an empty bus.
func New() *Bus {
	return &Bus{subs: make(map[int]*subscriber)}
}

// Publish delivers an event to every subscriber whose prefix matches kind.
// Delivery is non-blocking: a subscriber that has fallen behind loses the
// event rather than stalling the publisher.
func (b *Bus) Publish(kind string, payload any) {
	evt := Event{Kind: kind, At: time.Now(), Payload: payload}
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, sub := range b.subs {
		if strings.HasPrefix(kind, sub.prefix) {
			select {
			case sub.ch <- evt:
			default:
			}
		}
	}
}

// Subscribe registers a consumer for all events whose kind starts with
// prefix. It returns the receive channel and an unsubscribe function; the
// caller must invoke the latter on teardown so stale handlers cannot mutate
// state after their room is no longer active.
func (b *Bus) Subscribe(prefix string, bufSize int) (<-chan Event, func()) {
	ch := make(chan Event, bufSize)
	b.mu.Lock()
	id := b.next
	b.next++
	b.subs[id] = &subscriber{prefix: prefix, ch: ch}
	b.mu.Unlock()

	return ch, func() {
		b.mu.Lock()
		delete(b.subs, id)
		b.mu.Unlock()
	}
}
