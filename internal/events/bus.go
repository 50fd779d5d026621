package events

import (
	"log"
	"sync"
	"sync/atomic"
	"time"
)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is an in-process, goroutine-safe event bus. Delivery is synchronous:
// Publish invokes every subscriber of the event's topic on the calling
// goroutine, in subscription order, before returning.
type Bus struct {
	mu     sync.RWMutex
	subs   map[Topic][]subscription
	nextID atomic.Uint64
	closed atomic.Bool
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{
		subs: make(map[Topic][]subscription),
	}
}

// Subscribe registers a handler for one topic and returns its disposer.
// The disposer is idempotent: calling it more than once is a no-op after
// the first call.
func (b *Bus) Subscribe(topic Topic, handler Handler) func() {
	id := b.nextID.Add(1)
	sub := subscription{id: id, handler: handler}

	b.mu.Lock()
	b.subs[topic] = append(b.subs[topic], sub)
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		subs := b.subs[topic]
		for i, s := range subs {
			if s.id == id {
				b.subs[topic] = append(subs[:i], subs[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers an event to the subscribers of its topic in the order
// they subscribed. A missing timestamp is filled in. Publishing on a closed
// bus is a no-op. A panicking subscriber is recovered and logged so it
// cannot take down the publisher.
func (b *Bus) Publish(event Event) {
	if b.closed.Load() {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.RLock()
	subs := make([]subscription, len(b.subs[event.Topic]))
	copy(subs, b.subs[event.Topic])
	b.mu.RUnlock()

	for _, sub := range subs {
		b.deliver(event, sub)
	}
}

func (b *Bus) deliver(event Event, sub subscription) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[events] subscriber panicked on %s/%s: %v", event.Topic, event.Type, r)
		}
	}()
	sub.handler(event)
}

// SubscriberCount returns how many handlers are registered on a topic.
func (b *Bus) SubscriberCount(topic Topic) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[topic])
}

// Close prevents further publishes. Close is idempotent.
func (b *Bus) Close() {
	b.closed.Store(true)
}
