package service

import "sync"

// Event is one state change: the cell that emitted and its new value in a
// JSON-encodable form. A nil Value means the cell became absent.
type Event struct {
	Cell  string // e.g. "location", "regions.admin"
	Value any
}

// EventBus is a fan-out pub/sub for state change events.
type EventBus struct {
	mu   sync.RWMutex
	size int
	subs map[chan Event]struct{}
}

// NewEventBus creates an event bus whose subscriber channels buffer size
// events.
func NewEventBus(size int) *EventBus {
	if size < 1 {
		size = 1
	}
	return &EventBus{size: size, subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking).
func (b *EventBus) Publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// subscriber too slow, skip
		}
	}
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, b.size)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	_, ok := b.subs[ch]
	delete(b.subs, ch)
	b.mu.Unlock()
	if ok {
		close(ch)
	}
}

// Subscribers returns the number of live subscriptions.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
