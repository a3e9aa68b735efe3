// Package events provides an in-process publish-subscribe bus used to notify
// consumers of state changes without binding the core to any UI layer.
package events

import "sync"

// Event is a broadcast message. Concrete payloads are defined by publishers.
type Event struct {
	Type    string
	Payload any
}

// Well-known event types.
const (
	TypeBookImported = "book.imported"
	TypeBookDeleted  = "book.deleted"
	TypeSyncStatus   = "sync.status"
	TypeDataReset    = "data.reset"
)

// Bus fan-outs events to subscribers. Slow subscribers do not block
// publishers: events are dropped when a subscriber's buffer is full.
type Bus struct {
	mu   sync.RWMutex
	subs map[int]chan Event
	next int
}

// NewBus creates an event bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[int]chan Event)}
}

// Subscribe registers a subscriber and returns its channel plus a cancel
// function. The cancel function closes the channel.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.next
	b.next++
	ch := make(chan Event, 64)
	b.subs[id] = ch

	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if c, ok := b.subs[id]; ok {
			delete(b.subs, id)
			close(c)
		}
	}
	return ch, cancel
}

// Publish delivers the event to every subscriber with buffer room.
func (b *Bus) Publish(evt Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		select {
		case ch <- evt:
		default:
			// Drop rather than block the publisher.
		}
	}
}

// Emit implements the store.EventEmitter interface for arbitrary payloads.
func (b *Bus) Emit(event any) {
	if evt, ok := event.(Event); ok {
		b.Publish(evt)
		return
	}
	b.Publish(Event{Type: "event", Payload: event})
}
