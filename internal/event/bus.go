package event

import (
	"log"
	"runtime/debug"
	"strconv"
	"sync"
	"sync/atomic"
)

// Handler consumes one published event.
type Handler func(Event)

// wildcard is the event type SubscribeAll registers under.
const wildcard = "*"

type entry struct {
	id      string
	handler Handler
}

// Bus delivers engine events to subscribers synchronously, on the
// publishing goroutine. Handlers for the event's own type run before
// wildcard handlers; within each group, registration order holds.
type Bus struct {
	mu      sync.RWMutex
	entries map[string][]entry // event type -> handlers, registration order
	lastID  atomic.Uint64
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{entries: make(map[string][]entry)}
}

// Subscribe registers a handler for one event type and returns the
// subscription ID Unsubscribe takes.
func (b *Bus) Subscribe(eventType string, handler Handler) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := "sub-" + strconv.FormatUint(b.lastID.Add(1), 10)
	b.entries[eventType] = append(b.entries[eventType], entry{id: id, handler: handler})
	return id
}

// SubscribeAll registers a handler for every event type.
func (b *Bus) SubscribeAll(handler Handler) string {
	return b.Subscribe(wildcard, handler)
}

// Unsubscribe removes the subscription with the given ID, reporting
// whether it existed.
func (b *Bus) Unsubscribe(id string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, entries := range b.entries {
		for i, e := range entries {
			if e.id != id {
				continue
			}
			b.entries[eventType] = append(entries[:i], entries[i+1:]...)
			return true
		}
	}
	return false
}

// Publish hands the event to every matching handler. A panicking
// handler is recovered and logged; delivery continues past it.
func (b *Bus) Publish(ev Event) {
	b.mu.RLock()
	batch := make([]entry, 0, len(b.entries[ev.EventType()])+len(b.entries[wildcard]))
	batch = append(batch, b.entries[ev.EventType()]...)
	batch = append(batch, b.entries[wildcard]...)
	b.mu.RUnlock()

	for _, e := range batch {
		deliver(e.handler, ev)
	}
}

func deliver(handler Handler, ev Event) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: handler panicked on %s: %v\n%s",
				ev.EventType(), r, debug.Stack())
		}
	}()
	handler(ev)
}

// Clear drops every subscription.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries = make(map[string][]entry)
}

// SubscriptionCount reports the number of live subscriptions.
func (b *Bus) SubscriptionCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := 0
	for _, entries := range b.entries {
		count += len(entries)
	}
	return count
}
