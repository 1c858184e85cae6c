// Package bus implements the typed publish/subscribe registry that
// decouples the transport session from its consumers.
package bus

import (
	"encoding/json"
	"sync"

	"nerddash/internal/logging"
)

// Handler receives the raw data payload of one published event.
type Handler func(data json.RawMessage)

// entry wraps a handler so identical funcs registered twice stay
// distinguishable for unsubscription.
type entry struct {
	fn Handler
}

// Bus dispatches events to handlers in registration order.
// A handler panic is recovered and logged; it never aborts dispatch to
// the remaining handlers and never reaches the publisher.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]*entry

	published uint64
	dropped   uint64
	recovered uint64
}

// New creates an empty Bus.
func New() *Bus {
	return &Bus{handlers: make(map[string][]*entry)}
}

// Subscribe registers a handler for an event type and returns an
// unsubscribe func that removes exactly this registration.
func (b *Bus) Subscribe(eventType string, h Handler) func() {
	e := &entry{fn: h}

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], e)
	b.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() { b.remove(eventType, e) })
	}
}

func (b *Bus) remove(eventType string, target *entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[eventType]
	for i, e := range list {
		if e == target {
			b.handlers[eventType] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.handlers[eventType]) == 0 {
		delete(b.handlers, eventType)
	}
}

// Unsubscribe removes all handlers for an event type.
func (b *Bus) Unsubscribe(eventType string) {
	b.mu.Lock()
	delete(b.handlers, eventType)
	b.mu.Unlock()
}

// Clear removes every subscription. The transport session calls this on
// clean disconnect; a fresh connect starts with no listeners.
func (b *Bus) Clear() {
	b.mu.Lock()
	b.handlers = make(map[string][]*entry)
	b.mu.Unlock()
}

// Publish invokes each handler registered for eventType in registration
// order. Handlers may publish further events synchronously; dispatch
// runs outside the registry lock so nested publishes cannot deadlock.
func (b *Bus) Publish(eventType string, data json.RawMessage) {
	b.mu.Lock()
	list := b.handlers[eventType]
	snapshot := make([]*entry, len(list))
	copy(snapshot, list)
	if len(snapshot) == 0 {
		b.dropped++
	} else {
		b.published++
	}
	b.mu.Unlock()

	if len(snapshot) == 0 {
		logging.BusDebug("no handlers for %q, event dropped", eventType)
		return
	}

	for _, e := range snapshot {
		b.dispatch(eventType, e, data)
	}
}

func (b *Bus) dispatch(eventType string, e *entry, data json.RawMessage) {
	defer func() {
		if r := recover(); r != nil {
			b.mu.Lock()
			b.recovered++
			b.mu.Unlock()
			logging.BusError("handler for %q panicked: %v", eventType, r)
		}
	}()
	e.fn(data)
}

// HandlerCount returns the number of handlers for an event type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.handlers[eventType])
}

// Stats holds bus counters.
type Stats struct {
	EventTypes int
	Handlers   int
	Published  uint64
	Dropped    uint64
	Recovered  uint64
}

// Stats returns current bus statistics.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	total := 0
	for _, list := range b.handlers {
		total += len(list)
	}
	return Stats{
		EventTypes: len(b.handlers),
		Handlers:   total,
		Published:  b.published,
		Dropped:    b.dropped,
		Recovered:  b.recovered,
	}
}
