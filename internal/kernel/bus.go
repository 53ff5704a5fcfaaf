package kernel

import (
	"log"
	"sync"
)

// Event names published by the kernel.
const (
	EventIdentityCreated   = "identity:created"
	EventIdentityRecovered = "identity:recovered"
	EventIdentityLogout    = "identity:logout"
	EventPulseCreated      = "pulse:created"
	EventKeyCreated        = "key:created"
	EventKeyRevoked        = "key:revoked"
	EventAgentSpawned      = "agent:spawned"
	EventAgentTerminated   = "agent:terminated"
	EventReset             = "reset"
)

// Handler receives a published event payload.
type Handler func(data any)

// Bus is a synchronous publish/subscribe fan-out. Delivery is same-
// goroutine in registration order; a panicking handler is logged and
// skipped so a notification failure never undoes the state change that
// triggered it.
type Bus struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string][]busEntry
}

type busEntry struct {
	id int
	h  Handler
}

// NewBus creates an empty Bus.
func NewBus() *Bus {
	return &Bus{handlers: make(map[string][]busEntry)}
}

// Subscribe registers a handler for an event and returns a function that
// removes it.
func (b *Bus) Subscribe(event string, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.handlers[event] = append(b.handlers[event], busEntry{id: id, h: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[event]
		for i, e := range entries {
			if e.id == id {
				b.handlers[event] = append(entries[:i:i], entries[i+1:]...)
				return
			}
		}
	}
}

// Publish delivers data to every handler registered for event, in
// registration order.
func (b *Bus) Publish(event string, data any) {
	b.mu.Lock()
	entries := make([]busEntry, len(b.handlers[event]))
	copy(entries, b.handlers[event])
	b.mu.Unlock()

	for _, e := range entries {
		deliver(event, e.h, data)
	}
}

func deliver(event string, h Handler, data any) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("event %s: handler panic: %v", event, r)
		}
	}()
	h(data)
}
