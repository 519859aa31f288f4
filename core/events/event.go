package events

import "sync"

// Event represents a structured state change emitted by the registry.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers, UI
// refresh feeds).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// List fans an event out to every subscribed emitter. Delivery is synchronous
// and in subscription order; subscribers that need at-least-once semantics or
// buffering layer that on themselves.
type List struct {
	mu   sync.RWMutex
	subs []Emitter
}

// Subscribe appends an emitter to the fan-out list. Nil emitters are ignored.
func (l *List) Subscribe(e Emitter) {
	if e == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.subs = append(l.subs, e)
}

// Emit implements the Emitter interface by forwarding to every subscriber.
func (l *List) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	l.mu.RLock()
	subs := make([]Emitter, len(l.subs))
	copy(subs, l.subs)
	l.mu.RUnlock()
	for _, sub := range subs {
		sub.Emit(evt)
	}
}
