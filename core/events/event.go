package events

import "sync"

// Event is a structured record of a committed ledger state change. Attributes
// hold string-rendered payload fields so downstream consumers do not need to
// understand module internals.
type Event struct {
	Type       string            `json:"type"`
	Attributes map[string]string `json:"attributes"`
}

// Emitter broadcasts events to downstream subscribers (RPC, log shippers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter satisfies the Emitter interface while discarding all events. It
// is the default emitter so components can treat event emission as optional.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// MemoryEmitter retains emitted events in order. It backs the RPC event
// listing and is safe for concurrent use.
type MemoryEmitter struct {
	mu     sync.RWMutex
	events []Event
}

// NewMemoryEmitter constructs an empty in-memory emitter.
func NewMemoryEmitter() *MemoryEmitter {
	return &MemoryEmitter{}
}

// Emit appends the event to the retained history.
func (m *MemoryEmitter) Emit(evt Event) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.events = append(m.events, evt)
	m.mu.Unlock()
}

// Events returns a copy of the retained history in emission order.
func (m *MemoryEmitter) Events() []Event {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Event, len(m.events))
	copy(out, m.events)
	return out
}
