// Package broker fans change notifications about the events collection out
// to live subscribers (SSE clients, WebSocket clients, the view cache).
package broker

import "time"

// EventType identifies a change notification.
type EventType string

const (
	// EventsUpdated is published after this process saved or cleared the
	// collection. Data is the new []event.Event.
	EventsUpdated EventType = "events-updated"

	// StorageChanged is published when another writer changed the
	// persisted collection. Data is the freshly loaded []event.Event.
	StorageChanged EventType = "storage-changed"
)

// Event is one notification.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data"`
}

// Subscriber consumes events. Send must not block for long.
type Subscriber interface {
	Send(Event) error
	Close() error
}

// FuncSubscriber adapts a plain function to Subscriber.
type FuncSubscriber struct {
	fn func(Event) error
}

// NewFunc wraps fn as a Subscriber
func NewFunc(fn func(Event) error) *FuncSubscriber {
	return &FuncSubscriber{fn: fn}
}

// Send calls the wrapped function
func (f *FuncSubscriber) Send(e Event) error { return f.fn(e) }

// Close is a no-op
func (f *FuncSubscriber) Close() error { return nil }
