// internal/events/event.go
package events

import (
	"context"
	"time"
)

// Kind separates domain messages from keep-alives.
type Kind string

const (
	KindMessage   Kind = "message"
	KindKeepAlive Kind = "keep_alive"
)

// Event is what gets pushed to a listener. Messages carry a typed payload and a
// monotonic id assigned by the Registry; keep-alives carry only a timestamp.
type Event struct {
	ID        uint64    `json:"id,omitempty"`
	Kind      Kind      `json:"kind"`
	Type      string    `json:"type,omitempty"`
	Payload   any       `json:"payload,omitempty"`
	Timestamp time.Time `json:"ts"`
}

// Message builds a domain event. The id and timestamp are filled in on emit.
func Message(typ string, payload any) Event {
	return Event{Kind: KindMessage, Type: typ, Payload: payload}
}

// KeepAlive builds a heartbeat event.
func KeepAlive(now time.Time) Event {
	return Event{Kind: KindKeepAlive, Timestamp: now}
}

// Channel is a player-scoped delivery endpoint, e.g. a websocket or a server-push stream.
type Channel interface {
	// Send makes one bounded attempt to deliver ev.
	Send(ctx context.Context, ev Event) error
	// OnClose installs a callback fired when the channel completes (err == nil) or fails.
	// Implementations may fire it more than once.
	OnClose(fn func(err error))
}
