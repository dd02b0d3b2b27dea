// Package channels connects the relay to chat platforms.
//
// DESIGN: A channel adapter owns the platform connection. It turns platform
// messages into Events, hands each to an EventHandler, and sends the
// handler's replies back through its Sender side:
//
//   - Discord: Gateway v10 websocket for events, REST for replies
//   - Console: stdin/stdout for local testing
//
// To add a platform: implement Adapter and register it in Registry.
package channels

import (
	"context"
	"errors"
)

// ErrUnknownChannel is returned when no adapter is registered under a name.
var ErrUnknownChannel = errors.New("unknown channel")

// Event is one inbound chat message.
type Event struct {
	Channel     string // adapter name, e.g. "discord"
	ChannelID   string // where replies go
	MessageID   string
	AuthorID    string
	AuthorName  string
	AuthorIsBot bool
	SelfID      string // the relay's own identity on this platform
	Text        string
}

// FromSelf reports whether the relay authored the message.
func (e Event) FromSelf() bool {
	return e.SelfID != "" && e.AuthorID == e.SelfID
}

// Sender delivers plain text to a channel.
type Sender interface {
	Send(ctx context.Context, channelID, text string) error
}

// EventHandler processes inbound events. Implementations must be safe for
// concurrent use; adapters may dispatch events in parallel.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev Event, sender Sender) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, ev Event, sender Sender) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, ev Event, sender Sender) error {
	return f(ctx, ev, sender)
}

// Adapter is a chat platform connection.
type Adapter interface {
	Sender

	// Name returns the adapter identifier (e.g., "discord", "console").
	Name() string

	// Run connects and dispatches events to h until ctx is done or the
	// connection fails permanently.
	Run(ctx context.Context, h EventHandler) error

	// Wait blocks until all dispatched events have been handled.
	Wait()
}
