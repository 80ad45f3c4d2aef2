// Package transport abstracts the persistent bidirectional channel to the
// garden gateway as connect / emit / on / disconnect, hiding the framing of
// the underlying real-time link.
package transport

import "context"

// Handler receives the raw payload of one inbound event.
type Handler func(payload []byte)

// EventDisconnect is delivered when the link drops without a local
// Disconnect call. The payload is the reason token from the gateway,
// if one was provided.
const EventDisconnect = "disconnect"

// Transport is one logical handle to the gateway. Implementations own at
// most one underlying connection at a time: a successful Connect replaces
// any previous connection and re-attaches the registered handlers exactly
// once, so no event is delivered twice across reconnects.
type Transport interface {
	// Connect establishes the link, blocking until it is up or ctx expires.
	Connect(ctx context.Context) error
	// Emit publishes one outbound event; payload is JSON-encoded.
	Emit(event string, payload any) error
	// On registers the handler for an inbound event, replacing any previous one.
	On(event string, h Handler)
	// Off removes the handler for an inbound event.
	Off(event string)
	// Disconnect tears the link down locally. No reconnection follows.
	Disconnect()
	// Connected reports whether the link is currently up.
	Connected() bool
}
