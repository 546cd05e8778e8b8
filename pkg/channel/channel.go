// Package channel defines the duplex message conduit the protocol engine
// runs over, and provides an in-memory implementation for same-process
// peer pairs.
package channel

import (
	"encoding/json"
	"errors"
)

// ErrClosed is returned by Send and Receive once the channel is unusable.
var ErrClosed = errors.New("channel closed")

// Channel is a duplex, order-preserving, message-oriented conduit. Messages
// are opaque JSON documents; the wire encoding below this interface is out
// of scope.
//
// Close signals closure toward the opposite peer's reader; Halt makes this
// side's own reader observe closure. Both are idempotent.
type Channel interface {
	// Send writes one message toward the peer
	Send(msg json.RawMessage) error

	// Receive blocks until the next inbound message arrives. It returns
	// ErrClosed once the peer closes or Halt is called and all queued
	// messages have been drained.
	Receive() (json.RawMessage, error)

	// Close signals the opposite reader that no more messages will arrive
	Close() error

	// Halt unblocks this side's reader
	Halt()
}
