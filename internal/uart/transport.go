// Package uart implements the byte-level transport the protocol engine and
// notification scavenger drive the BLE module over.
package uart

import (
	"context"
	"errors"
	"time"
)

// Transport is the external collaborator spec.md §2 calls the Byte
// Transport: send, a fixed-length blocking receive, a timed receive, and a
// flush. Exactly one logical requester — the command engine or the
// notification scavenger — may drive a Transport at any instant; callers
// are responsible for that serialization, not Transport implementations.
type Transport interface {
	// Send writes all of p to the wire, retrying on short writes. A
	// non-nil error aborts the in-flight command/response exchange.
	Send(p []byte) error

	// RecvByte blocks until exactly one byte arrives or ctx is done.
	RecvByte(ctx context.Context) (byte, error)

	// RecvByteTimeout waits up to timeout for one byte. ok is false with a
	// nil error when the wait timed out without data; that is not a
	// failure, it's how callers detect "no more bytes right now".
	RecvByteTimeout(ctx context.Context, timeout time.Duration) (b byte, ok bool, err error)

	// Flush discards any buffered, unread bytes.
	Flush() error

	Close() error
}

// ErrClosed is returned by Transport operations performed after Close.
var ErrClosed = errors.New("uart: transport closed")
