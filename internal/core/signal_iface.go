package core

import (
	"errors"

	"github.com/dkeye/pqvoice/internal/proto"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

// EventSink is the outbound side of one signaling connection.
// Owned by the adapter; the adapter tears it down.
type EventSink interface {
	// Enqueue never blocks. It returns ErrBackpressure when the queue is
	// full and ErrConnClosed after teardown.
	Enqueue(proto.Message) error
	// Kick closes the connection without flushing.
	Kick()
}
