package bus

import (
	"errors"
	"fmt"
)

// ErrNotConnected is reported when an operation requires an established
// connection and there is none. Retry policy belongs to the caller.
var ErrNotConnected = errors.New("not connected")

// ErrClosed is reported when the relay or a client has been stopped.
var ErrClosed = errors.New("bus closed")

// TransportError wraps a send/receive/connect failure on the bus. These are
// recoverable: the caller retries or logs, the bus itself keeps running.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bus transport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError wraps a malformed inbound frame or payload at a subscriber.
// One bad message never terminates the receive loop.
type DecodeError struct {
	Topic string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Topic == "" {
		return fmt.Sprintf("bus decode: %v", e.Err)
	}
	return fmt.Sprintf("bus decode: topic %s: %v", e.Topic, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
