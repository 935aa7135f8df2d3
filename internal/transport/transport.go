// Package transport carries protocol envelopes between the worker and its controller.
package transport

import (
	"context"
	"errors"

	"mediaflow/internal/protocol"
)

// ErrClosed is returned by operations on a closed channel.
var ErrClosed = errors.New("transport: channel closed")

// Channel is a duplex message channel. Receive is called from one goroutine at a time;
// Send may be called concurrently.
type Channel interface {
	// Receive blocks until the next inbound message. It returns io.EOF when the peer
	// closed the channel cleanly.
	Receive(ctx context.Context) (protocol.Message, error)
	Send(ctx context.Context, env protocol.Envelope) error
	Close() error
}

// SinkFor adapts a channel to the reactor's send function.
func SinkFor(ctx context.Context, ch Channel) func(protocol.Envelope) error {
	return func(env protocol.Envelope) error {
		return ch.Send(ctx, env)
	}
}
