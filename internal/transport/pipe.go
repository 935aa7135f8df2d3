package transport

import (
	"context"
	"io"
	"sync"

	"mediaflow/internal/protocol"
)

// PipeEnd is one side of an in-memory channel. Messages are encoded with the codec so
// payloads go through the same decode path as a real transport.
type PipeEnd struct {
	codec protocol.Codec
	in    <-chan []byte
	out   chan<- []byte

	// done is closed when this end closes; peerDone when the other end does.
	done     chan struct{}
	peerDone chan struct{}
	once     sync.Once
}

var _ Channel = (*PipeEnd)(nil)

// Pipe returns two connected ends with buffer slots in each direction.
func Pipe(codec protocol.Codec, buffer int) (*PipeEnd, *PipeEnd) {
	if codec == nil {
		codec = protocol.JSON{}
	}
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	aDone := make(chan struct{})
	bDone := make(chan struct{})
	a := &PipeEnd{codec: codec, in: ba, out: ab, done: aDone, peerDone: bDone}
	b := &PipeEnd{codec: codec, in: ab, out: ba, done: bDone, peerDone: aDone}
	return a, b
}

func (p *PipeEnd) Receive(ctx context.Context) (protocol.Message, error) {
	select {
	case b := <-p.in:
		return p.codec.Unmarshal(b)
	default:
	}
	select {
	case b := <-p.in:
		return p.codec.Unmarshal(b)
	case <-p.peerDone:
		// Drain anything sent before the peer closed.
		select {
		case b := <-p.in:
			return p.codec.Unmarshal(b)
		default:
			return protocol.Message{}, io.EOF
		}
	case <-p.done:
		return protocol.Message{}, ErrClosed
	case <-ctx.Done():
		return protocol.Message{}, ctx.Err()
	}
}

func (p *PipeEnd) Send(ctx context.Context, env protocol.Envelope) error {
	b, err := p.codec.Marshal(env)
	if err != nil {
		return err
	}
	select {
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return io.ErrClosedPipe
	default:
	}
	select {
	case p.out <- b:
		return nil
	case <-p.done:
		return ErrClosed
	case <-p.peerDone:
		return io.ErrClosedPipe
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *PipeEnd) Close() error {
	p.once.Do(func() { close(p.done) })
	return nil
}
