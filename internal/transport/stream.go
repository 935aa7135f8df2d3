package transport

import (
	"bufio"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"mediaflow/internal/protocol"
)

// MaxFrameSize bounds a single length-prefixed frame.
const MaxFrameSize = 64 << 20

// Stream frames envelopes over a byte stream with a 4-byte big-endian length prefix.
type Stream struct {
	codec  protocol.Codec
	r      *bufio.Reader
	closer io.Closer

	wmu sync.Mutex
	w   *bufio.Writer

	closeOnce sync.Once
	closed    chan struct{}
}

var _ Channel = (*Stream)(nil)

// NewStream reads frames from r and writes them to w. closer, when non-nil, is closed by
// Close.
func NewStream(r io.Reader, w io.Writer, closer io.Closer, codec protocol.Codec) *Stream {
	if codec == nil {
		codec = protocol.JSON{}
	}
	return &Stream{
		codec:  codec,
		r:      bufio.NewReader(r),
		w:      bufio.NewWriter(w),
		closer: closer,
		closed: make(chan struct{}),
	}
}

// Stdio speaks the protocol over the process's stdin and stdout.
func Stdio(codec protocol.Codec) *Stream {
	return NewStream(os.Stdin, os.Stdout, nil, codec)
}

func (s *Stream) Receive(ctx context.Context) (protocol.Message, error) {
	if err := s.check(ctx); err != nil {
		return protocol.Message{}, err
	}
	var header [4]byte
	if _, err := io.ReadFull(s.r, header[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return protocol.Message{}, io.EOF
		}
		return protocol.Message{}, fmt.Errorf("transport: read frame header: %w", err)
	}
	n := binary.BigEndian.Uint32(header[:])
	if n > MaxFrameSize {
		return protocol.Message{}, fmt.Errorf("transport: frame of %d bytes exceeds limit", n)
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(s.r, body); err != nil {
		return protocol.Message{}, fmt.Errorf("transport: read frame body: %w", err)
	}
	return s.codec.Unmarshal(body)
}

func (s *Stream) Send(ctx context.Context, env protocol.Envelope) error {
	if err := s.check(ctx); err != nil {
		return err
	}
	body, err := s.codec.Marshal(env)
	if err != nil {
		return err
	}
	if len(body) > MaxFrameSize {
		return fmt.Errorf("transport: %s frame of %d bytes exceeds limit", env.Type, len(body))
	}
	var header [4]byte
	binary.BigEndian.PutUint32(header[:], uint32(len(body)))

	s.wmu.Lock()
	defer s.wmu.Unlock()
	if _, err := s.w.Write(header[:]); err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	if _, err := s.w.Write(body); err != nil {
		return fmt.Errorf("transport: write frame: %w", err)
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("transport: flush frame: %w", err)
	}
	return nil
}

func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.closed)
		s.wmu.Lock()
		err = s.w.Flush()
		s.wmu.Unlock()
		if s.closer != nil {
			if cerr := s.closer.Close(); err == nil {
				err = cerr
			}
		}
	})
	return err
}

func (s *Stream) check(ctx context.Context) error {
	select {
	case <-s.closed:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	default:
		return nil
	}
}
