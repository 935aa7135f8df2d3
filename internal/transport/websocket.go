package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"mediaflow/internal/protocol"
)

const (
	wsWriteWait = 10 * time.Second
	wsPongWait  = 60 * time.Second
	wsPingEvery = (wsPongWait * 9) / 10
)

type wsOutbound struct {
	kind int
	data []byte
	done chan error
}

// Websocket is a controller connection. One envelope per websocket message; text frames
// for JSON, binary frames for MessagePack. A writer goroutine owns all writes and sends
// pings while idle.
type Websocket struct {
	conn  *websocket.Conn
	codec protocol.Codec

	writeCh    chan wsOutbound
	writerDone chan struct{}
	ctx        context.Context
	cancel     context.CancelFunc
	closeOnce  sync.Once
}

var _ Channel = (*Websocket)(nil)

// DialWebsocket connects to the controller at url.
func DialWebsocket(ctx context.Context, url string, header http.Header, codec protocol.Codec) (*Websocket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, fmt.Errorf("transport: dial %s: %w", url, err)
	}
	return NewWebsocket(conn, codec)
}

// NewWebsocket wraps an established connection and starts its writer.
func NewWebsocket(conn *websocket.Conn, codec protocol.Codec) (*Websocket, error) {
	if codec == nil {
		codec = protocol.JSON{}
	}
	if err := conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("transport: set read deadline: %w", err)
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	ctx, cancel := context.WithCancel(context.Background())
	ws := &Websocket{
		conn:       conn,
		codec:      codec,
		writeCh:    make(chan wsOutbound, 32),
		writerDone: make(chan struct{}),
		ctx:        ctx,
		cancel:     cancel,
	}
	go ws.writer()
	return ws, nil
}

func (ws *Websocket) writer() {
	defer close(ws.writerDone)
	ticker := time.NewTicker(wsPingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ws.ctx.Done():
			return
		case out := <-ws.writeCh:
			err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err == nil {
				err = ws.conn.WriteMessage(out.kind, out.data)
			}
			out.done <- err
			if err != nil {
				return
			}
		case <-ticker.C:
			if err := ws.conn.SetWriteDeadline(time.Now().Add(wsWriteWait)); err != nil {
				return
			}
			if err := ws.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (ws *Websocket) Receive(ctx context.Context) (protocol.Message, error) {
	if err := ctx.Err(); err != nil {
		return protocol.Message{}, err
	}
	// The deadline only covers idle time spent waiting here; pongs push it forward.
	if err := ws.conn.SetReadDeadline(time.Now().Add(wsPongWait)); err != nil {
		return protocol.Message{}, fmt.Errorf("transport: set read deadline: %w", err)
	}
	_, data, err := ws.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			return protocol.Message{}, io.EOF
		}
		select {
		case <-ws.ctx.Done():
			return protocol.Message{}, ErrClosed
		default:
		}
		return protocol.Message{}, fmt.Errorf("transport: read: %w", err)
	}
	return ws.codec.Unmarshal(data)
}

func (ws *Websocket) Send(ctx context.Context, env protocol.Envelope) error {
	data, err := ws.codec.Marshal(env)
	if err != nil {
		return err
	}
	kind := websocket.TextMessage
	if ws.codec.Binary() {
		kind = websocket.BinaryMessage
	}
	out := wsOutbound{kind: kind, data: data, done: make(chan error, 1)}
	select {
	case ws.writeCh <- out:
	case <-ws.writerDone:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-out.done:
		if err != nil {
			return fmt.Errorf("transport: write %s: %w", env.Type, err)
		}
		return nil
	case <-ws.writerDone:
		// The writer may have finished this message just before exiting.
		select {
		case err := <-out.done:
			return err
		default:
			return ErrClosed
		}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer, sends a close frame and closes the connection.
func (ws *Websocket) Close() error {
	var err error
	ws.closeOnce.Do(func() {
		ws.cancel()
		<-ws.writerDone
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteWait))
		err = ws.conn.Close()
	})
	return err
}
