package gateway

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/voxpod/voxpod/pkg/audio"
	"github.com/voxpod/voxpod/pkg/wire"
)

// writeTimeout bounds every outbound write. Devices behind flaky
// phone hotspots stall for seconds; a blocked write must not wedge the
// pipeline.
const writeTimeout = 2 * time.Second

// ErrConnClosed is returned for writes on a closed connection.
var ErrConnClosed = errors.New("gateway: connection closed")

// Conn is one device WebSocket link. All writes are serialized and
// deadline-bounded; a write failure marks the connection closed.
type Conn struct {
	ws *websocket.Conn

	mu     sync.Mutex
	closed bool
}

func newConn(ws *websocket.Conn) *Conn {
	return &Conn{ws: ws}
}

// Closed reports whether the connection has been torn down.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// markClosed flags the connection; later writes fail fast.
func (c *Conn) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}

// SendJSON writes one JSON control message.
func (c *Conn) SendJSON(msg any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteJSON(msg); err != nil {
		slog.Warn("ws write failed", "error", err)
		return err
	}
	return nil
}

// SendBinary writes one binary message.
func (c *Conn) SendBinary(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		slog.Warn("ws write failed", "error", err)
		return err
	}
	return nil
}

// SendBatch implements delivery.BatchSender: frames go out as one
// length-prefixed binary blob.
func (c *Conn) SendBatch(ctx context.Context, frames []audio.Frame) error {
	blob, err := wire.EncodeBatch(frames)
	if err != nil {
		return err
	}
	return c.SendBinary(blob)
}

// PushFrame implements tool.FramePusher for keepalive frames.
func (c *Conn) PushFrame(ctx context.Context, f audio.Frame) error {
	return c.SendBatch(ctx, []audio.Frame{f})
}

// Ping sends a transport-level ping.
func (c *Conn) Ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrConnClosed
	}
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeTimeout))
}

// CloseWithCode sends a close frame and tears the connection down.
func (c *Conn) CloseWithCode(code int, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		msg := websocket.FormatCloseMessage(code, reason)
		c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeTimeout))
		c.ws.Close()
		c.closed = true
	}
}

// Close tears the connection down without a close frame.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.ws.Close()
		c.closed = true
	}
}
