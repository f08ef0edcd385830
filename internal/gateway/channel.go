package gateway

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/1vKSfvhNz/farm-backend/internal/registry"
)

var errChannelClosed = errors.New("channel closed")

// wsChannel adapts a gorilla WebSocket connection to registry.Channel.
// Writes are serialized and bounded by a write deadline so a stuck peer
// cannot block a heartbeat or broadcast indefinitely.
type wsChannel struct {
	conn         *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex // serializes frame writes

	mu     sync.RWMutex
	closed bool
}

func newChannel(conn *websocket.Conn, writeTimeout time.Duration) *wsChannel {
	return &wsChannel{
		conn:         conn,
		writeTimeout: writeTimeout,
	}
}

func (c *wsChannel) SendJSON(v any) error {
	c.mu.RLock()
	if c.closed {
		c.mu.RUnlock()
		return errChannelClosed
	}
	c.mu.RUnlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	if err := c.conn.WriteJSON(v); err != nil {
		c.markClosed()
		return err
	}
	return nil
}

func (c *wsChannel) Close(reason registry.CloseReason) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	// Best-effort close frame so the client sees the reason.
	deadline := time.Now().Add(time.Second)
	c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(reason.Code, reason.Text),
		deadline,
	)
	return c.conn.Close()
}

func (c *wsChannel) Alive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return !c.closed
}

func (c *wsChannel) markClosed() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
}
