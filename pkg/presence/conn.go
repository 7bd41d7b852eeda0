package presence

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	apperrors "github.com/Kalantar81/window-counter/pkg/errors"
	"github.com/Kalantar81/window-counter/pkg/logger"
)

const (
	// sendBufferSize is the per-connection outbound queue length
	sendBufferSize = 64

	writeWait  = 10 * time.Second
	pingPeriod = 30 * time.Second
)

// Conn adapts a WebSocket connection to the Channel interface. Outbound
// messages go through a buffered queue drained by a single writer
// goroutine; Send never blocks.
type Conn struct {
	ws     *websocket.Conn
	send   chan []byte
	done   chan struct{}
	mu     sync.Mutex
	closed bool
}

// NewConn wraps a WebSocket connection and starts its writer goroutine
func NewConn(ws *websocket.Conn) *Conn {
	c := &Conn{
		ws:   ws,
		send: make(chan []byte, sendBufferSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

// Send queues data for delivery. A closed connection or a full buffer
// drops the message and returns an error; the caller treats both as a
// skipped best-effort send.
func (c *Conn) Send(data []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return apperrors.ErrChannelClosed
	}
	c.mu.Unlock()

	select {
	case c.send <- data:
		return nil
	default:
		return apperrors.ErrSendBufferFull
	}
}

// Close closes the underlying WebSocket connection and stops the writer.
// Safe to call multiple times.
func (c *Conn) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.mu.Unlock()

	close(c.done)
	return c.ws.Close()
}

// writePump drains the send queue onto the wire and keeps the connection
// alive with periodic pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Get().DebugWith("write failed, stopping writer", "error", err)
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			return
		}
	}
}
