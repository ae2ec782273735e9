// Package ws is the websocket transport adapter: one buffered outbound
// queue per connection drained by a dedicated write pump, so a stalled
// recipient never delays emission to other room members.
package ws

import (
	"sync"

	"github.com/gorilla/websocket"

	"labrelay/internal/core"
)

// Conn implements core.Conn over a gorilla websocket.
type Conn struct {
	ws   *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func NewConn(ws *websocket.Conn, sendBuffer int) *Conn {
	return &Conn{
		ws:   ws,
		send: make(chan core.Frame, sendBuffer),
	}
}

func (c *Conn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return core.ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return core.ErrBackpressure
	}
	return nil
}

func (c *Conn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.ws.Close()
	c.mu.Unlock()
}
