// Package signal is the websocket adapter: one bidirectional event
// channel per connection, envelope dispatch into the session state
// machine, and the broadcast gateway that fans room state back out.
package signal

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"
)

var ErrBackpressure = errors.New("backpressure")

// sender is the minimum surface the hub needs to push a frame. Tests
// substitute in-memory fakes.
type sender interface {
	TrySend([]byte) error
}

// WsConn wraps a websocket with a bounded send queue. Slow consumers
// drop frames instead of blocking the publisher.
type WsConn struct {
	conn *websocket.Conn
	send chan []byte

	mu     sync.RWMutex
	closed bool
}

func newWsConn(ws *websocket.Conn) *WsConn {
	return &WsConn{
		conn: ws,
		send: make(chan []byte, 32),
	}
}

func (c *WsConn) TrySend(b []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- b:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}
