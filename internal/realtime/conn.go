package realtime

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	outboxSize   = 32
	writeTimeout = 10 * time.Second
)

// ErrConnClosed is returned by Send on a closed or congested connection.
var ErrConnClosed = errors.New("connection closed or congested")

// wsConn adapts a gorilla websocket to the hub's Conn interface. Outbound
// frames go through a buffered outbox drained by a single writer goroutine,
// so Send never blocks on a slow peer and frame order is preserved.
type wsConn struct {
	sock *websocket.Conn
	out  chan Frame
	done chan struct{}
	once sync.Once
}

// NewConn wraps an upgraded websocket for the hub.
func NewConn(sock *websocket.Conn) Conn {
	return newWSConn(sock)
}

func newWSConn(sock *websocket.Conn) *wsConn {
	c := &wsConn{
		sock: sock,
		out:  make(chan Frame, outboxSize),
		done: make(chan struct{}),
	}
	go c.writePump()
	return c
}

func (c *wsConn) writePump() {
	for {
		select {
		case f := <-c.out:
			c.sock.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.sock.WriteJSON(f); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			return
		}
	}
}

// Send queues a frame for delivery. A full outbox means the peer is not
// draining; report failure so the hub prunes the connection.
func (c *wsConn) Send(f Frame) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}

	select {
	case c.out <- f:
		return nil
	default:
		return ErrConnClosed
	}
}

// Close shuts the writer down and closes the socket. Safe to call more than
// once.
func (c *wsConn) Close() {
	c.once.Do(func() {
		close(c.done)
		c.sock.Close()
	})
}
