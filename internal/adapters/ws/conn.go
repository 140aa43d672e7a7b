// Package ws is the websocket transport adapter: handshake gatekeeping,
// connection pumps, and envelope decoding in front of the collab hub.
package ws

import (
	"errors"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/devcollab/server/internal/domain"
)

var (
	ErrBackpressure = errors.New("backpressure")
	errConnClosed   = errors.New("connection closed")
)

// Conn pairs the raw websocket with the identity verified at handshake.
// The identity is immutable for the connection's life; handlers receive
// it through this struct, never through ambient request state.
type Conn struct {
	id       domain.ConnectionID
	identity domain.Identity
	sock     *websocket.Conn
	send     chan []byte

	mu     sync.RWMutex
	closed bool
}

func newConn(id domain.ConnectionID, identity domain.Identity, sock *websocket.Conn) *Conn {
	return &Conn{
		id:       id,
		identity: identity,
		sock:     sock,
		send:     make(chan []byte, 64),
	}
}

func (c *Conn) ID() domain.ConnectionID   { return c.id }
func (c *Conn) Identity() domain.Identity { return c.identity }

// TrySend queues the frame without blocking. A full buffer means the
// receiver is too slow; the frame is dropped, not retried.
func (c *Conn) TrySend(frame []byte) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errConnClosed
	}
	select {
	case c.send <- frame:
	default:
		return ErrBackpressure
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
	_ = c.sock.Close()
	c.mu.Unlock()
}
