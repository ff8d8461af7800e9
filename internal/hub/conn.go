package hub

import (
	"sync"

	"go-social/internal/user"
)

// Conn is one live client session. Its outbound queue is drained by the
// websocket write pump; the registry closes it on detach.
type Conn struct {
	ID       string
	Identity user.Identity

	send chan []byte

	mu      sync.Mutex
	closed  bool
	holding bool
	held    [][]byte

	// owned by the registry loop
	groups map[string]struct{}
}

func newConn(id string, identity user.Identity, buffer int) *Conn {
	return &Conn{
		ID:       id,
		Identity: identity,
		send:     make(chan []byte, buffer),
		groups:   make(map[string]struct{}),
	}
}

// Outbound is closed once the connection is detached.
func (c *Conn) Outbound() <-chan []byte { return c.send }

func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// push queues data without blocking and reports false when the consumer is
// too slow to keep up. Pushing to a closed connection is a silent drop.
func (c *Conn) push(data []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return true
	}
	if c.holding {
		if len(c.held) >= cap(c.send) {
			return false
		}
		c.held = append(c.held, data)
		return true
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// hold buffers live deliveries until release.
func (c *Conn) hold() {
	c.mu.Lock()
	c.holding = true
	c.mu.Unlock()
}

// release queues first (if any) ahead of every delivery held since hold.
func (c *Conn) release(first []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	held := c.held
	c.held = nil
	c.holding = false
	if c.closed {
		return true
	}
	if first != nil {
		held = append([][]byte{first}, held...)
	}
	for _, data := range held {
		select {
		case c.send <- data:
		default:
			return false
		}
	}
	return true
}

func (c *Conn) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.held = nil
	close(c.send)
}
