package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/telecare-platform/signaling-service/internal/domain"
)

type Conn interface {
	Send(ev domain.Event) error
	Close() error
	ID() string
}

// Hub tracks every live connection by its gateway-assigned id. It is the
// PeerSender the services fan out through: sending to an id that already
// disconnected is a silent drop, never an error.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.conns[c.ID()] = c
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.conns, c.ID())
}

func (h *Hub) Send(connectionID string, ev domain.Event) error {
	h.mu.RLock()
	c, ok := h.conns[connectionID]
	h.mu.RUnlock()
	if !ok {
		return nil // recipient already gone; best-effort
	}
	return c.Send(ev)
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.conns)
}

type wsConn struct {
	conn   *websocket.Conn
	id     string
	sendMu chan struct{}
	closed chan struct{}

	mu      sync.Mutex
	pending *domain.Profile // set-profile received before any join
}

func newWsConn(c *websocket.Conn, id string) *wsConn {
	return &wsConn{
		conn:   c,
		id:     id,
		sendMu: make(chan struct{}, 1),
		closed: make(chan struct{}),
	}
}

func (c *wsConn) Send(ev domain.Event) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(ev)
}

func (c *wsConn) Close() error {
	select {
	case <-c.closed:
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) ID() string { return c.id }

func (c *wsConn) setPendingProfile(p domain.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		c.pending = &p
		return
	}
	merged := c.pending.Merge(p)
	c.pending = &merged
}

func (c *wsConn) takePendingProfile() (domain.Profile, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending == nil {
		return domain.Profile{}, false
	}
	p := *c.pending
	c.pending = nil
	return p, true
}
