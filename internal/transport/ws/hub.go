package ws

import (
	"sync"
)

type Conn interface {
	ID() string
	Send(msg Message) error
	Close() error
}

// Hub holds every live connection of the single classroom session.
type Hub struct {
	mu    sync.RWMutex
	conns map[string]Conn // connection id -> connection
}

func NewHub() *Hub {
	return &Hub{conns: make(map[string]Conn)}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.conns[c.ID()] = c
}

func (h *Hub) Remove(connID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.conns, connID)
}

// Broadcast sends to every connection, the originator included.
func (h *Hub) Broadcast(msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.conns {
		_ = c.Send(msg) // best-effort
	}
}

// Send delivers to a single connection, if it is still around.
func (h *Hub) Send(connID string, msg Message) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if ok {
		_ = c.Send(msg)
	}
}

// CloseConn force-closes a connection; its read loop then runs the normal
// disconnect path.
func (h *Hub) CloseConn(connID string) {
	h.mu.RLock()
	c, ok := h.conns[connID]
	h.mu.RUnlock()

	if ok {
		_ = c.Close()
	}
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.conns)
}
