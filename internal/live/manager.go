// Package live pushes journey conversations to browsers over WebSocket.
package live

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// client is one connected tab. Frames queue on send and a single writer
// goroutine drains them.
type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
	gone chan struct{}
}

func newClient(conn *websocket.Conn, buffer int) *client {
	return &client{conn: conn, send: make(chan []byte, buffer), gone: make(chan struct{})}
}

// enqueue hands a frame to the writer without blocking. It reports false
// when the client is gone or too slow to keep up.
func (c *client) enqueue(frame []byte) bool {
	select {
	case <-c.gone:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *client) close(reason string) {
	c.once.Do(func() {
		close(c.gone)
		if c.conn != nil {
			_ = c.conn.Close(websocket.StatusNormalClosure, reason)
		}
	})
}

// ConnManager tracks the live connection of every user tab. A tab has at
// most one connection; a newer one replaces the old.
type ConnManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*client
}

// NewConnManager creates an empty connection manager.
func NewConnManager() *ConnManager {
	return &ConnManager{active: make(map[string]map[string]*client)}
}

func (m *ConnManager) get(userID, sessionID string) *client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// register adds c for the tab, closing any connection it replaces.
func (m *ConnManager) register(userID, sessionID string, c *client) {
	m.mu.Lock()
	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*client)
	}
	existing := m.active[userID][sessionID]
	m.active[userID][sessionID] = c
	m.mu.Unlock()

	// The close handshake can take seconds; never hold the lock for it.
	if existing != nil && existing != c {
		existing.close("session replaced")
	}
	slog.Info("Live session registered", "user_id", userID, "session_id", sessionID)
}

// unregister removes c if it is still the tab's current connection.
func (m *ConnManager) unregister(userID, sessionID string, c *client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == c {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Live session unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Deliver queues a frame for the tab's connection. It reports whether a
// connection took it.
func (m *ConnManager) Deliver(userID, sessionID string, frame []byte) bool {
	c := m.get(userID, sessionID)
	if c == nil {
		return false
	}
	if !c.enqueue(frame) {
		slog.Warn("Live frame dropped", "user_id", userID, "session_id", sessionID)
		return false
	}
	return true
}

// CloseAll terminates every connection.
func (m *ConnManager) CloseAll() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[string]*client)
	m.mu.Unlock()

	for _, sessions := range active {
		for _, c := range sessions {
			c.close("server shutting down")
		}
	}
}

// Len returns the number of connected tabs.
func (m *ConnManager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}
