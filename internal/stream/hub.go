// Package stream broadcasts alert lifecycle events to WebSocket clients.
package stream

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"

	"escalation-service/internal/logging"
	"escalation-service/internal/models"
)

// maxConns caps concurrent stream clients.
const maxConns = 100

// Hub fans alert events out to connected WebSocket clients. It implements
// engine.EventSink. Writes that fail evict the connection.
type Hub struct {
	mu     sync.Mutex
	conns  map[*websocket.Conn]bool
	logger *logging.Logger
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		conns:  make(map[*websocket.Conn]bool),
		logger: logger,
	}
}

// Add registers a client connection. Returns false when the hub is full.
func (h *Hub) Add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.conns) >= maxConns {
		h.logger.Warnf("Stream hub full, rejecting connection")
		return false
	}
	h.conns[conn] = true
	h.logger.Infof("Stream client connected (total: %d)", len(h.conns))
	return true
}

// Remove unregisters a client connection.
func (h *Hub) Remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.conns[conn]; ok {
		delete(h.conns, conn)
		h.logger.Infof("Stream client disconnected (remaining: %d)", len(h.conns))
	}
}

// Publish sends one event to every connected client.
func (h *Hub) Publish(ev models.AlertEvent) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Errorf("Failed to marshal alert event: %v", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Errorf("Failed to push alert event, dropping client: %v", err)
			conn.Close()
			delete(h.conns, conn)
		}
	}
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for conn := range h.conns {
		conn.Close()
		delete(h.conns, conn)
	}
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
