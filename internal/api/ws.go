package api

import (
	"encoding/json"
	"sync"

	"golang.org/x/net/websocket"

	"agentdeck/internal/agent"
)

// statusFrame is the WebSocket message broadcast on status transitions.
type statusFrame struct {
	Type           string       `json:"type"`
	ConversationID string       `json:"conversation_id"`
	Status         agent.Status `json:"status"`
}

// Hub fans conversation status changes out to every connected WebSocket
// client. Delivery is best effort; a slow or dead client is dropped.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]bool)}
}

// BroadcastStatus sends a status frame to all connected clients. It is the
// broadcast callback wired into the agent service.
func (h *Hub) BroadcastStatus(conversationID string, status agent.Status) {
	data, err := json.Marshal(statusFrame{
		Type:           "status",
		ConversationID: conversationID,
		Status:         status,
	})
	if err != nil {
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		if _, err := c.Write(data); err != nil {
			h.remove(c)
		}
	}
}

func (h *Hub) add(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = true
	h.mu.Unlock()
}

func (h *Hub) remove(c *websocket.Conn) {
	h.mu.Lock()
	if h.conns[c] {
		delete(h.conns, c)
		c.Close()
	}
	h.mu.Unlock()
}

// Handler returns the websocket endpoint. The connection is held open until
// the client goes away; inbound frames are read and discarded.
func (h *Hub) Handler() websocket.Handler {
	return websocket.Handler(func(c *websocket.Conn) {
		h.add(c)
		defer h.remove(c)

		buf := make([]byte, 512)
		for {
			if _, err := c.Read(buf); err != nil {
				return
			}
		}
	})
}

// ConnCount reports connected clients, for the health endpoint.
func (h *Hub) ConnCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.conns)
}
