// Package websocket fans fleet events out to connected browser sessions.
package websocket

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/craftops/fleet/pkg/logger"
)

// Message is one event pushed to connected clients
type Message struct {
	Type      string      `json:"type"`
	ServerID  string      `json:"server_id,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// Hub tracks connected clients and broadcasts fleet events to all of them.
// Registration and broadcast run on a single goroutine so the client set
// needs no locking beyond the count.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client

	mu    sync.RWMutex
	count int
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run processes register/unregister/broadcast events until the process exits
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.setCount(len(h.clients))
			logger.Debug("WebSocket client connected", map[string]interface{}{
				"clients": len(h.clients),
			})

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				h.setCount(len(h.clients))
				logger.Debug("WebSocket client disconnected", map[string]interface{}{
					"clients": len(h.clients),
				})
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Slow consumer, drop it rather than stall the hub.
					delete(h.clients, client)
					close(client.send)
				}
			}
			h.setCount(len(h.clients))
		}
	}
}

// Broadcast pushes an event to every connected client. It never blocks the
// caller; when the hub's queue is full the event is dropped.
func (h *Hub) Broadcast(msg Message) {
	if msg.Timestamp.IsZero() {
		msg.Timestamp = time.Now()
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logger.Error("Failed to marshal websocket message", err, nil)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("WebSocket broadcast queue full, dropping event", map[string]interface{}{
			"type": msg.Type,
		})
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}
