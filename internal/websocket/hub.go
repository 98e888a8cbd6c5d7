// Package websocket pushes redemption scan events to connected monitor
// dashboards in real time.
package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients map: ClientID -> Client
	clients map[string]*Client

	// Register requests
	register chan *Client

	// Unregister requests
	unregister chan *Client

	// Outbound messages for every connected client
	broadcast chan []byte

	// Mutex for thread-safe access to clients map
	mu sync.RWMutex
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		clients:    make(map[string]*Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			// If a monitor reconnects under the same id, close the old pipe
			if old, ok := h.clients[client.ClientID]; ok {
				close(old.send)
			}
			h.clients[client.ClientID] = client
			log.Printf("📱 Monitor connected: %s", client.ClientID)
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.ClientID]; ok {
				delete(h.clients, client.ClientID)
				close(client.send)
				log.Printf("📴 Monitor disconnected: %s", client.ClientID)
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.RLock()
			for _, client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Buffer full or client dead, drop the message
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast fans a JSON-encoded message out to every connected monitor.
// Never blocks the caller; slow monitors miss events.
func (h *Hub) Broadcast(message interface{}) {
	jsonMsg, err := json.Marshal(message)
	if err != nil {
		log.Printf("Error marshaling message: %v", err)
		return
	}

	select {
	case h.broadcast <- jsonMsg:
	default:
	}
}
