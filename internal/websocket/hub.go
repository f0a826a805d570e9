package websocket

import (
	"encoding/json"
	"log"
	"sync"
)

// Hub maintains active WebSocket connections and broadcasts messages.
// Supervisors and admins subscribe for live agent positions and session
// changes; vendors subscribe for notifications about their own session.
type Hub struct {
	// Registered clients (agentID -> Client)
	clients map[string]*Client

	// Inbound messages from clients
	broadcast chan *Message

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Mutex for thread-safe client map access
	mu sync.RWMutex
}

// Message represents a message to broadcast to a specific agent
type Message struct {
	AgentID string
	Data    interface{}
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		broadcast:  make(chan *Message, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.AgentID] = client
			h.mu.Unlock()
			log.Printf("✅ [WEBSOCKET] Client connected: %s (%s), total: %d", client.AgentID, client.Role, h.GetClientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.AgentID]; ok {
				delete(h.clients, client.AgentID)
				close(client.send)
				log.Printf("🔴 [WEBSOCKET] Client disconnected: %s (%s), remaining: %d", client.AgentID, client.Role, len(h.clients))
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			data, err := json.Marshal(message.Data)
			if err != nil {
				log.Printf("❌ Failed to marshal message: %v", err)
				continue
			}

			// Write lock: the full-buffer branch closes the channel and
			// mutates the map, which must not interleave with readers
			h.mu.Lock()
			if client, ok := h.clients[message.AgentID]; ok {
				select {
				case client.send <- data:
				default:
					// Client buffer full, disconnect
					close(client.send)
					delete(h.clients, message.AgentID)
					log.Printf("⚠️ Client buffer full, disconnecting: %s", message.AgentID)
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastToAgent sends a message to a specific agent
func (h *Hub) BroadcastToAgent(agentID string, data interface{}) {
	h.broadcast <- &Message{
		AgentID: agentID,
		Data:    data,
	}
}

// BroadcastToRole sends a message to all agents with a specific role
func (h *Hub) BroadcastToRole(role string, data interface{}) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	dataBytes, err := json.Marshal(data)
	if err != nil {
		log.Printf("❌ Failed to marshal broadcast message: %v", err)
		return
	}

	for _, client := range h.clients {
		if client.Role == role {
			select {
			case client.send <- dataBytes:
			default:
				// Buffer full, skip this client
			}
		}
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsAgentConnected checks if an agent is currently connected
func (h *Hub) IsAgentConnected(agentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[agentID]
	return ok
}

// GetConnectedClientIDs returns a list of all connected client IDs
func (h *Hub) GetConnectedClientIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.clients))
	for agentID := range h.clients {
		ids = append(ids, agentID)
	}
	return ids
}
