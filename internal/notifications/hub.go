package notifications

import (
	"context"
	"fmt"
	"log"
	"sync"

	"majlis/internal/observability"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

const maxConnsPerUser = 12

// RoomHub manages websocket connections and their room memberships. It is
// connection-centric: each tab gets its own Client keyed by ConnID, and room
// membership is per connection, not per user.
type RoomHub struct {
	mu sync.RWMutex

	// Map: connID -> Client
	clients map[string]*Client

	// Map: userID -> set of that user's connIDs (multi-device support)
	userConns map[uint]map[string]struct{}

	// Map: room -> connID -> Client
	rooms map[string]map[string]*Client
}

// Name returns a human-readable identifier for this hub.
func (h *RoomHub) Name() string { return "room hub" }

// NewRoomHub creates a new RoomHub instance
func NewRoomHub() *RoomHub {
	return &RoomHub{
		clients:   make(map[string]*Client),
		userConns: make(map[uint]map[string]struct{}),
		rooms:     make(map[string]map[string]*Client),
	}
}

// Register creates a Client for a new websocket connection. Returns an error
// if the user has too many open connections.
func (h *RoomHub) Register(userID uint, username string, conn *websocket.Conn) (*Client, error) {
	client := &Client{
		Hub:      h,
		Conn:     conn,
		Send:     make(chan []byte, 256),
		UserID:   userID,
		Username: username,
		ConnID:   uuid.NewString(),
	}
	if err := h.RegisterClient(client); err != nil {
		return nil, err
	}
	return client, nil
}

// RegisterClient adds a pre-built client to the hub, assigning a ConnID if
// it has none.
func (h *RoomHub) RegisterClient(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if client.ConnID == "" {
		client.ConnID = uuid.NewString()
	}
	if client.Hub == nil {
		client.Hub = h
	}

	if h.userConns[client.UserID] == nil {
		h.userConns[client.UserID] = make(map[string]struct{})
	}
	if len(h.userConns[client.UserID]) >= maxConnsPerUser {
		return fmt.Errorf("user connection limit reached")
	}

	h.clients[client.ConnID] = client
	h.userConns[client.UserID][client.ConnID] = struct{}{}

	observability.WebSocketConnectionsTotal.Inc()
	log.Printf("RoomHub: Registered user %d conn %s (Active clients: %d)", client.UserID, client.ConnID, len(h.clients))
	return nil
}

// UnregisterClient removes a connection and cleans up its room memberships.
func (h *RoomHub) UnregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ConnID]; !ok {
		// Already removed
		return
	}
	delete(h.clients, client.ConnID)

	if conns, ok := h.userConns[client.UserID]; ok {
		delete(conns, client.ConnID)
		if len(conns) == 0 {
			delete(h.userConns, client.UserID)
		}
	}

	for room, members := range h.rooms {
		if _, ok := members[client.ConnID]; ok {
			delete(members, client.ConnID)
			observability.WebSocketRoomMembers.WithLabelValues(room).Dec()
			if len(members) == 0 {
				delete(h.rooms, room)
			}
		}
	}

	observability.WebSocketConnectionsTotal.Dec()
	log.Printf("RoomHub: Unregistered user %d conn %s", client.UserID, client.ConnID)
}

// Join adds a connection to a room. Joining twice is a no-op.
func (h *RoomHub) Join(client *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ConnID]; !ok {
		log.Printf("RoomHub: Conn %s not registered, cannot join %s", client.ConnID, room)
		return
	}

	if h.rooms[room] == nil {
		h.rooms[room] = make(map[string]*Client)
	}
	if _, already := h.rooms[room][client.ConnID]; already {
		return
	}
	h.rooms[room][client.ConnID] = client
	observability.WebSocketRoomMembers.WithLabelValues(room).Inc()

	log.Printf("RoomHub: User %d conn %s joined %s", client.UserID, client.ConnID, room)
}

// InRoom reports whether a connection is a member of a room.
func (h *RoomHub) InRoom(client *Client, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return false
	}
	_, member := members[client.ConnID]
	return member
}

// BroadcastToRoom sends a frame to every member of a room. A non-empty
// excludeConnID skips that one connection, which is how sender-exclusive
// events are delivered.
func (h *RoomHub) BroadcastToRoom(room string, message []byte, excludeConnID string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	members, ok := h.rooms[room]
	if !ok {
		return
	}

	for connID, client := range members {
		if excludeConnID != "" && connID == excludeConnID {
			continue
		}
		client.TrySend(message)
	}
}

// BroadcastAll sends a frame to every connected client regardless of rooms.
func (h *RoomHub) BroadcastAll(message []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.clients {
		client.TrySend(message)
	}
}

// RoomSize returns the number of connections in a room.
func (h *RoomHub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// ConnCount returns the number of registered connections.
func (h *RoomHub) ConnCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown gracefully closes all websocket connections
func (h *RoomHub) Shutdown(_ context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, client := range h.clients {
		if client.Conn == nil {
			continue
		}
		if err := client.Conn.WriteMessage(websocket.TextMessage,
			[]byte(`{"type":"server_shutdown","payload":{"message":"Server is shutting down"}}`)); err != nil {
			log.Printf("failed to write shutdown message for user %d: %v", client.UserID, err)
		}
		if err := client.Conn.Close(); err != nil {
			log.Printf("failed to close websocket for user %d: %v", client.UserID, err)
		}
	}

	h.clients = make(map[string]*Client)
	h.userConns = make(map[uint]map[string]struct{})
	h.rooms = make(map[string]map[string]*Client)

	return nil
}
