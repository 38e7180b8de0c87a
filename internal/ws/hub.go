package ws

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Envelope is the wire frame for every outbound event.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Hub maintains the set of active clients and the session rooms they are
// subscribed to. It implements the engine's emitter and presence contracts.
type Hub struct {
	clients map[string]*Client            // playerID -> Client
	rooms   map[string]map[string]*Client // sessionID -> playerID -> Client
	mu      sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// register adds a client, replacing any previous connection for the same
// player. Returns true when this was a reconnect.
func (h *Hub) register(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	isReconnect := false
	if old, exists := h.clients[client.playerID]; exists {
		log.Printf("[WS] Player %s reconnecting, closing old connection", client.playerID)
		old.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "replaced by new connection"),
			time.Now().Add(5*time.Second))
		old.conn.Close()
		old.closeSend()
		// Move the old connection's room memberships over.
		for _, room := range h.rooms {
			if room[client.playerID] != nil {
				room[client.playerID] = client
			}
		}
		isReconnect = true
	}
	h.clients[client.playerID] = client
	return isReconnect
}

// unregister removes a client unless it has already been replaced by a newer
// connection for the same player.
func (h *Hub) unregister(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	if cur, ok := h.clients[client.playerID]; !ok || cur != client {
		return false
	}
	delete(h.clients, client.playerID)
	for sessionID, room := range h.rooms {
		if room[client.playerID] == client {
			delete(room, client.playerID)
			if len(room) == 0 {
				delete(h.rooms, sessionID)
			}
		}
	}
	client.closeSend()
	return true
}

// JoinRoom subscribes the player's current connection to a session's events.
func (h *Hub) JoinRoom(sessionID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	client, ok := h.clients[playerID]
	if !ok {
		return
	}
	room, ok := h.rooms[sessionID]
	if !ok {
		room = make(map[string]*Client)
		h.rooms[sessionID] = room
	}
	room[playerID] = client
}

// LeaveRoom unsubscribes the player from a session's events.
func (h *Hub) LeaveRoom(sessionID, playerID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room, ok := h.rooms[sessionID]
	if !ok {
		return
	}
	delete(room, playerID)
	if len(room) == 0 {
		delete(h.rooms, sessionID)
	}
}

// ToSession sends an event to every connection in the session's room.
func (h *Hub) ToSession(sessionID, event string, payload any) {
	data, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		log.Printf("[WS] Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, client := range h.rooms[sessionID] {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Send buffer full for player %s in session %s, dropping %s", client.playerID, sessionID, event)
		}
	}
}

// ToPlayer sends an event to one player's connection, if open.
func (h *Hub) ToPlayer(playerID, event string, payload any) {
	data, err := json.Marshal(Envelope{Type: event, Data: payload})
	if err != nil {
		log.Printf("[WS] Error marshaling %s event: %v", event, err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if client, exists := h.clients[playerID]; exists {
		select {
		case client.send <- data:
		default:
			log.Printf("[WS] Send buffer full for player %s, dropping %s", playerID, event)
		}
	}
}

// Connected reports whether the player has an open connection.
func (h *Hub) Connected(playerID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[playerID]
	return ok
}

// ConnectedCount reports the number of open connections.
func (h *Hub) ConnectedCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
