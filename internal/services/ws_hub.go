package services

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type          string `json:"type"`
	HighWaterMark int64  `json:"high_water_mark,omitempty"`
	Message       string `json:"message,omitempty"`
}

// WSHub manages WebSocket connections and pushes library change
// notifications, prompting clients to run an incremental sync.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existingConn, exists := h.connections[userID]; exists {
		existingConn.Close()
	}

	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user
func (h *WSHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[userID]; exists {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}

	return nil
}

// Broadcast sends a message to every connected user
func (h *WSHub) Broadcast(message WSMessage) {
	h.mu.RLock()
	userIDs := make([]string, 0, len(h.connections))
	for userID := range h.connections {
		userIDs = append(userIDs, userID)
	}
	h.mu.RUnlock()

	for _, userID := range userIDs {
		if err := h.SendToUser(userID, message); err != nil {
			log.Debug().Err(err).Str("user_id", userID).Msg("Failed to notify user")
		}
	}
}

// LibraryChanged notifies the owner's connected clients that the library
// changed. Public-scope changes are visible to everyone, so they broadcast.
func (h *WSHub) LibraryChanged(owner *string, highWaterMark int64) {
	message := WSMessage{Type: "library_changed", HighWaterMark: highWaterMark}
	if owner == nil {
		h.Broadcast(message)
		return
	}
	if err := h.SendToUser(*owner, message); err != nil {
		log.Debug().Err(err).Str("user_id", *owner).Msg("Failed to notify user")
	}
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}
