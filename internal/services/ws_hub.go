package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const wsWriteTimeout = 10 * time.Second

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type      string      `json:"type"`
	Timestamp int64       `json:"timestamp,omitempty"`
	EventID   string      `json:"event_id,omitempty"`
	Message   string      `json:"message,omitempty"`
	Data      interface{} `json:"data,omitempty"`
}

// wsConn serializes writes; gorilla connections allow one writer at a time.
type wsConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *wsConn) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// WSHub manages WebSocket connections of signed-in students
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*wsConn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{connections: make(map[string]*wsConn)}
}

// Register registers a connection for a student, closing any older one
func (h *WSHub) Register(studentID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.connections[studentID]; ok {
		existing.conn.Close()
	}
	h.connections[studentID] = &wsConn{conn: conn}
	log.Info().Str("student_id", studentID).Msg("WebSocket connection registered")
}

// Unregister removes conn if it is still the student's current connection
func (h *WSHub) Unregister(studentID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if current, ok := h.connections[studentID]; ok && current.conn == conn {
		current.conn.Close()
		delete(h.connections, studentID)
		log.Info().Str("student_id", studentID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific student
func (h *WSHub) SendToUser(studentID string, message WSMessage) error {
	h.mu.RLock()
	c, ok := h.connections[studentID]
	h.mu.RUnlock()

	if !ok {
		return fmt.Errorf("student %s is not connected", studentID)
	}

	if message.Timestamp == 0 {
		message.Timestamp = time.Now().UnixMilli()
	}
	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := c.write(data); err != nil {
		h.Unregister(studentID, c.conn)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// IsOnline checks if a student is connected
func (h *WSHub) IsOnline(studentID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.connections[studentID]
	return ok
}

// Online returns the number of connected students
func (h *WSHub) Online() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.connections)
}

func (h *WSHub) connected() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	ids := make([]string, 0, len(h.connections))
	for id := range h.connections {
		ids = append(ids, id)
	}
	return ids
}

// NotifyPairingsUpdated tells the listed students to reload their dates.
// An empty list means everybody connected.
func (h *WSHub) NotifyPairingsUpdated(eventID string, studentIDs []string) {
	if len(studentIDs) == 0 {
		studentIDs = h.connected()
	}
	message := WSMessage{Type: "pairings_updated", EventID: eventID}

	seen := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		if seen[id] || !h.IsOnline(id) {
			continue
		}
		seen[id] = true
		if err := h.SendToUser(id, message); err != nil {
			log.Error().Err(err).Str("student_id", id).Msg("Failed to notify pairing update")
		}
	}
}

// NotifyAnnouncement pushes an announcement to a connected student
func (h *WSHub) NotifyAnnouncement(studentID, text string) {
	if !h.IsOnline(studentID) {
		return
	}
	if err := h.SendToUser(studentID, WSMessage{Type: "announcement", Message: text}); err != nil {
		log.Error().Err(err).Str("student_id", studentID).Msg("Failed to push announcement")
	}
}

// Close closes every connection
func (h *WSHub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, c := range h.connections {
		c.conn.Close()
		delete(h.connections, id)
	}
}
