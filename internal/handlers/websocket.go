package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"blinddate-backend/internal/middleware"
	"blinddate-backend/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // the SPA is served from another origin
	},
}

// WebSocketHandler handles student WebSocket connections
type WebSocketHandler struct {
	hub             *services.WSHub
	tokens          *services.TokenService
	identityService *services.IdentityService
	pairingService  *services.PairingService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	tokens *services.TokenService,
	identityService *services.IdentityService,
	pairingService *services.PairingService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:             hub,
		tokens:          tokens,
		identityService: identityService,
		pairingService:  pairingService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	studentID, err := middleware.ValidateWebSocketToken(ctx, r.URL.Query().Get("token"), h.tokens, h.identityService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(studentID, conn)
	defer h.hub.Unregister(studentID, conn)

	h.sendDates(ctx, studentID)

	for {
		_, messageBytes, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("student_id", studentID).Msg("WebSocket error")
			}
			break
		}

		var msg services.WSMessage
		if err := json.Unmarshal(messageBytes, &msg); err != nil {
			h.sendErrorToUser(studentID, "Invalid message format")
			continue
		}
		h.handleMessage(ctx, studentID, msg)
	}
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(ctx context.Context, studentID string, msg services.WSMessage) {
	switch msg.Type {
	case "ping":
		if err := h.hub.SendToUser(studentID, services.WSMessage{Type: "pong"}); err != nil {
			log.Debug().Err(err).Str("student_id", studentID).Msg("Failed to send pong")
		}
	case "get_dates":
		h.sendDates(ctx, studentID)
	default:
		h.sendErrorToUser(studentID, "Unknown message type")
	}
}

// sendDates pushes the student's current matches
func (h *WebSocketHandler) sendDates(ctx context.Context, studentID string) {
	dates, err := h.pairingService.MyDates(ctx, studentID)
	if err != nil {
		log.Error().Err(err).Str("student_id", studentID).Msg("Failed to load dates")
		h.sendErrorToUser(studentID, "Failed to load your dates")
		return
	}
	if err := h.hub.SendToUser(studentID, services.WSMessage{Type: "dates", Data: dates}); err != nil {
		log.Error().Err(err).Str("student_id", studentID).Msg("Failed to send dates")
	}
}

// sendErrorToUser sends an error message to a student
func (h *WebSocketHandler) sendErrorToUser(studentID, message string) {
	msg := services.WSMessage{Type: "error", Message: message}
	if err := h.hub.SendToUser(studentID, msg); err != nil {
		log.Debug().Err(err).Str("student_id", studentID).Msg("Failed to send error message")
	}
}
