package handlers

import (
	"encoding/json"
	"net/http"

	"blinddate-backend/internal/services"
)

// AnnouncementHandler handles SMS and announcement requests
type AnnouncementHandler struct {
	announcementService *services.AnnouncementService
}

// NewAnnouncementHandler creates a new announcement handler
func NewAnnouncementHandler(announcementService *services.AnnouncementService) *AnnouncementHandler {
	return &AnnouncementHandler{announcementService: announcementService}
}

// SendSMSRequest represents the request body for a direct SMS
type SendSMSRequest struct {
	Phone   string `json:"phone"`
	Message string `json:"message"`
}

// SendSMS handles POST /api/v1/admin/sms/send
func (h *AnnouncementHandler) SendSMS(w http.ResponseWriter, r *http.Request) {
	var req SendSMSRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.announcementService.SendSMS(r.Context(), req.Phone, req.Message); err != nil {
		respondServiceError(w, err, "Failed to send SMS")
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// Broadcast handles POST /api/v1/admin/announcements
func (h *AnnouncementHandler) Broadcast(w http.ResponseWriter, r *http.Request) {
	var req services.BroadcastRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.announcementService.Broadcast(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to broadcast announcement")
		return
	}
	respondJSON(w, http.StatusAccepted, result)
}

// List handles GET /api/v1/admin/announcements
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	announcements, err := h.announcementService.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to list announcements")
		return
	}
	respondJSON(w, http.StatusOK, announcements)
}
