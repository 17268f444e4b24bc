package handlers

import (
	"net/http"

	"blinddate-backend/internal/services"

	"github.com/go-chi/chi/v5"
)

// EventHandler handles event administration
type EventHandler struct {
	eventService *services.EventService
}

// NewEventHandler creates a new event handler
func NewEventHandler(eventService *services.EventService) *EventHandler {
	return &EventHandler{eventService: eventService}
}

// List handles GET /api/v1/admin/events
func (h *EventHandler) List(w http.ResponseWriter, r *http.Request) {
	events, err := h.eventService.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to list events")
		return
	}
	respondJSON(w, http.StatusOK, events)
}

// Get handles GET /api/v1/admin/events/{id}
func (h *EventHandler) Get(w http.ResponseWriter, r *http.Request) {
	event, err := h.eventService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Failed to get event")
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// Create handles POST /api/v1/admin/events
func (h *EventHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.EventInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.eventService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to create event")
		return
	}
	respondJSON(w, http.StatusCreated, event)
}

// Update handles PUT /api/v1/admin/events/{id}
func (h *EventHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.EventInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	event, err := h.eventService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "Failed to update event")
		return
	}
	respondJSON(w, http.StatusOK, event)
}

// Delete handles DELETE /api/v1/admin/events/{id}
func (h *EventHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.eventService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "Failed to delete event")
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}
