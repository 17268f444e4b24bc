package handlers

import (
	"errors"
	"net/http"

	"blinddate-backend/internal/models"
	"blinddate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// PairingHandler handles partnering administration
type PairingHandler struct {
	pairingService *services.PairingService
}

// NewPairingHandler creates a new pairing handler
func NewPairingHandler(pairingService *services.PairingService) *PairingHandler {
	return &PairingHandler{pairingService: pairingService}
}

// PartneringResponse is a partnering as returned by the API
type PartneringResponse struct {
	ID string `json:"id"`
	*models.Partnering
}

// GenerateRequest represents the request body for generating pairings
type GenerateRequest struct {
	EventID string `json:"eventId"`
}

// CreatePairingRequest represents the request body for a manual pairing
type CreatePairingRequest struct {
	EventID      string   `json:"eventId"`
	PrimaryID    string   `json:"primaryId"`
	SecondaryIDs []string `json:"secondaryIds"`
}

// EditPairingRequest represents the request body for editing secondaries
type EditPairingRequest struct {
	SecondaryIDs []string `json:"secondaryIds"`
}

// ClearResponse reports how many partnerings were removed
type ClearResponse struct {
	Success bool   `json:"success"`
	Deleted int    `json:"deleted"`
	Message string `json:"message,omitempty"`
}

func toResponses(partnerings []*models.Partnering) []PartneringResponse {
	out := make([]PartneringResponse, 0, len(partnerings))
	for _, p := range partnerings {
		out = append(out, PartneringResponse{ID: p.ID, Partnering: p})
	}
	return out
}

// List handles GET /api/v1/admin/partnerings
func (h *PairingHandler) List(w http.ResponseWriter, r *http.Request) {
	partnerings, err := h.pairingService.List(r.Context(), r.URL.Query().Get("eventId"))
	if err != nil {
		respondServiceError(w, err, "Failed to list pairings")
		return
	}
	respondJSON(w, http.StatusOK, toResponses(partnerings))
}

// Grouped handles GET /api/v1/admin/partnerings/grouped
func (h *PairingHandler) Grouped(w http.ResponseWriter, r *http.Request) {
	partnerings, err := h.pairingService.List(r.Context(), "")
	if err != nil {
		respondServiceError(w, err, "Failed to list pairings")
		return
	}
	grouped := make(map[string][]PartneringResponse)
	for eventID, group := range services.GroupByEvent(partnerings) {
		grouped[eventID] = toResponses(group)
	}
	respondJSON(w, http.StatusOK, grouped)
}

// Generate handles POST /api/v1/admin/partnerings/generate
func (h *PairingHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	partnerings, err := h.pairingService.Generate(r.Context(), req.EventID)
	if err != nil {
		respondServiceError(w, err, "Failed to generate pairings")
		return
	}
	respondJSON(w, http.StatusCreated, toResponses(partnerings))
}

// Create handles POST /api/v1/admin/partnerings
func (h *PairingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreatePairingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.pairingService.CreateManual(r.Context(), req.EventID, req.PrimaryID, req.SecondaryIDs)
	if err != nil {
		respondServiceError(w, err, "Failed to create pairing")
		return
	}
	respondJSON(w, http.StatusCreated, PartneringResponse{ID: p.ID, Partnering: p})
}

// Edit handles PATCH /api/v1/admin/partnerings/{id}
func (h *PairingHandler) Edit(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req EditPairingRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	p, err := h.pairingService.EditSecondaries(r.Context(), id, req.SecondaryIDs)
	if err != nil {
		respondServiceError(w, err, "Failed to edit pairing")
		return
	}
	respondJSON(w, http.StatusOK, PartneringResponse{ID: p.ID, Partnering: p})
}

// ClearAll handles DELETE /api/v1/admin/partnerings?confirm=true. It
// removes the partnerings of every event, not only the selected one.
func (h *PairingHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	confirmed := r.URL.Query().Get("confirm") == "true"

	deleted, err := h.pairingService.ClearAll(r.Context(), confirmed)
	if errors.Is(err, services.ErrNothingToClear) {
		respondJSON(w, http.StatusOK, ClearResponse{Success: true, Message: err.Error()})
		return
	}
	if err != nil {
		respondServiceError(w, err, "Failed to clear pairings")
		return
	}

	log.Info().Int("deleted", deleted).Msg("Pairings cleared by admin")
	respondJSON(w, http.StatusOK, ClearResponse{Success: true, Deleted: deleted})
}
