package handlers

import (
	"net/http"

	"blinddate-backend/internal/services"
)

// StatsHandler serves the admin dashboard counts
type StatsHandler struct {
	statsService *services.StatsService
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(statsService *services.StatsService) *StatsHandler {
	return &StatsHandler{statsService: statsService}
}

// Get handles GET /api/v1/admin/stats
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.statsService.Compute(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to compute stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}
