package handlers

import (
	"net/http"

	"blinddate-backend/internal/middleware"
	"blinddate-backend/internal/services"
)

// PhotoHandler handles profile picture uploads
type PhotoHandler struct {
	photoService *services.PhotoService
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(photoService *services.PhotoService) *PhotoHandler {
	return &PhotoHandler{photoService: photoService}
}

// UploadRequest represents a request for a presigned URL
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// ConfirmRequest represents the request body after a finished upload
type ConfirmRequest struct {
	Key string `json:"key" validate:"required"`
}

// UploadPhoto handles POST /api/v1/me/photo
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID := middleware.GetUserID(ctx)

	var req UploadRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	resp, err := h.photoService.PresignUpload(ctx, studentID, req.ContentType)
	if err != nil {
		respondServiceError(w, err, "Failed to presign upload")
		return
	}
	respondJSON(w, http.StatusOK, resp)
}

// ConfirmPhoto handles POST /api/v1/me/photo/confirm
func (h *PhotoHandler) ConfirmPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	studentID := middleware.GetUserID(ctx)

	var req ConfirmRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.photoService.Confirm(ctx, studentID, req.Key)
	if err != nil {
		respondServiceError(w, err, "Failed to confirm photo")
		return
	}
	respondJSON(w, http.StatusOK, student)
}
