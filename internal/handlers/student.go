package handlers

import (
	"bytes"
	"io"
	"net/http"
	"strings"

	"blinddate-backend/internal/middleware"
	"blinddate-backend/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxImportSize = 5 << 20

// StudentHandler handles roster administration and student self-service
type StudentHandler struct {
	studentService *services.StudentService
	pairingService *services.PairingService
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(studentService *services.StudentService, pairingService *services.PairingService) *StudentHandler {
	return &StudentHandler{studentService: studentService, pairingService: pairingService}
}

// BulkDeleteRequest represents the request body for deleting many students
type BulkDeleteRequest struct {
	IDs []string `json:"ids" validate:"required,min=1"`
}

// BulkDeleteResponse reports how many students were deleted
type BulkDeleteResponse struct {
	Success bool `json:"success"`
	Deleted int  `json:"deleted"`
}

// ProfileRequest represents the student's own profile edit
type ProfileRequest struct {
	Name          string `json:"name"`
	ProfilePicURL string `json:"profilePicUrl"`
}

// List handles GET /api/v1/admin/students
func (h *StudentHandler) List(w http.ResponseWriter, r *http.Request) {
	students, err := h.studentService.List(r.Context())
	if err != nil {
		respondServiceError(w, err, "Failed to list students")
		return
	}
	respondJSON(w, http.StatusOK, students)
}

// Get handles GET /api/v1/admin/students/{id}
func (h *StudentHandler) Get(w http.ResponseWriter, r *http.Request) {
	student, err := h.studentService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondServiceError(w, err, "Failed to get student")
		return
	}
	respondJSON(w, http.StatusOK, student)
}

// Create handles POST /api/v1/admin/students
func (h *StudentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req services.StudentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.studentService.Create(r.Context(), req)
	if err != nil {
		respondServiceError(w, err, "Failed to create student")
		return
	}
	respondJSON(w, http.StatusCreated, student)
}

// Update handles PUT /api/v1/admin/students/{id}
func (h *StudentHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req services.StudentInput
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.studentService.Update(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		respondServiceError(w, err, "Failed to update student")
		return
	}
	respondJSON(w, http.StatusOK, student)
}

// Delete handles DELETE /api/v1/admin/students/{id}
func (h *StudentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.studentService.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		respondServiceError(w, err, "Failed to delete student")
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// BulkDelete handles POST /api/v1/admin/students/bulk-delete
func (h *StudentHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req BulkDeleteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	deleted, err := h.studentService.DeleteMany(r.Context(), req.IDs)
	if err != nil {
		respondServiceError(w, err, "Bulk delete incomplete")
		return
	}
	respondJSON(w, http.StatusOK, BulkDeleteResponse{Success: true, Deleted: deleted})
}

// Import handles POST /api/v1/admin/students/import. The CSV is read from
// the "file" field of a multipart form or from the raw body.
func (h *StudentHandler) Import(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxImportSize)

	var src io.Reader
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		file, _, err := r.FormFile("file")
		if err != nil {
			respondError(w, "Please choose a CSV file", http.StatusBadRequest)
			return
		}
		defer file.Close()
		src = file
	} else {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			respondError(w, "Could not read upload", http.StatusBadRequest)
			return
		}
		src = bytes.NewReader(body)
	}

	result, err := h.studentService.ImportCSV(r.Context(), src)
	if err != nil {
		respondServiceError(w, err, "Failed to import students")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// Export handles GET /api/v1/admin/students/export
func (h *StudentHandler) Export(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.studentService.ExportCSV(r.Context(), &buf); err != nil {
		respondServiceError(w, err, "Failed to export students")
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", `attachment; filename="students.csv"`)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error().Err(err).Msg("Failed to write CSV export")
	}
}

// Me handles GET /api/v1/me
func (h *StudentHandler) Me(w http.ResponseWriter, r *http.Request) {
	student, err := h.studentService.Get(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to load profile")
		return
	}
	respondJSON(w, http.StatusOK, student)
}

// UpdateMe handles PUT /api/v1/me
func (h *StudentHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	student, err := h.studentService.UpdateProfile(r.Context(), middleware.GetUserID(r.Context()), req.Name, req.ProfilePicURL)
	if err != nil {
		respondServiceError(w, err, "Failed to update profile")
		return
	}
	respondJSON(w, http.StatusOK, student)
}

// MyDates handles GET /api/v1/me/dates
func (h *StudentHandler) MyDates(w http.ResponseWriter, r *http.Request) {
	dates, err := h.pairingService.MyDates(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		respondServiceError(w, err, "Failed to load dates")
		return
	}
	respondJSON(w, http.StatusOK, dates)
}
