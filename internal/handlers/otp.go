package handlers

import (
	"encoding/json"
	"net/http"

	"blinddate-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// OTPHandler handles the OTP login flow
type OTPHandler struct {
	otpService      *services.OTPService
	identityService *services.IdentityService
	tokens          *services.TokenService
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(otpService *services.OTPService, identityService *services.IdentityService, tokens *services.TokenService) *OTPHandler {
	return &OTPHandler{
		otpService:      otpService,
		identityService: identityService,
		tokens:          tokens,
	}
}

// SendOTPRequest represents the request body for issuing an OTP
type SendOTPRequest struct {
	Phone        string `json:"phone"`
	StudentDocID string `json:"studentDocId"`
}

// VerifyOTPRequest represents the request body for verifying an OTP
type VerifyOTPRequest struct {
	StudentDocID string `json:"studentDocId"`
	OTP          string `json:"otp"`
}

// VerifyOTPResponse carries the student session token
type VerifyOTPResponse struct {
	Success   bool   `json:"success"`
	Token     string `json:"token"`
	StudentID string `json:"studentId"`
}

// LoginRequest starts a login by student ID
type LoginRequest struct {
	StudentID string `json:"studentId"`
}

// LoginResponse echoes the normalized student ID the code was sent for
type LoginResponse struct {
	Success   bool   `json:"success"`
	StudentID string `json:"studentId"`
}

// SendOTP handles POST /api/v1/otp/send. The phone must match the one on file.
func (h *OTPHandler) SendOTP(w http.ResponseWriter, r *http.Request) {
	var req SendOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.otpService.IssueToStudent(r.Context(), req.StudentDocID, req.Phone); err != nil {
		respondServiceError(w, err, "Failed to send OTP")
		return
	}
	respondJSON(w, http.StatusOK, SuccessResponse{Success: true})
}

// VerifyOTP handles POST /api/v1/otp/verify
func (h *OTPHandler) VerifyOTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req VerifyOTPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	studentID := services.NormalizeID(req.StudentDocID)
	if err := h.otpService.Verify(ctx, studentID, req.OTP); err != nil {
		respondServiceError(w, err, "Failed to verify OTP")
		return
	}

	if _, err := h.identityService.Ensure(ctx, studentID); err != nil {
		respondServiceError(w, err, "Failed to resolve identity")
		return
	}
	token, err := h.tokens.Issue(studentID, services.RoleStudent)
	if err != nil {
		log.Error().Err(err).Str("student_id", studentID).Msg("Failed to issue session token")
		respondError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}

	respondJSON(w, http.StatusOK, VerifyOTPResponse{Success: true, Token: token, StudentID: studentID})
}

// Login handles POST /api/v1/auth/login
func (h *OTPHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	studentID := services.NormalizeID(req.StudentID)
	if err := h.otpService.RequestLogin(r.Context(), studentID); err != nil {
		respondServiceError(w, err, "Failed to start login")
		return
	}
	respondJSON(w, http.StatusOK, LoginResponse{Success: true, StudentID: studentID})
}
