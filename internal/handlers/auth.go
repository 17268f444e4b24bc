package handlers

import (
	"net/http"

	"blinddate-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles anonymous and admin sign-in
type AuthHandler struct {
	tokens    *services.TokenService
	adminAuth *services.AdminAuth
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(tokens *services.TokenService, adminAuth *services.AdminAuth) *AuthHandler {
	return &AuthHandler{tokens: tokens, adminAuth: adminAuth}
}

// TokenResponse represents a session token response
type TokenResponse struct {
	Token   string `json:"token"`
	Subject string `json:"subject"`
	Role    string `json:"role"`
}

// AdminLoginRequest represents the request body for admin login
type AdminLoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// Anonymous handles POST /api/v1/auth/anonymous
func (h *AuthHandler) Anonymous(w http.ResponseWriter, r *http.Request) {
	token, session, err := h.tokens.IssueAnonymous()
	if err != nil {
		log.Error().Err(err).Msg("Failed to mint anonymous session")
		respondError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, TokenResponse{Token: token, Subject: session.Subject, Role: session.Role})
}

// AdminLogin handles POST /api/v1/auth/admin
func (h *AuthHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var req AdminLoginRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err.Error(), http.StatusBadRequest)
		return
	}

	token, err := h.adminAuth.Login(req.Email, req.Password)
	if err != nil {
		log.Warn().Str("email", req.Email).Msg("Admin login rejected")
		respondServiceError(w, err, "Admin login failed")
		return
	}
	log.Info().Str("email", req.Email).Msg("Admin signed in")
	respondJSON(w, http.StatusOK, TokenResponse{Token: token, Subject: req.Email, Role: services.RoleAdmin})
}
