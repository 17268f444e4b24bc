package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"blinddate-backend/internal/services"

	"github.com/rs/zerolog/log"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionHeader carries a freshly minted anonymous token back to the client.
const SessionHeader = "X-Session-Token"

// IdentityChecker reports whether a student may still hold a session
type IdentityChecker interface {
	Active(ctx context.Context, studentID string) (bool, error)
}

// AuthMiddleware requires a bearer token with one of roles. Student tokens
// are also checked against the student's identity so deleted students are
// locked out before their token expires.
func AuthMiddleware(tokens *services.TokenService, identities IdentityChecker, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				respondError(w, "Authorization header required", http.StatusUnauthorized)
				return
			}

			session, err := tokens.Validate(token)
			if err != nil {
				respondError(w, "Invalid token", http.StatusUnauthorized)
				return
			}
			if !hasRole(session.Role, roles) {
				respondError(w, "You are not allowed to do this", http.StatusForbidden)
				return
			}
			if session.Role == services.RoleStudent {
				active, err := identities.Active(r.Context(), session.Subject)
				if err != nil {
					log.Error().Err(err).Str("student_id", session.Subject).Msg("Failed to check identity")
					respondError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
					return
				}
				if !active {
					respondError(w, "Your account has been removed", http.StatusUnauthorized)
					return
				}
			}

			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// AnonymousSession makes sure every request carries some identity. A valid
// bearer token is used as is; otherwise an anonymous token is minted and
// returned in SessionHeader.
func AnonymousSession(tokens *services.TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token, ok := bearerToken(r); ok {
				if session, err := tokens.Validate(token); err == nil {
					next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
					return
				}
			}

			token, session, err := tokens.IssueAnonymous()
			if err != nil {
				log.Error().Err(err).Msg("Failed to mint anonymous session")
				respondError(w, "Something went wrong. Please try again.", http.StatusInternalServerError)
				return
			}
			w.Header().Set(SessionHeader, token)
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), session)))
		})
	}
}

// WithSession stores a session in ctx
func WithSession(ctx context.Context, session *services.Session) context.Context {
	return context.WithValue(ctx, sessionKey, session)
}

// GetSession extracts the session from context
func GetSession(ctx context.Context) *services.Session {
	session, _ := ctx.Value(sessionKey).(*services.Session)
	return session
}

// GetUserID extracts the subject of the session from context
func GetUserID(ctx context.Context) string {
	if session := GetSession(ctx); session != nil {
		return session.Subject
	}
	return ""
}

// ValidateWebSocketToken validates a student token from the WebSocket query parameter
func ValidateWebSocketToken(ctx context.Context, token string, tokens *services.TokenService, identities IdentityChecker) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token required")
	}
	session, err := tokens.Validate(token)
	if err != nil {
		return "", err
	}
	if session.Role != services.RoleStudent {
		return "", fmt.Errorf("student token required")
	}
	active, err := identities.Active(ctx, session.Subject)
	if err != nil {
		return "", err
	}
	if !active {
		return "", fmt.Errorf("identity revoked")
	}
	return session.Subject, nil
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

func hasRole(role string, allowed []string) bool {
	for _, a := range allowed {
		if role == a {
			return true
		}
	}
	return false
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
