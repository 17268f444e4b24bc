package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"blinddate-backend/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type identitySet map[string]bool

func (s identitySet) Active(ctx context.Context, studentID string) (bool, error) {
	return s[studentID], nil
}

func echoSubject(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(GetUserID(r.Context())))
}

func TestAuthMiddleware(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	identities := identitySet{"01001": true}
	h := AuthMiddleware(tokens, identities, services.RoleStudent)(http.HandlerFunc(echoSubject))

	issue := func(subject, role string) string {
		token, err := tokens.Issue(subject, role)
		require.NoError(t, err)
		return "Bearer " + token
	}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"no header", "", http.StatusUnauthorized, ""},
		{"not bearer", "Basic abc", http.StatusUnauthorized, ""},
		{"garbage token", "Bearer abc", http.StatusUnauthorized, ""},
		{"wrong role", issue("admin@hall.edu", services.RoleAdmin), http.StatusForbidden, ""},
		{"revoked student", issue("01002", services.RoleStudent), http.StatusUnauthorized, ""},
		{"active student", issue("01001", services.RoleStudent), http.StatusOK, "01001"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, rr.Body.String())
			}
		})
	}
}

func TestAnonymousSession(t *testing.T) {
	tokens := services.NewTokenService("secret", time.Hour)
	h := AnonymousSession(tokens)(http.HandlerFunc(echoSubject))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/api/v1/otp/send", nil))
	minted := rr.Header().Get(SessionHeader)
	require.NotEmpty(t, minted)
	assert.True(t, strings.HasPrefix(rr.Body.String(), "anon-"))

	session, err := tokens.Validate(minted)
	require.NoError(t, err)
	assert.Equal(t, rr.Body.String(), session.Subject)

	// A valid token is reused and nothing new is minted.
	req := httptest.NewRequest(http.MethodPost, "/api/v1/otp/send", nil)
	req.Header.Set("Authorization", "Bearer "+minted)
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	assert.Empty(t, rr.Header().Get(SessionHeader))
	assert.Equal(t, session.Subject, rr.Body.String())
}

func TestValidateWebSocketToken(t *testing.T) {
	ctx := context.Background()
	tokens := services.NewTokenService("secret", time.Hour)
	identities := identitySet{"01001": true}

	student, err := tokens.Issue("01001", services.RoleStudent)
	require.NoError(t, err)
	id, err := ValidateWebSocketToken(ctx, student, tokens, identities)
	require.NoError(t, err)
	assert.Equal(t, "01001", id)

	_, err = ValidateWebSocketToken(ctx, "", tokens, identities)
	assert.Error(t, err)

	anon, _, err := tokens.IssueAnonymous()
	require.NoError(t, err)
	_, err = ValidateWebSocketToken(ctx, anon, tokens, identities)
	assert.Error(t, err)

	gone, err := tokens.Issue("01002", services.RoleStudent)
	require.NoError(t, err)
	_, err = ValidateWebSocketToken(ctx, gone, tokens, identities)
	assert.Error(t, err)
}
