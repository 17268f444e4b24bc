package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// Session roles
const (
	RoleAnonymous = "anonymous"
	RoleStudent   = "student"
	RoleAdmin     = "admin"
)

// Session is what a valid token says about its bearer
type Session struct {
	Subject string
	Role    string
}

// TokenService mints and checks HS256 session tokens
type TokenService struct {
	secret  []byte
	ttl     time.Duration
	nowFunc func() time.Time
}

// NewTokenService creates a new token service
func NewTokenService(secret string, ttl time.Duration) *TokenService {
	return &TokenService{secret: []byte(secret), ttl: ttl, nowFunc: time.Now}
}

// Issue signs a token for subject with role
func (s *TokenService) Issue(subject, role string) (string, error) {
	now := s.nowFunc()
	claims := jwt.MapClaims{
		"sub":  subject,
		"role": role,
		"iat":  now.Unix(),
		"exp":  now.Add(s.ttl).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}

// IssueAnonymous mints a token for a fresh anonymous subject
func (s *TokenService) IssueAnonymous() (string, *Session, error) {
	session := &Session{Subject: "anon-" + uuid.New().String(), Role: RoleAnonymous}
	token, err := s.Issue(session.Subject, session.Role)
	if err != nil {
		return "", nil, err
	}
	return token, session, nil
}

// Validate parses a token and returns its session
func (s *TokenService) Validate(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.nowFunc))
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid token claims")
	}
	subject, _ := claims["sub"].(string)
	role, _ := claims["role"].(string)
	if subject == "" || role == "" {
		return nil, fmt.Errorf("token without subject or role")
	}
	return &Session{Subject: subject, Role: role}, nil
}

// AdminAuth checks the administrator credentials from configuration
type AdminAuth struct {
	email        string
	passwordHash []byte
	tokens       *TokenService
}

// NewAdminAuth creates an admin authenticator. passwordHash is bcrypt.
func NewAdminAuth(email, passwordHash string, tokens *TokenService) *AdminAuth {
	return &AdminAuth{email: email, passwordHash: []byte(passwordHash), tokens: tokens}
}

// Login returns an admin token for valid credentials
func (a *AdminAuth) Login(email, password string) (string, error) {
	if email == "" || password == "" {
		return "", invalid("Email and password are required.")
	}
	if a.email == "" || len(a.passwordHash) == 0 {
		return "", ErrInvalidCredentials
	}
	if !strings.EqualFold(strings.TrimSpace(email), a.email) {
		return "", ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword(a.passwordHash, []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}
	return a.tokens.Issue(a.email, RoleAdmin)
}
