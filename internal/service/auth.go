package service

// AuthService is the business logic for the single admin login:
//
//	AuthHandler (HTTP) → AuthService (credential check) → PasswordService (bcrypt)
//	                                                    ↘ TokenService (JWT)
//
// There is exactly one privileged identity, configured at startup, so there
// is no user repository. The credential lives in this struct.

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/auth"
)

// AuthService checks the admin credential and issues session tokens.
type AuthService struct {
	username     string
	passwordHash string
	passwords    *auth.PasswordService
	tokens       *auth.TokenService
	logger       *slog.Logger
}

// NewAuthService wires the configured credential to the token and password services.
// passwordHash must be a bcrypt hash.
func NewAuthService(
	username, passwordHash string,
	passwords *auth.PasswordService,
	tokens *auth.TokenService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordHash,
		passwords:    passwords,
		tokens:       tokens,
		logger:       logger,
	}
}

// Login verifies username and password and returns a signed session token.
//
// A wrong username and a wrong password produce the same Unauthorized error,
// and bcrypt runs in both cases, so response timing doesn't reveal which was wrong.
func (s *AuthService) Login(username, password string) (string, error) {
	userOK := subtle.ConstantTimeCompare([]byte(username), []byte(s.username)) == 1
	err := s.passwords.Verify(s.passwordHash, password)

	if err != nil && !errors.Is(err, auth.ErrInvalidPassword) {
		s.logger.Error("password verification failed", slog.String("error", err.Error()))
		return "", apperror.Internal(err)
	}
	if !userOK || err != nil {
		s.logger.Warn("login rejected", slog.String("username", username))
		return "", apperror.Unauthorized("invalid username or password")
	}

	token, err := s.tokens.Generate(s.username)
	if err != nil {
		s.logger.Error("issuing session token failed", slog.String("error", err.Error()))
		return "", apperror.Internal(fmt.Errorf("generating token: %w", err))
	}

	s.logger.Info("admin logged in", slog.String("username", s.username))
	return token, nil
}

// ValidateToken returns the username a session token was issued to.
func (s *AuthService) ValidateToken(token string) (string, error) {
	username, err := s.tokens.Validate(token)
	if err != nil {
		return "", apperror.Unauthorized("invalid or expired session")
	}
	return username, nil
}

// Tokens exposes the token service for the RequireAuth middleware.
func (s *AuthService) Tokens() *auth.TokenService { return s.tokens }
