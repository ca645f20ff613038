// Package auth provides the admin session for the cloak API.
//
// AUTHENTICATION FLOW OVERVIEW:
// 1. Admin POSTs username + password to /api/login
// 2. Server checks them against the single configured credential
// 3. Server issues a JWT, stores it in the HttpOnly "session" cookie
// 4. On subsequent admin API calls, RequireAuth reads the cookie, validates
//    the JWT, and puts the username in the request context
//
// WHY JWT?
// The server keeps no session table. Everything needed (who, until when) is
// inside the signed token, and the signature makes it tamper-proof.
//
// JWT STRUCTURE (three base64-encoded parts separated by dots):
//
//	HEADER.PAYLOAD.SIGNATURE
//	- Header: {"alg":"HS256","typ":"JWT"}
//	- Payload: {"sub":"admin","iss":"cloak","exp":1234567890}
//	- Signature: HMAC-SHA256(header+"."+payload, secretKey)
//
// Side effect of statelessness: logout only clears the cookie. A copied token
// stays valid until it expires.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "cloak"

// DefaultSessionTTL is how long a login lasts: one week.
const DefaultSessionTTL = 7 * 24 * time.Hour

// MinSecretLength is the shortest signing secret NewTokenService accepts.
const MinSecretLength = 16

// TokenService handles JWT creation and validation.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

// NewTokenService creates a TokenService. A ttl of zero means DefaultSessionTTL.
// Example secret: SESSION_SECRET=$(openssl rand -hex 32)
func NewTokenService(secret string, ttl time.Duration) (*TokenService, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("auth: session secret must be at least %d characters", MinSecretLength)
	}
	if ttl < 0 {
		return nil, errors.New("auth: session ttl must not be negative")
	}
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}
	return &TokenService{secret: []byte(secret), ttl: ttl}, nil
}

// TTL is the lifetime of tokens from Generate. The session cookie uses it as Max-Age.
func (s *TokenService) TTL() time.Duration { return s.ttl }

type claims struct {
	jwt.RegisteredClaims
}

// Generate signs a session token for username with the service's TTL.
func (s *TokenService) Generate(username string) (string, error) {
	return s.GenerateWithDuration(username, s.ttl)
}

// GenerateWithDuration signs a token with a custom lifetime.
// Tests use it to mint already-expired tokens.
func (s *TokenService) GenerateWithDuration(username string, d time.Duration) (string, error) {
	now := time.Now()

	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(d)),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, c)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("auth: signing token: %w", err)
	}

	return signed, nil
}

// Validate parses and verifies a token and returns the username in "sub".
//
// VALIDATION CHECKS (performed by the jwt library):
//   - signature is valid
//   - token is not expired, and an expiry is present at all
//   - issuer is "cloak"
//   - algorithm is HS256, so a token with alg "none" is rejected
func (s *TokenService) Validate(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(
		tokenStr,
		&claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("auth: unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", fmt.Errorf("auth: token expired")
		}
		return "", fmt.Errorf("auth: invalid token: %w", err)
	}

	c, ok := token.Claims.(*claims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("auth: invalid token claims")
	}

	if c.Subject == "" {
		return "", fmt.Errorf("auth: token has no subject")
	}

	return c.Subject, nil
}
