package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-at-least-16-chars!!"

// newTestTokenService uses a fixed secret so tests are deterministic.
func newTestTokenService(t *testing.T) *TokenService {
	t.Helper()
	ts, err := NewTokenService(testSecret, time.Hour)
	if err != nil {
		t.Fatalf("NewTokenService: %v", err)
	}
	return ts
}

// =========================================================================
// CONSTRUCTION
// =========================================================================

func TestNewTokenService(t *testing.T) {
	tests := []struct {
		name    string
		secret  string
		ttl     time.Duration
		wantTTL time.Duration
		wantErr bool
	}{
		{"short secret", "short", time.Hour, 0, true},
		{"negative ttl", testSecret, -time.Second, 0, true},
		{"zero ttl means one week", testSecret, 0, 7 * 24 * time.Hour, false},
		{"custom ttl", testSecret, 2 * time.Hour, 2 * time.Hour, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts, err := NewTokenService(tt.secret, tt.ttl)
			if tt.wantErr {
				if err == nil {
					t.Fatal("NewTokenService() expected an error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewTokenService() error = %v", err)
			}
			if ts.TTL() != tt.wantTTL {
				t.Errorf("TTL() = %v, want %v", ts.TTL(), tt.wantTTL)
			}
		})
	}
}

// =========================================================================
// GENERATE / VALIDATE
// =========================================================================

func TestValidate_RoundTrip(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("admin")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	// header.payload.signature
	if strings.Count(token, ".") != 2 {
		t.Errorf("Generate() token doesn't look like a JWT: %q", token)
	}

	got, err := ts.Validate(token)
	if err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got != "admin" {
		t.Errorf("Validate() username = %q, want %q", got, "admin")
	}
}

func TestGenerate_UsesServiceTTL(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("admin")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, &claims{})
	if err != nil {
		t.Fatalf("ParseUnverified() error = %v", err)
	}
	c := parsed.Claims.(*claims)
	life := c.ExpiresAt.Sub(c.IssuedAt.Time)
	if life != time.Hour {
		t.Errorf("token lifetime = %v, want %v", life, time.Hour)
	}
	if c.Issuer != "cloak" {
		t.Errorf("issuer = %q, want %q", c.Issuer, "cloak")
	}
}

func TestValidate_ExpiredToken(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.GenerateWithDuration("admin", -time.Second)
	if err != nil {
		t.Fatalf("GenerateWithDuration() error = %v", err)
	}

	_, err = ts.Validate(token)
	if err == nil {
		t.Fatal("Validate() should return an error for an expired token")
	}
	if !strings.Contains(err.Error(), "expired") {
		t.Errorf("Validate() error = %v, want it to mention expiry", err)
	}
}

func TestValidate_Rejects(t *testing.T) {
	ts := newTestTokenService(t)
	good, _ := ts.Generate("admin")

	other, _ := NewTokenService("wrong-secret-32-chars-long!!!!!!", time.Hour)
	foreign, _ := other.Generate("admin")

	// alg "none" must never be accepted.
	unsigned, _ := jwt.NewWithClaims(jwt.SigningMethodNone, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "admin",
			Issuer:    "cloak",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not.a.jwt.token"},
		{"tampered signature", good[:len(good)-3] + "xxx"},
		{"signed with another secret", foreign},
		{"alg none", unsigned},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ts.Validate(tt.token); err == nil {
				t.Fatal("Validate() should have failed")
			}
		})
	}
}

func TestValidate_EmptySubject(t *testing.T) {
	ts := newTestTokenService(t)

	token, err := ts.Generate("")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if _, err := ts.Validate(token); err == nil {
		t.Fatal("Validate() should reject a token without a subject")
	}
}
