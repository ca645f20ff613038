package auth

import (
	"context"
	"net/http"
	"time"
)

// SessionCookie is the name of the cookie carrying the session JWT.
const SessionCookie = "session"

// contextKey is unexported so no other package can read or shadow our values.
type contextKey string

const usernameKey contextKey = "username"

// unauthorizedBody matches the JSON error shape the handlers write.
const unauthorizedBody = `{"error":"authentication required","code":"unauthorized"}` + "\n"

// RequireAuth is a middleware that enforces the admin session on protected routes.
//
// It reads the JWT from the "session" HttpOnly cookie, validates it, and
// stores the username in the request context. If the cookie is missing or
// invalid it answers 401 and stops the chain.
//
// MIDDLEWARE PATTERN IN GO:
//
//	func Middleware(next http.Handler) http.Handler {
//	    return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
//	        // ... before ...
//	        next.ServeHTTP(w, r)
//	        // ... after ...
//	    })
//	}
func RequireAuth(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			username, ok := SessionUsername(r, tokens)
			if !ok {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				w.Write([]byte(unauthorizedBody))
				return
			}

			ctx := context.WithValue(r.Context(), usernameKey, username)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UsernameFromContext returns the admin set by RequireAuth.
func UsernameFromContext(ctx context.Context) (string, bool) {
	name, ok := ctx.Value(usernameKey).(string)
	return name, ok && name != ""
}

// SessionUsername validates the session cookie on r without blocking.
// The check-auth endpoint uses it directly since it must answer either way.
func SessionUsername(r *http.Request, tokens *TokenService) (string, bool) {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		return "", false
	}
	username, err := tokens.Validate(cookie.Value)
	if err != nil {
		return "", false
	}
	return username, true
}

// SetSessionCookie stores token in the session cookie.
//
// HttpOnly keeps it away from page JavaScript. SameSite=Lax stops it riding
// along on cross-site POSTs. Secure should be on whenever the service is
// reached over HTTPS.
func SetSessionCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSessionCookie tells the browser to drop the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}
