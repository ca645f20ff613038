package handler

import (
	"log/slog"
	"net/http"

	"github.com/anuragaming1/anura-kun/internal/auth"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// AuthHandler manages the admin session.
//
// HANDLER RESPONSIBILITIES:
//   - HandleLogin     → check the credential, set the session cookie
//   - HandleLogout    → clear the session cookie
//   - HandleCheckAuth → report whether the caller holds a valid session
//
// The session token only ever travels in the HttpOnly cookie. It is never
// part of a response body.
type AuthHandler struct {
	auth         *service.AuthService
	secureCookie bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. secureCookie sets the Secure flag
// on the session cookie and should be on whenever the service runs behind HTTPS.
func NewAuthHandler(authSvc *service.AuthService, secureCookie bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: authSvc, secureCookie: secureCookie, logger: logger}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// HandleLogin exchanges the admin credential for a session cookie.
//
// HTTP: POST /api/login
// REQUEST BODY: {"username": "admin", "password": "..."}
// RESPONSE:     {"success": true} plus Set-Cookie: session=<jwt>
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	token, err := h.auth.Login(req.Username, req.Password)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, token, h.auth.Tokens().TTL(), h.secureCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// HandleLogout clears the session cookie. It always succeeds.
//
// HTTP: POST /api/logout
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearSessionCookie(w, h.secureCookie)
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type checkAuthResponse struct {
	Authenticated bool   `json:"authenticated"`
	Username      string `json:"username,omitempty"`
}

// HandleCheckAuth reports the session state without requiring one.
//
// HTTP: GET /api/check-auth → {"authenticated": true, "username": "admin"}
func (h *AuthHandler) HandleCheckAuth(w http.ResponseWriter, r *http.Request) {
	username, ok := auth.SessionUsername(r, h.auth.Tokens())
	writeJSON(w, http.StatusOK, checkAuthResponse{Authenticated: ok, Username: username})
}
