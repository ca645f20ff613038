package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// DefaultCleanupDays is the max age used when POST /api/cleanup has no body.
const DefaultCleanupDays = 30

// qrSize is the edge length of generated QR codes in pixels.
const qrSize = 256

// SnippetHandler serves the admin snippet API. Every route it owns sits
// behind auth.RequireAuth.
//
// It never encodes a model.Snippet. Listing and search answer with
// model.SnippetSummary, and the only secret key it ever returns is the one
// in the create response, to the admin who just created it.
type SnippetHandler struct {
	snippets *service.SnippetService
	baseURL  *url.URL
	logger   *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler. baseURL may be nil, in which
// case raw URLs are derived from each request's scheme and host.
func NewSnippetHandler(snippets *service.SnippetService, baseURL *url.URL, logger *slog.Logger) *SnippetHandler {
	return &SnippetHandler{snippets: snippets, baseURL: baseURL, logger: logger}
}

type createRequest struct {
	Slug        string `json:"slug"`
	ContentFake string `json:"content_fake"`
	ContentReal string `json:"content_real"`
}

type createResponse struct {
	Success   bool   `json:"success"`
	Slug      string `json:"slug"`
	RawURL    string `json:"raw_url"`
	SecretKey string `json:"secret_key"`
}

// HandleCreate stores a new snippet.
//
// HTTP: POST /api/create
// REQUEST BODY: {"slug": "demo", "content_fake": "...", "content_real": "..."}
// RESPONSE:     {"success": true, "slug": "demo", "raw_url": "https://host/raw/demo", "secret_key": "..."}
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.snippets.Create(r.Context(), req.Slug, req.ContentFake, req.ContentReal)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, createResponse{
		Success:   true,
		Slug:      res.Slug,
		RawURL:    h.rawURL(r, res.Slug),
		SecretKey: res.SecretKey,
	})
}

// HandleCheck reports whether a slug is still free.
//
// HTTP: GET /api/check/{slug} → {"available": true}
func (h *SnippetHandler) HandleCheck(w http.ResponseWriter, r *http.Request) {
	available, err := h.snippets.CheckSlugAvailable(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"available": available})
}

// HandleList returns the newest snippets as summaries.
//
// HTTP: GET /api/snippets[?limit=20]
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, h.logger, apperror.ValidationFailed("limit", "limit must be an integer"))
			return
		}
		limit = n
	}

	summaries, err := h.snippets.ListRecent(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(summaries))
}

// HandleSearch finds snippets by substring.
//
// HTTP: GET /api/search?q=payload
func (h *SnippetHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	results, err := h.snippets.Search(r.Context(), r.URL.Query().Get("q"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNil(results))
}

type deleteRequest struct {
	SecretKey string `json:"secret_key"`
}

// HandleDelete removes a snippet after checking the ownership proof.
//
// HTTP: DELETE /api/snippets/{slug}
// REQUEST BODY: {"secret_key": "..."}
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	var req deleteRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, h.logger, err)
		return
	}

	if err := h.snippets.Delete(r.Context(), chi.URLParam(r, "slug"), req.SecretKey); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

type cleanupRequest struct {
	MaxAgeDays *int `json:"max_age_days"`
}

// HandleCleanup deletes snippets older than max_age_days.
//
// HTTP: POST /api/cleanup
// REQUEST BODY (optional): {"max_age_days": 30}
// RESPONSE: {"success": true, "removed": 3}
func (h *SnippetHandler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	var req cleanupRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, h.logger, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}

	days := DefaultCleanupDays
	if req.MaxAgeDays != nil {
		days = *req.MaxAgeDays
	}

	maxAge, err := service.MaxAgeFromDays(days)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	removed, err := h.snippets.Cleanup(r.Context(), maxAge)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "removed": removed})
}

// HandleQR renders a PNG QR code pointing at the snippet's raw URL.
//
// HTTP: GET /api/qr/{slug}
func (h *SnippetHandler) HandleQR(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	png, err := qrcode.Encode(h.rawURL(r, snippet.Slug), qrcode.Medium, qrSize)
	if err != nil {
		writeError(w, h.logger, fmt.Errorf("encoding QR code: %w", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// rawURL is where a client fetches slug. BASE_URL wins when configured;
// otherwise the URL is rebuilt from the request.
func (h *SnippetHandler) rawURL(r *http.Request, slug string) string {
	if h.baseURL != nil {
		u := *h.baseURL
		u.Path = strings.TrimSuffix(u.Path, "/") + "/raw/" + slug
		return u.String()
	}

	scheme := "http"
	if isSecureRequest(r) {
		scheme = "https"
	}
	host := r.Host
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("%s://%s/raw/%s", scheme, host, slug)
}

func isSecureRequest(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// nonNil makes empty results encode as [] instead of null.
func nonNil(in []model.SnippetSummary) []model.SnippetSummary {
	if in == nil {
		return []model.SnippetSummary{}
	}
	return in
}
