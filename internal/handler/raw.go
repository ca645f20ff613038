package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/middleware"
	"github.com/anuragaming1/anura-kun/internal/resolver"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// RealContentHeader marks responses that carried the real body.
const RealContentHeader = middleware.RealContentHeader

// RawHandler serves snippet bodies as plain text on the public read path.
//
// Every response, including errors, is uncacheable.
type RawHandler struct {
	snippets *service.SnippetService
	resolver *resolver.Resolver
	logger   *slog.Logger
}

// NewRawHandler creates a RawHandler.
func NewRawHandler(snippets *service.SnippetService, res *resolver.Resolver, logger *slog.Logger) *RawHandler {
	return &RawHandler{snippets: snippets, resolver: res, logger: logger}
}

// HandleRaw serves the fake or real body of a snippet.
//
// HTTP: GET /raw/{slug}[?secret=...][&client=...]
//
// RESPONSES:
//   - 200 text/plain, body chosen by the resolver
//   - 400 for an empty or malformed slug
//   - 404 `snippet "<slug>" not found`
//
// The secret query parameter is never logged or echoed.
func (h *RawHandler) HandleRaw(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")
	setRawHeaders(w)

	if _, err := service.ValidateSlug(slug); err != nil {
		writeText(w, http.StatusBadRequest, err.Error())
		return
	}

	snippet, err := h.snippets.Serve(r.Context(), slug)
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			writeText(w, http.StatusNotFound, err.Error())
		case errors.Is(err, apperror.ErrValidation):
			writeText(w, http.StatusBadRequest, err.Error())
		default:
			writeText(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	decision := h.resolver.Resolve(resolver.SignalsFromRequest(r), snippet.SecretKey)
	if decision.Real {
		w.Header().Set(RealContentHeader, "true")
	}

	h.logger.Debug("snippet resolved",
		slog.String("slug", snippet.Slug),
		slog.Bool("real", decision.Real),
		slog.String("rule", decision.Rule),
	)

	writeText(w, http.StatusOK, decision.Pick(snippet.ContentFake, snippet.ContentReal))
}

func setRawHeaders(w http.ResponseWriter) {
	h := w.Header()
	h.Set("Content-Type", "text/plain; charset=utf-8")
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("X-Content-Type-Options", "nosniff")
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Length", fmt.Sprint(len(body)))
	w.WriteHeader(status)
	io.WriteString(w, body)
}
