// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (business layer) → validates, enforces rules, orchestrates
//	Repository (data layer)  → reads/writes the backend
//
// The service takes primitives (slug, content strings), never *http.Request,
// so the admin CLI uses the exact same rules as the HTTP API.
//
// DEPENDENCY INJECTION:
// SnippetService takes a repository.SnippetRepository (interface), NOT a
// *sqlite.DB. Tests pass a hand-written mock, production passes whichever
// backend STORE_DRIVER selects.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository"
	"github.com/anuragaming1/anura-kun/internal/secretkey"
)

// Validation and paging limits.
const (
	MaxSlugLength       = 100
	MaxContentBytes     = 4 << 20 // 4 MiB per body
	MaxQueryLength      = 200
	DefaultListLimit    = 20
	MaxListLimit        = 100
	DefaultStoreTimeout = 5 * time.Second
)

// MaxCleanupDays is the largest day count whose duration still fits in a
// time.Duration.
const MaxCleanupDays = int(math.MaxInt64 / int64(24*time.Hour))

// slugPattern is the accepted slug alphabet. It is checked after trimming.
var slugPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// CreateResult is what the creator gets back. The secret key is shown once
// here and afterwards only through the admin CLI dump.
type CreateResult struct {
	Slug      string
	SecretKey string
}

// SnippetService handles business logic for cloaked snippets.
type SnippetService struct {
	repo    repository.SnippetRepository
	logger  *slog.Logger
	timeout time.Duration
	newKey  func() (string, error)
}

// NewSnippetService creates a SnippetService. Every repository call is bounded
// by timeout; zero means DefaultStoreTimeout.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger, timeout time.Duration) *SnippetService {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &SnippetService{
		repo:    repo,
		logger:  logger,
		timeout: timeout,
		newKey:  secretkey.New,
	}
}

// Create validates the input and stores a new snippet under slug.
//
// VALIDATION HAPPENS HERE, NOT IN THE HANDLER:
// Every caller (HTTP, CLI) needs the same rules, and the errors come back as
// apperror.ValidationFailed naming the offending field.
//
// Slug collisions are decided by the repository, atomically. We do not ask
// "is it free?" first because another request could take it in between.
func (s *SnippetService) Create(ctx context.Context, slug, contentFake, contentReal string) (*CreateResult, error) {
	normalized, err := ValidateSlug(slug)
	if err != nil {
		return nil, err
	}
	if err := validateContent("content_fake", contentFake); err != nil {
		return nil, err
	}
	if err := validateContent("content_real", contentReal); err != nil {
		return nil, err
	}

	key, err := s.newKey()
	if err != nil {
		return nil, s.internal("generating secret key", normalized, err)
	}

	snippet := &model.Snippet{
		Slug:        normalized,
		ContentFake: contentFake,
		ContentReal: contentReal,
		SecretKey:   key,
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repo.Create(ctx, snippet); err != nil {
		if errors.Is(err, apperror.ErrConflict) {
			s.logger.Info("slug already taken", slog.String("slug", normalized))
		}
		return nil, s.storeError("creating snippet", normalized, err)
	}

	s.logger.Info("snippet created",
		slog.String("id", snippet.ID),
		slog.String("slug", snippet.Slug),
	)

	return &CreateResult{Slug: snippet.Slug, SecretKey: snippet.SecretKey}, nil
}

// Get is the administrative read. It never counts a view.
func (s *SnippetService) Get(ctx context.Context, slug string) (*model.Snippet, error) {
	normalized, err := ValidateSlug(slug)
	if err != nil {
		return nil, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	snippet, err := s.repo.GetBySlug(ctx, normalized)
	if err != nil {
		return nil, s.storeError("getting snippet", normalized, err)
	}
	return snippet, nil
}

// Serve is the read made on behalf of a client fetching the snippet. It looks
// the snippet up and then counts the view.
//
// A failed increment fails the read.
func (s *SnippetService) Serve(ctx context.Context, slug string) (*model.Snippet, error) {
	snippet, err := s.Get(ctx, slug)
	if err != nil {
		return nil, err
	}
	if err := s.IncrementViews(ctx, snippet.Slug); err != nil {
		return nil, err
	}
	return snippet, nil
}

// IncrementViews counts one view. Unknown slugs are ignored.
func (s *SnippetService) IncrementViews(ctx context.Context, slug string) error {
	normalized := repository.NormalizeSlug(slug)

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	if err := s.repo.IncrementViews(ctx, normalized); err != nil {
		return s.storeError("incrementing views", normalized, err)
	}
	return nil
}

// CheckSlugAvailable reports whether slug is still free. A malformed slug
// is a validation error rather than "unavailable".
func (s *SnippetService) CheckSlugAvailable(ctx context.Context, slug string) (bool, error) {
	normalized, err := ValidateSlug(slug)
	if err != nil {
		return false, err
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	exists, err := s.repo.SlugExists(ctx, normalized)
	if err != nil {
		return false, s.storeError("checking slug", normalized, err)
	}
	return !exists, nil
}

// List is the full dump, secret keys included. Only the admin CLI calls it.
func (s *SnippetService) List(ctx context.Context) ([]model.Snippet, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	snippets, err := s.repo.List(ctx)
	if err != nil {
		return nil, s.storeError("listing snippets", "", err)
	}
	return snippets, nil
}

// ListRecent returns the newest snippets. limit is clamped to 1..MaxListLimit,
// with DefaultListLimit for anything non-positive.
func (s *SnippetService) ListRecent(ctx context.Context, limit int) ([]model.SnippetSummary, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	summaries, err := s.repo.ListRecent(ctx, limit)
	if err != nil {
		return nil, s.storeError("listing recent snippets", "", err)
	}
	return summaries, nil
}

// Delete removes a snippet. The caller must prove ownership with the
// snippet's secret key.
//
// Missing slug → NotFound. Wrong key → Forbidden. If someone else deletes the
// snippet between our read and our delete, the loser gets NotFound, so a slug
// is only ever reported deleted once.
func (s *SnippetService) Delete(ctx context.Context, slug, secretKey string) error {
	normalized, err := ValidateSlug(slug)
	if err != nil {
		return err
	}
	if secretKey == "" {
		return apperror.ValidationFailed("secret_key", "secret key is required")
	}

	snippet, err := s.Get(ctx, normalized)
	if err != nil {
		return err
	}

	if subtle.ConstantTimeCompare([]byte(secretKey), []byte(snippet.SecretKey)) != 1 {
		s.logger.Warn("delete rejected: secret key mismatch", slog.String("slug", normalized))
		return apperror.Forbidden("secret key does not match")
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	deleted, err := s.repo.Delete(ctx, normalized)
	if err != nil {
		return s.storeError("deleting snippet", normalized, err)
	}
	if !deleted {
		return apperror.NotFound("snippet", normalized)
	}

	s.logger.Info("snippet deleted", slog.String("slug", normalized))
	return nil
}

// Search finds snippets whose slug or either body contains query, ignoring case.
func (s *SnippetService) Search(ctx context.Context, query string) ([]model.SnippetSummary, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, apperror.ValidationFailed("q", "search query is required")
	}
	if len(query) > MaxQueryLength {
		return nil, apperror.ValidationFailed("q",
			fmt.Sprintf("search query must be %d characters or less", MaxQueryLength))
	}

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	results, err := s.repo.Search(ctx, query)
	if err != nil {
		return nil, s.storeError("searching snippets", "", err)
	}
	return results, nil
}

// Cleanup deletes every snippet older than maxAge and returns how many went.
func (s *SnippetService) Cleanup(ctx context.Context, maxAge time.Duration) (int, error) {
	if maxAge <= 0 {
		return 0, apperror.ValidationFailed("max_age_days", "max age must be positive")
	}
	cutoff := time.Now().Add(-maxAge)

	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	removed, err := s.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, s.storeError("cleaning up snippets", "", err)
	}

	s.logger.Info("cleanup finished",
		slog.Int("removed", removed),
		slog.Time("cutoff", cutoff),
	)
	return removed, nil
}

// MaxAgeFromDays turns a cleanup age in days, as the HTTP API and the admin
// CLI take it, into a duration for Cleanup. Counts that would overflow are
// rejected instead of wrapping around to a tiny age.
func MaxAgeFromDays(days int) (time.Duration, error) {
	if days <= 0 {
		return 0, apperror.ValidationFailed("max_age_days", "max age must be positive")
	}
	if days > MaxCleanupDays {
		return 0, apperror.ValidationFailed("max_age_days",
			fmt.Sprintf("max age must be %d days or less", MaxCleanupDays))
	}
	return time.Duration(days) * 24 * time.Hour, nil
}

// Count returns the number of stored snippets.
func (s *SnippetService) Count(ctx context.Context) (int, error) {
	ctx, cancel := s.storeCtx(ctx)
	defer cancel()

	n, err := s.repo.Count(ctx)
	if err != nil {
		return 0, s.storeError("counting snippets", "", err)
	}
	return n, nil
}

func (s *SnippetService) storeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

// storeError passes taxonomy errors (NotFound, Conflict, ...) through and turns
// everything else into ErrInternal. The raw cause is logged, never returned.
func (s *SnippetService) storeError(action, slug string, err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return s.internal(action, slug, err)
}

func (s *SnippetService) internal(action, slug string, err error) error {
	attrs := []any{slog.String("error", err.Error())}
	if slug != "" {
		attrs = append(attrs, slog.String("slug", slug))
	}
	if errors.Is(err, context.DeadlineExceeded) {
		attrs = append(attrs, slog.Bool("timeout", true))
	}
	s.logger.Error(action+" failed", attrs...)
	return apperror.Internal(fmt.Errorf("%s: %w", action, err))
}

// ValidateSlug checks slug and returns its normalized form. The raw handler
// calls it directly so a malformed slug gets a 400 without a store round trip.
func ValidateSlug(slug string) (string, error) {
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return "", apperror.ValidationFailed("slug", "slug is required")
	}
	if len(slug) > MaxSlugLength {
		return "", apperror.ValidationFailed("slug",
			fmt.Sprintf("slug must be %d characters or less", MaxSlugLength))
	}
	if !slugPattern.MatchString(slug) {
		return "", apperror.ValidationFailed("slug",
			"slug may only contain letters, digits, '-' and '_'")
	}
	return repository.NormalizeSlug(slug), nil
}

func validateContent(field, content string) error {
	if strings.TrimSpace(content) == "" {
		return apperror.ValidationFailed(field, field+" is required")
	}
	if len(content) > MaxContentBytes {
		return apperror.ValidationFailed(field,
			fmt.Sprintf("%s must be %d bytes or less", field, MaxContentBytes))
	}
	return nil
}
