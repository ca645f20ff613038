package repository

import (
	"context"
	"strings"
	"time"

	"github.com/anuragaming1/anura-kun/internal/model"
)

// SnippetRepository is the storage contract every backend implements.
//
// Backends must satisfy the same invariants, checked by the shared suite in
// repository/repotest:
//   - slugs are unique after NormalizeSlug; Create reports apperror.ErrConflict
//     and at most one concurrent Create for a slug succeeds
//   - every slug argument is matched case-insensitively
//   - IncrementViews never loses an update and is a no-op for unknown slugs
//   - ListRecent orders by CreatedAt descending, later insertions first on ties
type SnippetRepository interface {
	// Create fills in ID, CreatedAt, Views and LastAccessed and persists the
	// snippet. Slug and SecretKey must already be set.
	Create(ctx context.Context, snippet *model.Snippet) error
	GetBySlug(ctx context.Context, slug string) (*model.Snippet, error)
	IncrementViews(ctx context.Context, slug string) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	List(ctx context.Context) ([]model.Snippet, error)
	ListRecent(ctx context.Context, limit int) ([]model.SnippetSummary, error)
	Delete(ctx context.Context, slug string) (bool, error)
	Search(ctx context.Context, query string) ([]model.SnippetSummary, error)
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error)
	Count(ctx context.Context) (int, error)
	Close() error
}

// NormalizeSlug is the canonical form used for storage and comparison.
func NormalizeSlug(slug string) string {
	return strings.ToLower(strings.TrimSpace(slug))
}

// MatchesQuery reports whether the snippet's slug or either body contains
// query, ignoring case. query must already be lowercased.
//
// Backends that cannot express a Unicode-aware case-insensitive substring
// match in their query language filter with this instead.
func MatchesQuery(s *model.Snippet, query string) bool {
	return strings.Contains(strings.ToLower(s.Slug), query) ||
		strings.Contains(strings.ToLower(s.ContentFake), query) ||
		strings.Contains(strings.ToLower(s.ContentReal), query)
}
