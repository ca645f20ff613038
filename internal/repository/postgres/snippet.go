package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/xid"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository"
)

var _ repository.SnippetRepository = (*SnippetRepo)(nil)

// SnippetRepo implements repository.SnippetRepository using PostgreSQL.
type SnippetRepo struct{ db *DB }

// NewSnippetRepo constructs a snippet repository.
func NewSnippetRepo(db *DB) *SnippetRepo { return &SnippetRepo{db: db} }

const (
	qInsert = `
INSERT INTO snippets (id, slug, content_fake, content_real, secret_key, views, created_at)
VALUES ($1, $2, $3, $4, $5, 0, $6)`
	qGet = `
SELECT id, slug, content_fake, content_real, secret_key, views, created_at, last_accessed
FROM snippets WHERE slug = $1`
	qIncrement = `UPDATE snippets SET views = views + 1, last_accessed = $2 WHERE slug = $1`
	qExists    = `SELECT EXISTS (SELECT 1 FROM snippets WHERE slug = $1)`
	qList      = `
SELECT id, slug, content_fake, content_real, secret_key, views, created_at, last_accessed
FROM snippets ORDER BY created_at DESC, seq DESC`
	qListRecent = `
SELECT slug, created_at, views, last_accessed
FROM snippets ORDER BY created_at DESC, seq DESC LIMIT $1`
	qDelete = `DELETE FROM snippets WHERE slug = $1`
	qSearch = `
SELECT slug, created_at, views, last_accessed
FROM snippets
WHERE strpos(lower(slug), lower($1)) > 0
   OR strpos(lower(content_fake), lower($1)) > 0
   OR strpos(lower(content_real), lower($1)) > 0
ORDER BY created_at DESC, seq DESC`
	qDeleteOlder = `DELETE FROM snippets WHERE created_at < $1`
	qCount       = `SELECT COUNT(*) FROM snippets`
)

// Create inserts a new row. The unique constraint on slug decides races.
func (r *SnippetRepo) Create(ctx context.Context, s *model.Snippet) error {
	id := xid.New().String()
	slug := repository.NormalizeSlug(s.Slug)
	// timestamptz keeps microseconds. Truncating here makes the caller's
	// copy equal to what a later read returns.
	createdAt := time.Now().UTC().Truncate(time.Microsecond)

	_, err := r.db.Pool.Exec(ctx, qInsert, id, slug, s.ContentFake, s.ContentReal, s.SecretKey, createdAt)
	if isUniqueViolation(err) {
		return apperror.SlugConflict(slug)
	}
	if err != nil {
		return fmt.Errorf("postgres: creating snippet %s: %w", slug, err)
	}

	s.ID = id
	s.Slug = slug
	s.CreatedAt = createdAt
	s.Views = 0
	s.LastAccessed = nil
	return nil
}

// GetBySlug selects one snippet without counting a view.
func (r *SnippetRepo) GetBySlug(ctx context.Context, slug string) (*model.Snippet, error) {
	slug = repository.NormalizeSlug(slug)
	s, err := scanSnippet(r.db.Pool.QueryRow(ctx, qGet, slug))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperror.NotFound("snippet", slug)
		}
		return nil, fmt.Errorf("postgres: getting snippet %s: %w", slug, err)
	}
	return s, nil
}

// IncrementViews counts one serving read. Unknown slugs update nothing.
func (r *SnippetRepo) IncrementViews(ctx context.Context, slug string) error {
	_, err := r.db.Pool.Exec(ctx, qIncrement, repository.NormalizeSlug(slug), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("postgres: incrementing views for %s: %w", slug, err)
	}
	return nil
}

// SlugExists reports whether the normalized slug is taken.
func (r *SnippetRepo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	if err := r.db.Pool.QueryRow(ctx, qExists, repository.NormalizeSlug(slug)).Scan(&exists); err != nil {
		return false, fmt.Errorf("postgres: checking slug %s: %w", slug, err)
	}
	return exists, nil
}

// List returns every snippet including secrets, newest first.
func (r *SnippetRepo) List(ctx context.Context) ([]model.Snippet, error) {
	rows, err := r.db.Pool.Query(ctx, qList)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing snippets: %w", err)
	}
	defer rows.Close()

	var out []model.Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scanning snippet: %w", err)
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating snippets: %w", err)
	}
	return out, nil
}

// ListRecent returns at most limit summaries, newest first.
func (r *SnippetRepo) ListRecent(ctx context.Context, limit int) ([]model.SnippetSummary, error) {
	if limit <= 0 {
		return []model.SnippetSummary{}, nil
	}
	rows, err := r.db.Pool.Query(ctx, qListRecent, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: listing recent snippets: %w", err)
	}
	return collectSummaries(rows)
}

// Delete removes the row and reports whether one existed.
func (r *SnippetRepo) Delete(ctx context.Context, slug string) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx, qDelete, repository.NormalizeSlug(slug))
	if err != nil {
		return false, fmt.Errorf("postgres: deleting snippet %s: %w", slug, err)
	}
	return tag.RowsAffected() > 0, nil
}

// Search matches query case-insensitively against slug and both bodies.
// strpos is used over LIKE so '%' and '_' in the query are literal.
func (r *SnippetRepo) Search(ctx context.Context, query string) ([]model.SnippetSummary, error) {
	rows, err := r.db.Pool.Query(ctx, qSearch, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: searching snippets: %w", err)
	}
	return collectSummaries(rows)
}

// DeleteOlderThan removes snippets created before cutoff.
func (r *SnippetRepo) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := r.db.Pool.Exec(ctx, qDeleteOlder, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("postgres: deleting old snippets: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Count returns the number of stored snippets.
func (r *SnippetRepo) Count(ctx context.Context) (int, error) {
	var n int64
	if err := r.db.Pool.QueryRow(ctx, qCount).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: counting snippets: %w", err)
	}
	return int(n), nil
}

// Close closes the pool.
func (r *SnippetRepo) Close() error { return r.db.Close() }

func scanSnippet(row pgx.Row) (*model.Snippet, error) {
	var (
		s            model.Snippet
		lastAccessed *time.Time
	)
	if err := row.Scan(&s.ID, &s.Slug, &s.ContentFake, &s.ContentReal, &s.SecretKey,
		&s.Views, &s.CreatedAt, &lastAccessed); err != nil {
		return nil, err
	}
	s.CreatedAt = s.CreatedAt.UTC()
	s.LastAccessed = utcPtr(lastAccessed)
	return &s, nil
}

func collectSummaries(rows pgx.Rows) ([]model.SnippetSummary, error) {
	defer rows.Close()

	out := []model.SnippetSummary{}
	for rows.Next() {
		var (
			s            model.SnippetSummary
			lastAccessed *time.Time
		)
		if err := rows.Scan(&s.Slug, &s.CreatedAt, &s.Views, &lastAccessed); err != nil {
			return nil, fmt.Errorf("postgres: scanning summary: %w", err)
		}
		s.CreatedAt = s.CreatedAt.UTC()
		s.LastAccessed = utcPtr(lastAccessed)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: iterating summaries: %w", err)
	}
	return out, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
