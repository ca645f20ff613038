package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB ever stops implementing repository.SnippetRepository, the build
// breaks here instead of somewhere in server wiring.
var _ repository.SnippetRepository = (*DB)(nil)

const snippetColumns = `id, slug, content_fake, content_real, secret_key, views, created_at, last_accessed`

// Create inserts a new snippet into the database.
//
// KEY CONCEPTS:
//
//  1. ID GENERATION WITH xid:
//     20 chars, URL-safe, sortable by creation time. Example: "cv37rs3pp9olc6atsptg".
//
//  2. UNIQUENESS IS THE DATABASE'S JOB:
//     We do NOT check "does the slug exist?" before inserting. Between that
//     SELECT and the INSERT another request could sneak in. The UNIQUE
//     constraint makes the INSERT itself the check, so exactly one wins.
//
//  3. PARAMETERIZED QUERIES (the ? placeholders):
//     Never build SQL with fmt.Sprintf or string concatenation.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.Slug = repository.NormalizeSlug(snippet.Slug)
	snippet.CreatedAt = time.Now().UTC()
	snippet.Views = 0
	snippet.LastAccessed = nil

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, slug, content_fake, content_real, secret_key, views, created_at)
		 VALUES (?, ?, ?, ?, ?, 0, ?)`,
		snippet.ID,
		snippet.Slug,
		snippet.ContentFake,
		snippet.ContentReal,
		snippet.SecretKey,
		snippet.CreatedAt.UnixNano(),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.SlugConflict(snippet.Slug)
		}
		return fmt.Errorf("sqlite: creating snippet %s: %w", snippet.Slug, err)
	}

	return nil
}

// GetBySlug retrieves a single snippet. It never touches the view counter.
//
// sql.ErrNoRows just means "no matching row". We translate it into the app's
// NotFound error so the handler knows to answer 404.
func (db *DB) GetBySlug(ctx context.Context, slug string) (*model.Snippet, error) {
	slug = repository.NormalizeSlug(slug)

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets WHERE slug = ?`,
		slug,
	)
	snippet, err := scanSnippet(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", slug)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", slug, err)
	}

	return snippet, nil
}

// IncrementViews bumps the counter in a single UPDATE, so two concurrent
// reads can never both read N and write N+1. Zero affected rows means the
// slug does not exist, which is not an error.
func (db *DB) IncrementViews(ctx context.Context, slug string) error {
	_, err := db.conn.ExecContext(ctx,
		`UPDATE snippets SET views = views + 1, last_accessed = ? WHERE slug = ?`,
		time.Now().UTC().UnixNano(),
		repository.NormalizeSlug(slug),
	)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing views for %s: %w", slug, err)
	}
	return nil
}

// SlugExists reports whether a snippet already uses the normalized slug.
func (db *DB) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	err := db.conn.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM snippets WHERE slug = ?)`,
		repository.NormalizeSlug(slug),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("sqlite: checking slug %s: %w", slug, err)
	}
	return exists, nil
}

// List returns every snippet including content and secret keys, newest first.
func (db *DB) List(ctx context.Context) ([]model.Snippet, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+snippetColumns+` FROM snippets ORDER BY created_at DESC, seq DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	// CRITICAL: rows holds our only connection until it is closed.
	defer rows.Close()

	var snippets []model.Snippet
	for rows.Next() {
		s, err := scanSnippet(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// ListRecent returns at most limit summaries, newest first. Content and
// secret key columns are not even selected.
func (db *DB) ListRecent(ctx context.Context, limit int) ([]model.SnippetSummary, error) {
	if limit <= 0 {
		return []model.SnippetSummary{}, nil
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT slug, created_at, views, last_accessed
		 FROM snippets
		 ORDER BY created_at DESC, seq DESC
		 LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing recent snippets: %w", err)
	}
	defer rows.Close()

	// PRE-ALLOCATE THE SLICE: capacity = limit avoids re-growing while appending.
	summaries := make([]model.SnippetSummary, 0, limit)
	for rows.Next() {
		var (
			s            model.SnippetSummary
			createdAt    int64
			lastAccessed sql.NullInt64
		)
		if err := rows.Scan(&s.Slug, &createdAt, &s.Views, &lastAccessed); err != nil {
			return nil, fmt.Errorf("sqlite: scanning summary row: %w", err)
		}
		s.CreatedAt = fromNanos(createdAt)
		s.LastAccessed = fromNullNanos(lastAccessed)
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating summaries: %w", err)
	}

	return summaries, nil
}

// Delete removes a snippet. RowsAffected tells us whether anything was there.
func (db *DB) Delete(ctx context.Context, slug string) (bool, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE slug = ?`,
		repository.NormalizeSlug(slug),
	)
	if err != nil {
		return false, fmt.Errorf("sqlite: deleting snippet %s: %w", slug, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Search does a case-insensitive substring match over slug and both bodies.
//
// SQLite's lower() and LIKE only fold ASCII, and bodies are arbitrary text,
// so the match itself happens in Go with repository.MatchesQuery.
func (db *DB) Search(ctx context.Context, query string) ([]model.SnippetSummary, error) {
	all, err := db.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("sqlite: searching snippets: %w", err)
	}

	query = strings.ToLower(query)
	results := []model.SnippetSummary{}
	for i := range all {
		if repository.MatchesQuery(&all[i], query) {
			results = append(results, all[i].Summary())
		}
	}
	return results, nil
}

// DeleteOlderThan removes snippets created before cutoff and reports how many.
func (db *DB) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE created_at < ?`,
		cutoff.UTC().UnixNano(),
	)
	if err != nil {
		return 0, fmt.Errorf("sqlite: deleting snippets older than %s: %w", cutoff.Format(time.RFC3339), err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	return int(removed), nil
}

// Count returns the number of stored snippets.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM snippets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return n, nil
}

// scanner is satisfied by both *sql.Row and *sql.Rows, so one scan function
// serves GetBySlug and List.
type scanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row scanner) (*model.Snippet, error) {
	var (
		s            model.Snippet
		createdAt    int64
		lastAccessed sql.NullInt64
	)
	if err := row.Scan(
		&s.ID, &s.Slug, &s.ContentFake, &s.ContentReal, &s.SecretKey,
		&s.Views, &createdAt, &lastAccessed,
	); err != nil {
		return nil, err
	}
	s.CreatedAt = fromNanos(createdAt)
	s.LastAccessed = fromNullNanos(lastAccessed)
	return &s, nil
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func fromNullNanos(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := fromNanos(n.Int64)
	return &t
}

// isUniqueViolation reports whether err is SQLite's UNIQUE constraint failure.
func isUniqueViolation(err error) bool {
	var sqliteErr *moderncsqlite.Error
	return errors.As(err, &sqliteErr) && sqliteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
}
