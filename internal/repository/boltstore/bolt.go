// Package boltstore implements repository.SnippetRepository on a single bbolt file.
package boltstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/rs/xid"
	bolt "go.etcd.io/bbolt"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository"
)

var snippetBucket = []byte("snippets")

var errBucketMissing = errors.New("snippets bucket missing")

var _ repository.SnippetRepository = (*Store)(nil)

// Store is a bbolt-backed snippet repository. Keys are normalized slugs,
// values are JSON records.
//
// bbolt allows a single writer at a time, so doing the existence check and
// the put inside one Update gives atomic create, and read-modify-write of
// the view counter inside one Update cannot lose increments.
type Store struct {
	db *bolt.DB
}

// record is the stored form. Seq comes from the bucket sequence and orders
// snippets that share a CreatedAt.
type record struct {
	model.Snippet
	Seq uint64 `json:"seq"`
}

// Open initializes a store located at path, creating the file if needed.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("bolt: open db: %w", err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(snippetBucket); err != nil {
			return fmt.Errorf("bolt: create snippets bucket: %w", err)
		}
		return nil
	}); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Create persists a new snippet, failing with a slug conflict if the
// normalized slug is taken.
func (s *Store) Create(ctx context.Context, snippet *model.Snippet) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slug := repository.NormalizeSlug(snippet.Slug)
	candidate := *snippet
	candidate.ID = xid.New().String()
	candidate.Slug = slug
	candidate.CreatedAt = time.Now().UTC()
	candidate.Views = 0
	candidate.LastAccessed = nil

	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		if bucket.Get([]byte(slug)) != nil {
			return apperror.SlugConflict(slug)
		}

		seq, err := bucket.NextSequence()
		if err != nil {
			return fmt.Errorf("bolt: next sequence: %w", err)
		}
		data, err := json.Marshal(record{Snippet: candidate, Seq: seq})
		if err != nil {
			return fmt.Errorf("bolt: marshal snippet: %w", err)
		}
		if err := bucket.Put([]byte(slug), data); err != nil {
			return fmt.Errorf("bolt: save snippet %s: %w", slug, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	*snippet = candidate
	return nil
}

// GetBySlug returns the snippet without counting a view.
func (s *Store) GetBySlug(ctx context.Context, slug string) (*model.Snippet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slug = repository.NormalizeSlug(slug)
	var out *model.Snippet
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		raw := bucket.Get([]byte(slug))
		if raw == nil {
			return apperror.NotFound("snippet", slug)
		}
		rec, err := decode(raw)
		if err != nil {
			return err
		}
		out = &rec.Snippet
		return nil
	})

	return out, err
}

// IncrementViews adds one view and stamps LastAccessed. Unknown slugs are a no-op.
func (s *Store) IncrementViews(ctx context.Context, slug string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	slug = repository.NormalizeSlug(slug)
	return s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		raw := bucket.Get([]byte(slug))
		if raw == nil {
			return nil
		}
		rec, err := decode(raw)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		rec.Views++
		rec.LastAccessed = &now

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("bolt: marshal snippet: %w", err)
		}
		if err := bucket.Put([]byte(slug), data); err != nil {
			return fmt.Errorf("bolt: update views for %s: %w", slug, err)
		}
		return nil
	})
}

// SlugExists reports whether the normalized slug is stored.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var exists bool
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		exists = bucket.Get([]byte(repository.NormalizeSlug(slug))) != nil
		return nil
	})
	return exists, err
}

// List returns every snippet with secrets, newest first.
func (s *Store) List(ctx context.Context) ([]model.Snippet, error) {
	recs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]model.Snippet, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Snippet)
	}
	return out, nil
}

// ListRecent returns at most limit summaries, newest first.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]model.SnippetSummary, error) {
	if limit <= 0 {
		return []model.SnippetSummary{}, nil
	}
	recs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	if len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]model.SnippetSummary, 0, len(recs))
	for i := range recs {
		out = append(out, recs[i].Summary())
	}
	return out, nil
}

// Delete removes the snippet and reports whether it existed.
func (s *Store) Delete(ctx context.Context, slug string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	slug = repository.NormalizeSlug(slug)
	var deleted bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		if bucket.Get([]byte(slug)) == nil {
			return nil
		}
		if err := bucket.Delete([]byte(slug)); err != nil {
			return fmt.Errorf("bolt: delete snippet %s: %w", slug, err)
		}
		deleted = true
		return nil
	})
	return deleted, err
}

// Search matches query case-insensitively against slug and both bodies.
func (s *Store) Search(ctx context.Context, query string) ([]model.SnippetSummary, error) {
	recs, err := s.loadAll(ctx)
	if err != nil {
		return nil, err
	}

	query = strings.ToLower(query)
	out := []model.SnippetSummary{}
	for i := range recs {
		if repository.MatchesQuery(&recs[i].Snippet, query) {
			out = append(out, recs[i].Summary())
		}
	}
	return out, nil
}

// DeleteOlderThan removes every snippet created before cutoff.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var removed int
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}

		var expired [][]byte
		if err := bucket.ForEach(func(k, v []byte) error {
			rec, err := decode(v)
			if err != nil {
				return err
			}
			if rec.CreatedAt.Before(cutoff) {
				// k is only valid for the life of the transaction.
				expired = append(expired, slices.Clone(k))
			}
			return nil
		}); err != nil {
			return err
		}

		// Keys are deleted after the walk. Mutating a bucket while ForEach
		// iterates it is undefined.
		for _, key := range expired {
			if err := bucket.Delete(key); err != nil {
				return fmt.Errorf("bolt: delete snippet %s: %w", key, err)
			}
		}
		removed = len(expired)
		return nil
	})
	return removed, err
}

// Count returns the number of stored snippets.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		n = bucket.Stats().KeyN
		return nil
	})
	return n, err
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// loadAll returns every record ordered newest first.
func (s *Store) loadAll(ctx context.Context) ([]record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var recs []record
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(snippetBucket)
		if bucket == nil {
			return errBucketMissing
		}
		return bucket.ForEach(func(_, v []byte) error {
			rec, err := decode(v)
			if err != nil {
				return err
			}
			recs = append(recs, rec)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(recs, func(a, b record) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.Seq, a.Seq)
	})
	return recs, nil
}

func decode(raw []byte) (record, error) {
	var rec record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return record{}, fmt.Errorf("bolt: unmarshal snippet: %w", err)
	}
	return rec, nil
}
