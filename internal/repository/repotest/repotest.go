// Package repotest is the conformance suite every SnippetRepository backend
// runs from its own tests:
//
//	func TestConformance(t *testing.T) {
//		repotest.Run(t, func(t *testing.T) repository.SnippetRepository {
//			return newTestDB(t)
//		})
//	}
//
// The factory must return a fresh, empty repository on every call.
package repotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anuragaming1/anura-kun/internal/apperror"
	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository"
)

// Factory builds an empty repository for one subtest.
type Factory func(t *testing.T) repository.SnippetRepository

// Run executes the whole suite.
func Run(t *testing.T, newRepo Factory) {
	t.Helper()

	t.Run("CreateAssignsFields", func(t *testing.T) { testCreateAssignsFields(t, newRepo(t)) })
	t.Run("CaseInsensitiveLookup", func(t *testing.T) { testCaseInsensitiveLookup(t, newRepo(t)) })
	t.Run("GetMissing", func(t *testing.T) { testGetMissing(t, newRepo(t)) })
	t.Run("DuplicateSlug", func(t *testing.T) { testDuplicateSlug(t, newRepo(t)) })
	t.Run("ConcurrentCreate", func(t *testing.T) { testConcurrentCreate(t, newRepo(t)) })
	t.Run("GetDoesNotIncrement", func(t *testing.T) { testGetDoesNotIncrement(t, newRepo(t)) })
	t.Run("IncrementViews", func(t *testing.T) { testIncrementViews(t, newRepo(t)) })
	t.Run("ConcurrentIncrement", func(t *testing.T) { testConcurrentIncrement(t, newRepo(t)) })
	t.Run("IncrementMissing", func(t *testing.T) { testIncrementMissing(t, newRepo(t)) })
	t.Run("SlugExists", func(t *testing.T) { testSlugExists(t, newRepo(t)) })
	t.Run("ListRecentOrdering", func(t *testing.T) { testListRecentOrdering(t, newRepo(t)) })
	t.Run("ListIncludesSecrets", func(t *testing.T) { testListIncludesSecrets(t, newRepo(t)) })
	t.Run("DeleteOnce", func(t *testing.T) { testDeleteOnce(t, newRepo(t)) })
	t.Run("Search", func(t *testing.T) { testSearch(t, newRepo(t)) })
	t.Run("DeleteOlderThan", func(t *testing.T) { testDeleteOlderThan(t, newRepo(t)) })
	t.Run("Count", func(t *testing.T) { testCount(t, newRepo(t)) })
	t.Run("CanceledContext", func(t *testing.T) { testCanceledContext(t, newRepo(t)) })
}

// NewSnippet builds an unsaved snippet with a deterministic secret key.
func NewSnippet(slug, fake, real string) *model.Snippet {
	return &model.Snippet{
		Slug:        repository.NormalizeSlug(slug),
		ContentFake: fake,
		ContentReal: real,
		SecretKey:   fmt.Sprintf("%064x", len(slug)*7919+len(fake)),
	}
}

func mustCreate(t *testing.T, repo repository.SnippetRepository, slug string) *model.Snippet {
	t.Helper()
	s := NewSnippet(slug, "fake:"+slug, "real:"+slug)
	require.NoError(t, repo.Create(context.Background(), s))
	return s
}

func testCreateAssignsFields(t *testing.T, repo repository.SnippetRepository) {
	before := time.Now().Add(-time.Second)
	s := mustCreate(t, repo, "demo")

	assert.NotEmpty(t, s.ID)
	assert.Zero(t, s.Views)
	assert.Nil(t, s.LastAccessed)
	assert.True(t, s.CreatedAt.After(before), "CreatedAt = %v, want after %v", s.CreatedAt, before)

	got, err := repo.GetBySlug(context.Background(), "demo")
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "fake:demo", got.ContentFake)
	assert.Equal(t, "real:demo", got.ContentReal)
	assert.Equal(t, s.SecretKey, got.SecretKey)
	assert.Zero(t, got.Views)
	assert.Nil(t, got.LastAccessed)
	assert.WithinDuration(t, s.CreatedAt, got.CreatedAt, time.Millisecond)
}

func testCaseInsensitiveLookup(t *testing.T, repo repository.SnippetRepository) {
	created := mustCreate(t, repo, "MySlug")
	assert.Equal(t, "myslug", created.Slug)

	for _, slug := range []string{"myslug", "MYSLUG", "MySlug", "  mySLUG "} {
		got, err := repo.GetBySlug(context.Background(), slug)
		require.NoError(t, err, "GetBySlug(%q)", slug)
		assert.Equal(t, created.ID, got.ID, "GetBySlug(%q)", slug)
	}
}

func testGetMissing(t *testing.T, repo repository.SnippetRepository) {
	_, err := repo.GetBySlug(context.Background(), "nope")
	require.ErrorIs(t, err, apperror.ErrNotFound)
}

func testDuplicateSlug(t *testing.T, repo repository.SnippetRepository) {
	mustCreate(t, repo, "demo")

	err := repo.Create(context.Background(), NewSnippet("DEMO", "other", "other"))
	require.ErrorIs(t, err, apperror.ErrConflict)

	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func testConcurrentCreate(t *testing.T, repo repository.SnippetRepository) {
	const attempts = 16
	var (
		wg        sync.WaitGroup
		wins      atomic.Int32
		conflicts atomic.Int32
		others    = make(chan error, attempts)
	)
	variants := []string{"race", "RACE", "Race", "rAcE"}

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s := NewSnippet(variants[i%len(variants)], fmt.Sprintf("fake-%d", i), "real")
			switch err := repo.Create(context.Background(), s); {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, apperror.ErrConflict):
				conflicts.Add(1)
			default:
				others <- err
			}
		}(i)
	}
	wg.Wait()
	close(others)

	for err := range others {
		t.Errorf("unexpected create error: %v", err)
	}
	assert.EqualValues(t, 1, wins.Load(), "exactly one create must win")
	assert.EqualValues(t, attempts-1, conflicts.Load())
}

func testGetDoesNotIncrement(t *testing.T, repo repository.SnippetRepository) {
	mustCreate(t, repo, "quiet")
	for i := 0; i < 3; i++ {
		_, err := repo.GetBySlug(context.Background(), "quiet")
		require.NoError(t, err)
	}
	got, err := repo.GetBySlug(context.Background(), "quiet")
	require.NoError(t, err)
	assert.Zero(t, got.Views)
	assert.Nil(t, got.LastAccessed)
}

func testIncrementViews(t *testing.T, repo repository.SnippetRepository) {
	s := mustCreate(t, repo, "counted")
	ctx := context.Background()

	const n = 5
	for i := 0; i < n; i++ {
		require.NoError(t, repo.IncrementViews(ctx, "COUNTED"))
	}

	got, err := repo.GetBySlug(ctx, "counted")
	require.NoError(t, err)
	assert.EqualValues(t, n, got.Views)
	require.NotNil(t, got.LastAccessed)
	assert.False(t, got.LastAccessed.Before(s.CreatedAt.Truncate(time.Millisecond)))
}

func testConcurrentIncrement(t *testing.T, repo repository.SnippetRepository) {
	mustCreate(t, repo, "hot")

	const workers, perWorker = 8, 25
	var wg sync.WaitGroup
	errs := make(chan error, workers*perWorker)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				if err := repo.IncrementViews(context.Background(), "hot"); err != nil {
					errs <- err
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("IncrementViews: %v", err)
	}

	got, err := repo.GetBySlug(context.Background(), "hot")
	require.NoError(t, err)
	assert.EqualValues(t, workers*perWorker, got.Views, "lost updates")
}

func testIncrementMissing(t *testing.T, repo repository.SnippetRepository) {
	require.NoError(t, repo.IncrementViews(context.Background(), "ghost"))
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testSlugExists(t *testing.T, repo repository.SnippetRepository) {
	ctx := context.Background()
	ok, err := repo.SlugExists(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, ok)

	mustCreate(t, repo, "Taken")

	ok, err = repo.SlugExists(ctx, "TAKEN")
	require.NoError(t, err)
	assert.True(t, ok)
}

func testListRecentOrdering(t *testing.T, repo repository.SnippetRepository) {
	for _, slug := range []string{"first", "second", "third"} {
		mustCreate(t, repo, slug)
	}
	ctx := context.Background()

	recent, err := repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []string{"third", "second", "first"}, summarySlugs(recent))

	limited, err := repo.ListRecent(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"third", "second"}, summarySlugs(limited))

	require.NoError(t, repo.IncrementViews(ctx, "first"))
	recent, err = repo.ListRecent(ctx, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 1, recent[2].Views)
	assert.NotNil(t, recent[2].LastAccessed)
}

func testListIncludesSecrets(t *testing.T, repo repository.SnippetRepository) {
	a := mustCreate(t, repo, "alpha")
	b := mustCreate(t, repo, "beta")

	all, err := repo.List(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 2)

	bySlug := map[string]model.Snippet{}
	for _, s := range all {
		bySlug[s.Slug] = s
	}
	assert.Equal(t, a.SecretKey, bySlug["alpha"].SecretKey)
	assert.Equal(t, b.SecretKey, bySlug["beta"].SecretKey)
	assert.Equal(t, "real:beta", bySlug["beta"].ContentReal)
}

func testDeleteOnce(t *testing.T, repo repository.SnippetRepository) {
	mustCreate(t, repo, "gone")
	mustCreate(t, repo, "stays")
	ctx := context.Background()

	deleted, err := repo.Delete(ctx, "GONE")
	require.NoError(t, err)
	assert.True(t, deleted)

	deleted, err = repo.Delete(ctx, "gone")
	require.NoError(t, err)
	assert.False(t, deleted, "second delete must report nothing removed")

	_, err = repo.GetBySlug(ctx, "gone")
	require.ErrorIs(t, err, apperror.ErrNotFound)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// The slug is free again once deleted.
	require.NoError(t, repo.Create(ctx, NewSnippet("gone", "again", "again")))
}

func testSearch(t *testing.T, repo repository.SnippetRepository) {
	ctx := context.Background()
	require.NoError(t, repo.Create(ctx, NewSnippet("loader", "print('hello')", "os.execute('x')")))
	require.NoError(t, repo.Create(ctx, NewSnippet("other", "nothing here", "Hidden PAYLOAD")))
	require.NoError(t, repo.Create(ctx, NewSnippet("third", "plain", "plain")))

	tests := []struct {
		query string
		want  []string
	}{
		{"load", []string{"loader"}},
		{"HELLO", []string{"loader"}},
		{"payload", []string{"other"}},
		{"e", []string{"loader", "other"}},
		{"PLAIN", []string{"third"}},
		{"zzz", nil},
	}
	for _, tt := range tests {
		got, err := repo.Search(ctx, tt.query)
		require.NoError(t, err, "Search(%q)", tt.query)
		assert.ElementsMatch(t, tt.want, summarySlugs(got), "Search(%q)", tt.query)
	}
}

func testDeleteOlderThan(t *testing.T, repo repository.SnippetRepository) {
	ctx := context.Background()
	mustCreate(t, repo, "old")
	mustCreate(t, repo, "older")

	removed, err := repo.DeleteOlderThan(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, removed, "nothing is an hour old yet")

	removed, err = repo.DeleteOlderThan(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func testCount(t *testing.T, repo repository.SnippetRepository) {
	n, err := repo.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	for i := 0; i < 4; i++ {
		mustCreate(t, repo, fmt.Sprintf("s%d", i))
	}
	n, err = repo.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func testCanceledContext(t *testing.T, repo repository.SnippetRepository) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := repo.Create(ctx, NewSnippet("never", "f", "r"))
	require.Error(t, err)

	ok, err := repo.SlugExists(context.Background(), "never")
	require.NoError(t, err)
	assert.False(t, ok, "a canceled create must not persist anything")
}

func summarySlugs(in []model.SnippetSummary) []string {
	if len(in) == 0 {
		return nil
	}
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, s.Slug)
	}
	return out
}
