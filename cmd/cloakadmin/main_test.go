package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/anuragaming1/anura-kun/internal/model"
	"github.com/anuragaming1/anura-kun/internal/repository/sqlite"
	"github.com/anuragaming1/anura-kun/internal/service"
)

// seedStore creates a file-backed SQLite store holding the given slugs and
// returns an environment pointing at it.
func seedStore(t *testing.T, slugs ...string) func(string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "cloak.db")
	db, err := sqlite.New(path)
	require.NoError(t, err)

	svc := service.NewSnippetService(db, slog.New(slog.NewTextHandler(io.Discard, nil)), 0)
	for _, slug := range slugs {
		_, err := svc.Create(context.Background(), slug, "fake "+slug, "real "+slug)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())

	env := map[string]string{"DB_PATH": path, "LOG_LEVEL": "error"}
	return func(k string) string { return env[k] }
}

func runCmd(t *testing.T, getenv func(string) string, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, getenv, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_List(t *testing.T) {
	getenv := seedStore(t, "alpha", "beta")

	code, out, errOut := runCmd(t, getenv, "list")
	require.Equal(t, 0, code, errOut)

	var dump []model.Snippet
	require.NoError(t, json.Unmarshal([]byte(out), &dump))
	require.Len(t, dump, 2)
	assert.Equal(t, "beta", dump[0].Slug, "newest first")
	for _, s := range dump {
		assert.Len(t, s.SecretKey, 64, "full dump includes secret keys")
		assert.Equal(t, "real "+s.Slug, s.ContentReal)
		assert.Equal(t, "fake "+s.Slug, s.ContentFake)
		assert.NotEmpty(t, s.ID)
		assert.False(t, s.CreatedAt.IsZero(), "dump keeps timestamps for backups")
	}
}

func TestRun_ListEmpty(t *testing.T) {
	code, out, _ := runCmd(t, seedStore(t), "list")
	require.Equal(t, 0, code)
	assert.JSONEq(t, `[]`, out)
}

func TestRun_Stats(t *testing.T) {
	code, out, _ := runCmd(t, seedStore(t, "alpha", "beta", "gamma"), "stats")
	require.Equal(t, 0, code)
	assert.Contains(t, out, "snippets: 3")
	assert.Contains(t, out, "most viewed:")
	assert.Contains(t, out, "gamma")
}

func TestRun_Cleanup(t *testing.T) {
	getenv := seedStore(t, "alpha")

	code, out, _ := runCmd(t, getenv, "cleanup", "-days", "1")
	require.Equal(t, 0, code)
	assert.Equal(t, "removed 0 snippet(s) older than 1 day(s)\n", out)

	code, _, errOut := runCmd(t, getenv, "cleanup", "-days", "0")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "max age must be positive")

	code, _, _ = runCmd(t, getenv, "cleanup", "-days", "soon")
	assert.Equal(t, 2, code)
}

func TestRun_CleanupRejectsOverflowingAge(t *testing.T) {
	getenv := seedStore(t, "alpha")

	code, _, errOut := runCmd(t, getenv, "cleanup", "-days", "202163959358895")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "days or less")

	_, out, _ := runCmd(t, getenv, "stats")
	assert.Contains(t, out, "snippets: 1")
}

func TestRun_Delete(t *testing.T) {
	getenv := seedStore(t, "alpha", "beta")

	code, out, errOut := runCmd(t, getenv, "delete", "ALPHA")
	require.Equal(t, 0, code, errOut)
	assert.Equal(t, "deleted alpha\n", out)

	code, _, errOut = runCmd(t, getenv, "delete", "alpha")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "not found")

	code, _, _ = runCmd(t, getenv, "delete")
	assert.Equal(t, 2, code)

	_, out, _ = runCmd(t, getenv, "stats")
	assert.Contains(t, out, "snippets: 1")
}

func TestRun_HashPassword(t *testing.T) {
	code, out, _ := runCmd(t, func(string) string { return "" }, "hash-password", "hunter2")
	require.Equal(t, 0, code)

	hash := strings.TrimSpace(out)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("hunter2")))
}

func TestRun_Usage(t *testing.T) {
	getenv := seedStore(t)

	code, _, errOut := runCmd(t, getenv)
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, "usage: cloakadmin")

	code, _, errOut = runCmd(t, getenv, "explode")
	assert.Equal(t, 2, code)
	assert.Contains(t, errOut, `unknown command "explode"`)
}

func TestRun_BadConfig(t *testing.T) {
	code, _, errOut := runCmd(t, func(k string) string {
		if k == "STORE_DRIVER" {
			return "mongo"
		}
		return ""
	}, "list")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "STORE_DRIVER")
}
