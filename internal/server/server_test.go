package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/anuragaming1/anura-kun/internal/config"
)

func testConfig(t *testing.T, vars map[string]string) *config.Config {
	t.Helper()

	hash, err := bcrypt.GenerateFromPassword([]byte("hunter2"), bcrypt.MinCost)
	require.NoError(t, err)

	env := map[string]string{
		"ADMIN_PASSWORD_HASH": string(hash),
		"SESSION_SECRET":      "server-test-secret-0123456789",
		"DB_PATH":             ":memory:",
	}
	for k, v := range vars {
		env[k] = v
	}

	cfg, err := config.Load(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *httptest.Server {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv, err := New(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.Close() })

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func newClient(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &http.Client{Jar: jar}
}

func send(t *testing.T, c *http.Client, method, url, body string, headers ...string) (*http.Response, string) {
	t.Helper()

	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, rdr)
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	resp, err := c.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(b)
}

func login(t *testing.T, ts *httptest.Server, c *http.Client) {
	t.Helper()
	resp, body := send(t, c, http.MethodPost, ts.URL+"/api/login", `{"username":"admin","password":"hunter2"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, body)
}

func TestEndToEnd_DemoScenario(t *testing.T) {
	for _, driver := range []string{config.DriverSQLite, config.DriverBolt} {
		t.Run(driver, func(t *testing.T) {
			vars := map[string]string{"STORE_DRIVER": driver}
			if driver == config.DriverBolt {
				vars["DB_PATH"] = filepath.Join(t.TempDir(), "data", "cloak.bolt")
			}
			ts := newTestServer(t, testConfig(t, vars))
			admin := newClient(t)
			login(t, ts, admin)

			// Create.
			resp, body := send(t, admin, http.MethodPost, ts.URL+"/api/create",
				`{"slug":"demo","content_fake":"print('hi')","content_real":"loadstring(payload)()"}`)
			require.Equal(t, http.StatusOK, resp.StatusCode, body)

			var created struct {
				Success   bool   `json:"success"`
				Slug      string `json:"slug"`
				RawURL    string `json:"raw_url"`
				SecretKey string `json:"secret_key"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &created))
			assert.True(t, created.Success)
			assert.Equal(t, ts.URL+"/raw/demo", created.RawURL)

			// Public reads.
			anon := http.DefaultClient

			_, body = send(t, anon, http.MethodGet, created.RawURL, "")
			assert.Equal(t, "print('hi')", body)

			_, body = send(t, anon, http.MethodGet, created.RawURL, "", "X-Client-Type", "krnl")
			assert.Equal(t, "loadstring(payload)()", body)

			_, body = send(t, anon, http.MethodGet, created.RawURL+"?secret="+created.SecretKey, "")
			assert.Equal(t, "loadstring(payload)()", body)

			resp, _ = send(t, anon, http.MethodGet, ts.URL+"/raw/missing", "")
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)

			// Views counted three times; listing never leaks the key.
			_, body = send(t, admin, http.MethodGet, ts.URL+"/api/snippets", "")
			assert.NotContains(t, body, created.SecretKey)
			var list []struct {
				Slug  string `json:"slug"`
				Views int64  `json:"views"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &list))
			require.Len(t, list, 1)
			assert.Equal(t, int64(3), list[0].Views)

			// Duplicate.
			resp, _ = send(t, admin, http.MethodPost, ts.URL+"/api/create",
				`{"slug":"demo","content_fake":"x","content_real":"y"}`)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

			// Delete, then gone.
			resp, _ = send(t, admin, http.MethodDelete, ts.URL+"/api/snippets/demo",
				`{"secret_key":"`+created.SecretKey+`"}`)
			assert.Equal(t, http.StatusOK, resp.StatusCode)

			resp, _ = send(t, anon, http.MethodGet, created.RawURL, "")
			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		})
	}
}

func TestEndToEnd_AdminRoutesNeedSession(t *testing.T) {
	ts := newTestServer(t, testConfig(t, nil))
	anon := newClient(t)

	routes := []struct{ method, path string }{
		{http.MethodPost, "/api/create"},
		{http.MethodGet, "/api/check/demo"},
		{http.MethodGet, "/api/snippets"},
		{http.MethodDelete, "/api/snippets/demo"},
		{http.MethodGet, "/api/search?q=x"},
		{http.MethodPost, "/api/cleanup"},
		{http.MethodGet, "/api/qr/demo"},
	}
	for _, rt := range routes {
		resp, body := send(t, anon, rt.method, ts.URL+rt.path, "")
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, rt.path)
		assert.JSONEq(t, `{"error":"authentication required","code":"unauthorized"}`, body, rt.path)
	}

	// A session grants access until logout.
	login(t, ts, anon)
	resp, _ := send(t, anon, http.MethodGet, ts.URL+"/api/snippets", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	send(t, anon, http.MethodPost, ts.URL+"/api/logout", "")
	resp, _ = send(t, anon, http.MethodGet, ts.URL+"/api/snippets", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestEndToEnd_PublicRoutes(t *testing.T) {
	ts := newTestServer(t, testConfig(t, nil))
	c := newClient(t)

	resp, body := send(t, c, http.MethodGet, ts.URL+"/api/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok","snippets":0}`, body)

	for _, path := range []string{"/raw", "/raw/"} {
		resp, _ = send(t, c, http.MethodGet, ts.URL+path, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, path)
		assert.Equal(t, "no-cache, no-store, must-revalidate", resp.Header.Get("Cache-Control"), path)
	}

	resp, body = send(t, c, http.MethodGet, ts.URL+"/api/check-auth", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"authenticated":false}`, body)
}

func TestNew_RequiresAdminCredential(t *testing.T) {
	cfg, err := config.Load(func(string) string { return "" })
	require.NoError(t, err)

	_, err = New(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.ErrorContains(t, err, "ADMIN_PASSWORD")
}

func TestOpenStore_UnknownDriver(t *testing.T) {
	_, err := OpenStore(context.Background(), &config.Config{StoreDriver: "mongo"})
	assert.ErrorContains(t, err, "unknown store driver")
}
