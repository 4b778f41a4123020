package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/neomorfeo/uastudio/internal/adapter/fsm"
	adapter "github.com/neomorfeo/uastudio/internal/adapter/http"
	"github.com/neomorfeo/uastudio/internal/adapter/sqlite"
	"github.com/neomorfeo/uastudio/internal/agent"
	"github.com/neomorfeo/uastudio/internal/app"
)

// newTestServer creates a full-stack httptest.Server with SQLite in-memory.
func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	repo, err := sqlite.New(":memory:")
	require.NoError(t, err, "creating test repo")
	t.Cleanup(func() { repo.Close() })

	engine := app.NewGenerationEngine(fsm.New(),
		app.WithStore(repo),
		app.WithSource(agent.New(agent.NewRand(7), nil)),
	)

	router := chi.NewMux()
	api := humachi.New(router, huma.DefaultConfig("uastudio", "0.1.0"))
	adapter.Register(api, engine)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return srv
}

// doRequest performs an HTTP request with context (avoids noctx linter).
func doRequest(t *testing.T, method, url, body string) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(context.Background(), method, url, reader)
	require.NoError(t, err, "creating request")

	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err, "%s %s", method, url)

	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v), "decode")
	return v
}

// mustGenerate requests a batch and returns the decoded response.
func mustGenerate(t *testing.T, srv *httptest.Server, body string) adapter.BatchResponse {
	t.Helper()

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/batches", body)
	require.Equal(t, http.StatusCreated, resp.StatusCode, "generate batch")
	return decode[adapter.BatchResponse](t, resp)
}

func listSessions(t *testing.T, srv *httptest.Server) []adapter.SessionSummary {
	t.Helper()
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	return decode[[]adapter.SessionSummary](t, resp)
}

// --- Generate ---

func TestGenerate(t *testing.T) {
	srv := newTestServer(t)
	batch := mustGenerate(t, srv, `{"count":25,"device":"pixel7","variant":"chrome","token_mode":"uuid"}`)

	assert.Equal(t, 25, batch.Requested)
	assert.Equal(t, 25, batch.Produced)
	assert.Len(t, batch.Agents, 25)
	assert.False(t, batch.Exhausted)
	assert.Nil(t, batch.Archived)
	for _, a := range batch.Agents {
		assert.Contains(t, a, "Android")
		assert.Contains(t, a, "Pixel 7")
		assert.Contains(t, a, "[uid=")
	}
}

func TestGenerate_ClampsCount(t *testing.T) {
	srv := newTestServer(t)

	batch := mustGenerate(t, srv, `{"count":0,"token_mode":"uuid"}`)
	assert.Equal(t, 1, batch.Requested)
	assert.Len(t, batch.Agents, 1)

	batch = mustGenerate(t, srv, `{"count":-4,"token_mode":"uuid"}`)
	assert.Equal(t, 1, batch.Requested)

	batch = mustGenerate(t, srv, `{"count":9000,"token_mode":"uuid"}`)
	assert.Equal(t, 5000, batch.Requested)
}

func TestGenerate_DefaultCount(t *testing.T) {
	srv := newTestServer(t)

	batch := mustGenerate(t, srv, `{"token_mode":"uuid"}`)
	assert.Equal(t, 10, batch.Requested)
	assert.Len(t, batch.Agents, 10)
}

func TestGenerate_Preset(t *testing.T) {
	srv := newTestServer(t)

	batch := mustGenerate(t, srv, `{"count":5,"device":"iphone14","preset":"fb_india","app_version":"999.0.0"}`)
	for _, a := range batch.Agents {
		assert.Contains(t, a, "FBAV/999.0.0")
		assert.Contains(t, a, "FBLC/hi-IN")
	}
}

func TestGenerate_InvalidVariant(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/batches", `{"count":5,"variant":"opera"}`)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
}

func TestGenerate_ArchivesPreviousBatch(t *testing.T) {
	srv := newTestServer(t)

	first := mustGenerate(t, srv, `{"count":3,"token_mode":"uuid"}`)
	second := mustGenerate(t, srv, `{"count":4,"token_mode":"uuid"}`)

	require.NotNil(t, second.Archived)
	assert.Equal(t, 3, second.Archived.Count)
	for _, a := range second.Agents {
		assert.NotContains(t, first.Agents, a)
	}

	sessions := listSessions(t, srv)
	require.Len(t, sessions, 1)
	assert.Equal(t, second.Archived.ID, sessions[0].ID)
}

// --- Active batch ---

func TestSearch(t *testing.T) {
	srv := newTestServer(t)
	mustGenerate(t, srv, `{"count":10,"device":"iphone14","variant":"safari","token_mode":"uuid"}`)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/batch?q=IPHONE", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Agents []string `json:"agents"`
		Count  int      `json:"count"`
	}](t, resp)
	assert.Equal(t, 10, body.Count)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/batch?q=android", "")
	body = decode[struct {
		Agents []string `json:"agents"`
		Count  int      `json:"count"`
	}](t, resp)
	assert.Zero(t, body.Count)
	assert.NotNil(t, body.Agents)
}

func TestClearBatch(t *testing.T) {
	srv := newTestServer(t)
	mustGenerate(t, srv, `{"count":6,"token_mode":"uuid"}`)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/batch", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Released int `json:"released"`
	}](t, resp)
	assert.Equal(t, 6, body.Released)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/stats", "")
	stats := decode[struct {
		Registry int `json:"registry"`
		Active   int `json:"active"`
	}](t, resp)
	assert.Zero(t, stats.Registry)
	assert.Zero(t, stats.Active)
}

func TestArchiveBatch(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/batch/archive", "")
	empty := decode[struct {
		Archived *adapter.SessionSummary `json:"archived"`
	}](t, resp)
	assert.Nil(t, empty.Archived, "nothing to archive")

	mustGenerate(t, srv, `{"count":2,"token_mode":"uuid"}`)
	resp = doRequest(t, http.MethodPost, srv.URL+"/api/v1/batch/archive", "")
	body := decode[struct {
		Archived *adapter.SessionSummary `json:"archived"`
	}](t, resp)
	require.NotNil(t, body.Archived)
	assert.Equal(t, 2, body.Archived.Count)
}

// --- Sessions ---

func TestGetSession(t *testing.T) {
	srv := newTestServer(t)
	first := mustGenerate(t, srv, `{"count":3,"token_mode":"uuid"}`)
	second := mustGenerate(t, srv, `{"count":1,"token_mode":"uuid"}`)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+second.Archived.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	session := decode[adapter.SessionResponse](t, resp)
	assert.Equal(t, first.Agents, session.Agents)
	assert.Equal(t, 3, session.Count)
}

func TestGetSession_NotFound(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions/nonexistent", "")
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestLatestSession(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions/latest", "")
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	mustGenerate(t, srv, `{"count":2,"token_mode":"uuid"}`)
	second := mustGenerate(t, srv, `{"count":2,"token_mode":"uuid"}`)

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions/latest", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	latest := decode[adapter.SessionResponse](t, resp)
	assert.Equal(t, second.Archived.ID, latest.ID)
}

func TestDeleteSession_ReleasesStrings(t *testing.T) {
	srv := newTestServer(t)
	mustGenerate(t, srv, `{"count":5,"token_mode":"uuid"}`)
	second := mustGenerate(t, srv, `{"count":3,"token_mode":"uuid"}`)

	resp := doRequest(t, http.MethodDelete, srv.URL+"/api/v1/sessions/"+second.Archived.ID, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decode[struct {
		Deleted  adapter.SessionSummary `json:"deleted"`
		Registry int                    `json:"registry"`
	}](t, resp)
	assert.Equal(t, 5, body.Deleted.Count)
	assert.Equal(t, 3, body.Registry)
	assert.Empty(t, listSessions(t, srv))

	resp = doRequest(t, http.MethodDelete, srv.URL+"/api/v1/sessions/"+second.Archived.ID, "")
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "second delete")
}

// --- Exports ---

func TestExportSession(t *testing.T) {
	srv := newTestServer(t)
	first := mustGenerate(t, srv, `{"count":2,"token_mode":"uuid"}`)
	second := mustGenerate(t, srv, `{"count":1,"token_mode":"uuid"}`)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/sessions/"+second.Archived.ID+"/export", "")
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/csv")

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	want := fmt.Sprintf("ua\n%q\n%q", first.Agents[0], first.Agents[1])
	assert.Equal(t, want, string(raw))
}

func TestExportList_EscapesQuotes(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/exports", `{"agents":["a","say \"hi\""]}`)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "ua\n\"a\"\n\"say \"\"hi\"\"\"", string(raw))
}

// --- Maintenance ---

func TestReset(t *testing.T) {
	srv := newTestServer(t)
	mustGenerate(t, srv, `{"count":4,"token_mode":"uuid"}`)
	mustGenerate(t, srv, `{"count":4,"token_mode":"uuid"}`)

	for range 2 {
		resp := doRequest(t, http.MethodPost, srv.URL+"/api/v1/reset", "")
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/stats", "")
	stats := decode[struct {
		Sessions int    `json:"sessions"`
		Registry int    `json:"registry"`
		Active   int    `json:"active"`
		State    string `json:"state"`
	}](t, resp)
	assert.Zero(t, stats.Sessions)
	assert.Zero(t, stats.Registry)
	assert.Zero(t, stats.Active)
	assert.Equal(t, "idle", stats.State)
}

func TestDevices(t *testing.T) {
	srv := newTestServer(t)

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/v1/devices", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	devices := decode[[]adapter.DeviceResponse](t, resp)

	require.NotEmpty(t, devices)
	assert.Equal(t, "iphone14", devices[0].ID)
	assert.Equal(t, "ios", devices[0].Platform)
}
