// ABOUTME: Shared test harness for the server package
// ABOUTME: Builds a server over a temp SQLite store, memory keychain, and stub validator

package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/grimoire/internal/config"
	"github.com/2389/grimoire/internal/credentials"
	"github.com/2389/grimoire/internal/export"
	"github.com/2389/grimoire/internal/keychain"
	"github.com/2389/grimoire/internal/store"
)

// stubValidator returns a fixed validation outcome
type stubValidator struct {
	valid bool
	err   error
}

func (s *stubValidator) Validate(ctx context.Context, apiKey string) (bool, error) {
	return s.valid, s.err
}

// testHarness bundles a server with its collaborators
type testHarness struct {
	server    *Server
	store     store.Store
	keychain  *keychain.Memory
	validator *stubValidator
}

func newTestHarness(t *testing.T) *testHarness {
	t.Helper()

	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "server-test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	kc := keychain.NewMemory()
	v := &stubValidator{}
	resolver := credentials.NewResolver(kc, v, st, nil)
	exporter := export.New(st, nil)

	cfg := config.Default()
	srv := New(cfg, st, resolver, exporter, nil, nil)

	return &testHarness{server: srv, store: st, keychain: kc, validator: v}
}

// do runs one request through the mux and returns the recorded response
func (h *testHarness) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(rec, req)
	return rec
}

// decode unmarshals a recorded JSON response into v
func decode(t *testing.T, rec *httptest.ResponseRecorder, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// saveProject persists a project through the API and returns its ID
func (h *testHarness) saveProject(t *testing.T, req SaveProjectRequest) string {
	t.Helper()

	rec := h.do(t, http.MethodPost, "/api/projects", req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp SaveProjectResponse
	decode(t, rec, &resp)
	require.NotEmpty(t, resp.ProjectID)
	return resp.ProjectID
}
