package main

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// setupTestDB opens a fresh database in a temporary directory with every
// schema the server needs.
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := initDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = db.Close()
	})
	require.NoError(t, setupCorpusSchema(db))
	require.NoError(t, setupAuthSchema(db))
	return db
}

func setupTestStore(t *testing.T) *CorpusStore {
	t.Helper()
	store, err := NewCorpusStore(setupTestDB(t), newTestLogger())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store
}

func setupTestConfig(t *testing.T) *ConfigManager {
	t.Helper()
	cm, err := NewConfigManager(filepath.Join(t.TempDir(), "config.json"))
	require.NoError(t, err)
	cm.SetLogger(newTestLogger())
	return cm
}

func setupTestServer(t *testing.T) (*Server, chan string) {
	t.Helper()
	db := setupTestDB(t)
	actionChan := make(chan string, 1)
	server, err := NewServer(setupTestConfig(t), newTestLogger(), db, actionChan)
	require.NoError(t, err)
	t.Cleanup(server.Close)
	return server, actionChan
}

// doRequest sends a request through h and returns the recorded response. A
// non-nil body is encoded as JSON.
func doRequest(t *testing.T, h http.Handler, method, path string, body any, apiKey string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if apiKey != "" {
		req.Header.Set(authHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}
