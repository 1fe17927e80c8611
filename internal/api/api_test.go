package api_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aegisdns/aegisdns/internal/api"
	"github.com/aegisdns/aegisdns/internal/api/handlers"
	"github.com/aegisdns/aegisdns/internal/api/models"
	"github.com/aegisdns/aegisdns/internal/metrics"
	"github.com/aegisdns/aegisdns/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T) *api.Server {
	t.Helper()
	s := store.New(testLogger())
	h := handlers.New(s, metrics.New(), nil, testLogger(), t.TempDir()+"/records.db", "test-instance")
	return api.New("127.0.0.1:0", h, testLogger())
}

func performRequest(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestNewCreatesServer(t *testing.T) {
	server := newTestServer(t)
	assert.NotNil(t, server)
	assert.NotNil(t, server.Engine())
}

func TestServerShutdownWithoutListenIsNotAnError(t *testing.T) {
	server := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := server.Shutdown(ctx)
	require.NoError(t, err)
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t)
	w := performRequest(server.Engine(), http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)

	var resp models.HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "test-instance", resp.InstanceID)
}

func TestUpdateThenListThenPatchThenDelete(t *testing.T) {
	server := newTestServer(t)
	engine := server.Engine()

	createBody := `{"name":"foo.example.com","ip":"10.0.0.1","ttl":300,"record_type":"A"}`
	w := performRequest(engine, http.MethodPost, "/update", createBody)
	require.Equal(t, http.StatusOK, w.Code)

	var created models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "created", created.Status)
	assert.Equal(t, "10.0.0.1", created.Record.IP)

	w = performRequest(engine, http.MethodGet, "/records", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list []models.RecordResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	require.Len(t, list, 1)

	w = performRequest(engine, http.MethodPut, "/records/foo.example.com", `{"ttl":900}`)
	require.Equal(t, http.StatusOK, w.Code)
	var patched models.StatusResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &patched))
	assert.Equal(t, uint32(900), patched.Record.TTL)

	w = performRequest(engine, http.MethodDelete, "/records/foo.example.com", "")
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(engine, http.MethodGet, "/records", "")
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.Empty(t, list)
}

func TestUpdateRejectsInvalidIP(t *testing.T) {
	server := newTestServer(t)
	w := performRequest(server.Engine(), http.MethodPost, "/update", `{"name":"bad.example.com","ip":"not-an-ip","ttl":60,"record_type":"A"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPatchUnknownNameReturns404(t *testing.T) {
	server := newTestServer(t)
	w := performRequest(server.Engine(), http.MethodPut, "/records/missing.example.com", `{"ttl":60}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDeleteUnknownNameReturns404(t *testing.T) {
	server := newTestServer(t)
	w := performRequest(server.Engine(), http.MethodDelete, "/records/missing.example.com", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}
