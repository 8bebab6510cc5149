package server_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/sportsagg/ingestion/internal/scheduler"
	"github.com/telhawk-systems/sportsagg/ingestion/internal/server"
)

type fixedStats map[string]scheduler.SourceStats

func (f fixedStats) Stats() map[string]scheduler.SourceStats { return f }

type conn bool

func (c conn) IsConnected() bool { return bool(c) }

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestNewRouter(t *testing.T) {
	router := server.NewRouter(fixedStats{"football-mock": {Cycles: 3, Published: 7}}, conn(true))

	assert.Equal(t, http.StatusOK, get(t, router, "/healthz").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/readyz").Code)
	assert.Equal(t, http.StatusOK, get(t, router, "/metrics").Code)

	w := get(t, router, "/stats")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Sources map[string]scheduler.SourceStats `json:"sources"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, uint64(7), body.Sources["football-mock"].Published)
}

func TestReady_Disconnected(t *testing.T) {
	router := server.NewRouter(fixedStats{}, conn(false))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, router, "/readyz").Code)
}

func TestMethodNotAllowed(t *testing.T) {
	router := server.NewRouter(fixedStats{}, conn(true))
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/healthz", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, http.MethodGet, w.Header().Get("Allow"))
}
