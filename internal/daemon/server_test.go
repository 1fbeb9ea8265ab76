package daemon

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerHealth(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	server := NewServer(h, nil, nil, ":0", nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.Nil(t, resp.ScannerStatus)
}

func TestServerHealthUnhealthy(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	server := NewServer(h, nil, nil, ":0", nil)
	server.SetHealthy(false)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "not ready", rec.Body.String())
}

func TestServerMetrics(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	h.stats.RecordError()
	server := NewServer(h, nil, nil, ":0", nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MetricsResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, int64(1), resp.Errors)
	assert.Zero(t, resp.TotalProcessed)
	assert.Empty(t, resp.LastProcessed)
}

func TestServerMountsAPI(t *testing.T) {
	api := http.NewServeMux()
	api.HandleFunc("/api/v1/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h := newTestHandler(t, t.TempDir(), time.Hour)
	server := NewServer(h, nil, api, ":0", nil)

	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestDaemon_RequiresWork(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	_, err := New(Config{Handler: h})
	assert.Error(t, err)

	_, err = New(Config{WatchPaths: []string{t.TempDir()}})
	assert.Error(t, err)
}

func TestDaemon_RunStopsOnCancel(t *testing.T) {
	h := newTestHandler(t, t.TempDir(), time.Hour)
	d, err := New(Config{
		WatchPaths:   []string{t.TempDir()},
		Recursive:    true,
		ScanInterval: time.Hour,
		Rescan:       func(ctx context.Context, root string) error { return nil },
		Handler:      h,
	})
	require.NoError(t, err)
	assert.True(t, d.ScannerStatus().Healthy)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("daemon did not stop")
	}
}
