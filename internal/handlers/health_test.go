package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memohai/lineassist/internal/config"
	"github.com/memohai/lineassist/internal/healthcheck"
	"github.com/memohai/lineassist/internal/version"
)

func newTestHealthHandler() (*HealthHandler, *echo.Echo) {
	cfg := config.Default()
	cfg.Env = "production"
	h := NewHealthHandler(nil, cfg)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h.started = start
	h.now = func() time.Time { return start.Add(90 * time.Second) }
	e := echo.New()
	h.Register(e)
	return h, e
}

func get(t *testing.T, e *echo.Echo, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestHealth_Basic(t *testing.T) {
	t.Parallel()
	_, e := newTestHealthHandler()

	rec := get(t, e, http.MethodGet, "/health")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, HealthResponse{
		Status:      "OK",
		Timestamp:   "2024-01-01T00:01:30Z",
		Uptime:      90,
		Environment: "production",
		Version:     version.Version,
	}, resp)
}

func TestHealth_Detailed(t *testing.T) {
	t.Parallel()
	_, e := newTestHealthHandler()

	rec := get(t, e, http.MethodGet, "/health/detailed")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "OK", resp.Status)
	assert.Positive(t, resp.Goroutines)
	assert.Positive(t, resp.Memory.Total)
	assert.NotEmpty(t, resp.GoVersion)
	assert.Contains(t, resp.Platform, "/")
}

func TestHealth_Probes(t *testing.T) {
	t.Parallel()
	_, e := newTestHealthHandler()

	for path, status := range map[string]string{"/health/ready": "ready", "/health/live": "alive"} {
		rec := get(t, e, http.MethodGet, path)
		require.Equal(t, http.StatusOK, rec.Code)
		var resp ProbeResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, status, resp.Status)
	}

	assert.Equal(t, http.StatusOK, get(t, e, http.MethodHead, "/health").Code)
	assert.JSONEq(t, `{"status":"ok"}`, get(t, e, http.MethodGet, "/ping").Body.String())
}

func TestIndex(t *testing.T) {
	t.Parallel()
	_, e := newTestHealthHandler()

	rec := get(t, e, http.MethodGet, "/")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status    string            `json:"status"`
		Endpoints map[string]string `json:"endpoints"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "running", resp.Status)
	assert.Equal(t, "/line-webhook", resp.Endpoints["lineWebhook"])

	rec = get(t, e, http.MethodGet, "/api")
	assert.Contains(t, rec.Body.String(), "API is working!")
}

type failingChecker struct{}

func (failingChecker) ListChecks(context.Context) []healthcheck.CheckResult {
	return []healthcheck.CheckResult{{ID: "dependency", Status: healthcheck.StatusError, Summary: "down"}}
}

func TestHealth_ReadyReportsChecks(t *testing.T) {
	t.Parallel()
	h, e := newTestHealthHandler()

	rec := get(t, e, http.MethodGet, "/health/ready")
	require.Equal(t, http.StatusOK, rec.Code)
	var resp ProbeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Checks, 2)
	assert.Equal(t, healthcheck.StatusWarn, resp.Checks[0].Status)

	h.checkers = append(h.checkers, failingChecker{})
	rec = get(t, e, http.MethodGet, "/health/ready")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"not ready"`)
}
