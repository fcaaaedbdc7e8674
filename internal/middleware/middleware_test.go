package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

func TestValidateURL(t *testing.T) {
	for _, ok := range []string{"https://example.com/a", "http://93.184.216.34/"} {
		require.NoError(t, ValidateURL(ok), ok)
	}
	for _, bad := range []string{
		"", "ftp://example.com", "https://", "http://localhost:8080", "http://api.localhost",
		"http://127.0.0.1", "http://[::1]/", "http://0.0.0.0", "http://10.1.2.3", "http://192.168.0.1",
		"http://172.20.0.5", "http://169.254.169.254/latest/meta-data",
	} {
		require.Error(t, ValidateURL(bad), bad)
	}
}

func TestValidateEntryID(t *testing.T) {
	require.NoError(t, ValidateEntryID("3f1c7a8e-0b5d-4d47-9d7c-2f7d9b0a1c11"))
	require.Error(t, ValidateEntryID(""))
	require.Error(t, ValidateEntryID("../etc/passwd"))
}

func TestPagination(t *testing.T) {
	require.Equal(t, 20, ValidateLimit(0))
	require.Equal(t, 100, ValidateLimit(1000))
	require.Equal(t, 7, ValidateLimit(7))
	require.Equal(t, 1, ValidatePage(-3))
	require.Equal(t, 4, ValidatePage(4))
}

func TestSanitizeString(t *testing.T) {
	require.Equal(t, "go\tlang", SanitizeString("  go\x00\tlang\x07 "))
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	rl.lastSweep = now

	require.True(t, rl.Allow("a"))
	require.True(t, rl.Allow("a"))
	require.False(t, rl.Allow("a"))
	require.True(t, rl.Allow("b"))

	now = now.Add(time.Second)
	require.True(t, rl.Allow("a"))

	now = now.Add(time.Hour)
	require.True(t, rl.Allow("c"))
	require.Equal(t, 1, rl.size())
}

func TestRateLimitMiddleware(t *testing.T) {
	h := RateLimitMiddleware(NewRateLimiter(0.001, 1))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	do := func(path string) int {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	require.Equal(t, http.StatusNoContent, do("/v1/tree"))
	require.Equal(t, http.StatusTooManyRequests, do("/v1/tree"))
	require.Equal(t, http.StatusNoContent, do("/health"))
}

func TestMetrics(t *testing.T) {
	m := NewMetrics()
	m.ObserveClassification(nil)
	m.ObserveClassification(&classification.BlockedError{Reason: "x"})
	m.ObserveClassification(classification.ErrFetch)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	rec := httptest.NewRecorder()
	m.Handler(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.EqualValues(t, 3, body["classifications_total"])
	require.EqualValues(t, 1, body["classifications_blocked"])
	require.EqualValues(t, 1, body["classifications_failed"])
	require.EqualValues(t, 1, body["requests_failed"])
	require.EqualValues(t, 0, body["requests_in_progress"])
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthHandler(t *testing.T) {
	h := HealthHandler(map[string]HealthChecker{
		"database": PingChecker{Target: pingFunc(func(context.Context) error { return nil })},
		"search":   PingChecker{Target: pingFunc(func(context.Context) error { return errors.New("down") })},
	})
	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	require.Equal(t, "unhealthy", status.Status)
	require.Equal(t, "healthy", status.Checks["database"].Status)
	require.Equal(t, "down", status.Checks["search"].Message)
}

func TestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	h := Logging(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("missing"))
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/history/x", nil))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, zap.WarnLevel, entry.Level)
	require.EqualValues(t, 404, entry.ContextMap()["status"])
	require.EqualValues(t, 7, entry.ContextMap()["bytes"])
}
