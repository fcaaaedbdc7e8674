package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/bryanwahyu/webtaxon/internal/domain/classification"
)

// Metrics stores application counters.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	ClassificationsTotal   atomic.Uint64
	ClassificationsFailed  atomic.Uint64
	ClassificationsBlocked atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// ObserveClassification counts one orchestration outcome.
func (m *Metrics) ObserveClassification(err error) {
	m.ClassificationsTotal.Add(1)
	switch {
	case err == nil:
	case errors.Is(err, classification.ErrOracleBlocked):
		m.ClassificationsBlocked.Add(1)
	default:
		m.ClassificationsFailed.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"requests_total":          m.RequestsTotal.Load(),
		"requests_in_progress":    m.RequestsInProgress.Load(),
		"requests_success":        m.RequestsSuccess.Load(),
		"requests_failed":         m.RequestsFailed.Load(),
		"classifications_total":   m.ClassificationsTotal.Load(),
		"classifications_failed":  m.ClassificationsFailed.Load(),
		"classifications_blocked": m.ClassificationsBlocked.Load(),
		"uptime_seconds":          time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
