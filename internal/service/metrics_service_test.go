package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsSnapshotAggregates(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/analytics/overview", http.StatusOK, 10*time.Millisecond)
	m.ObserveHTTPRequest(http.MethodGet, "/api/v1/analytics/overview", http.StatusOK, 30*time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(false, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveDBQuery("goal_activity", 4*time.Millisecond)
	m.ObserveReport("throughput", 5*time.Millisecond)
	m.ObserveExport("csv", "FINISHED", time.Second)

	snap := m.Snapshot()
	assert.Equal(t, uint64(2), snap.RequestsTotal)
	assert.InDelta(t, 20.0, snap.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(2), snap.CacheHits)
	assert.Equal(t, uint64(2), snap.CacheMisses)
	assert.InDelta(t, 0.5, snap.CacheHitRatio, 1e-9)
	assert.Equal(t, uint64(1), snap.DBQueryCount)
	assert.InDelta(t, 4.0, snap.AverageDBQueryDurationMs, 0.001)
	assert.Equal(t, uint64(1), snap.ReportsComputed)
	assert.Equal(t, uint64(1), snap.ExportsProcessed)
	assert.Positive(t, snap.Goroutines)
}

func TestMetricsExposition(t *testing.T) {
	m := NewMetricsService()
	m.ObserveExport("pdf", "FAILED", time.Second)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `goal_tracker_analytics_export_duration_seconds_count{format="pdf",status="FAILED"} 1`)
	assert.Contains(t, body, "go_goroutines")
}

func TestNilMetricsServiceIsNoop(t *testing.T) {
	var m *MetricsService
	m.ObserveHTTPRequest(http.MethodGet, "/", http.StatusOK, time.Millisecond)
	m.RecordCacheOperation(true, time.Millisecond)
	m.ObserveExport("csv", "FINISHED", time.Millisecond)
	assert.Zero(t, m.Snapshot().RequestsTotal)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
