package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
)

type fakeAnalyticsSrv struct {
	throughput []models.ThroughputPoint
	backlog    *models.BacklogReport
	hit        bool
	err        error
	lastQuery  models.AnalyticsQuery
}

func (f *fakeAnalyticsSrv) Overview(_ context.Context, q models.AnalyticsQuery) (*models.GoalOverview, bool, error) {
	f.lastQuery = q
	return &models.GoalOverview{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Completions(_ context.Context, q models.AnalyticsQuery) ([]models.CompletionPoint, bool, error) {
	f.lastQuery = q
	return []models.CompletionPoint{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) ByStudent(_ context.Context, q models.AnalyticsQuery) ([]models.StudentCompletion, bool, error) {
	f.lastQuery = q
	return []models.StudentCompletion{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Throughput(_ context.Context, q models.AnalyticsQuery) ([]models.ThroughputPoint, bool, error) {
	f.lastQuery = q
	return f.throughput, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Backlog(_ context.Context, q models.AnalyticsQuery) (*models.BacklogReport, bool, error) {
	f.lastQuery = q
	return f.backlog, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Overdue(_ context.Context, q models.AnalyticsQuery) (*models.OverdueReport, bool, error) {
	f.lastQuery = q
	return &models.OverdueReport{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) TimeToComplete(_ context.Context, q models.AnalyticsQuery) (*models.TimeToCompleteStats, bool, error) {
	f.lastQuery = q
	return &models.TimeToCompleteStats{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) Attendance(_ context.Context, q models.AnalyticsQuery) ([]models.AttendancePoint, bool, error) {
	f.lastQuery = q
	return []models.AttendancePoint{}, f.hit, f.err
}

func (f *fakeAnalyticsSrv) SystemMetrics() models.AnalyticsSystemMetrics {
	return models.AnalyticsSystemMetrics{RequestsTotal: 7}
}

type responseEnvelope struct {
	Data  json.RawMessage        `json:"data"`
	Error map[string]interface{} `json:"error"`
	Meta  map[string]interface{} `json:"meta"`
}

func performAnalytics(t *testing.T, target string, handle gin.HandlerFunc) (*httptest.ResponseRecorder, responseEnvelope) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, target, nil)

	handle(c)

	var envelope responseEnvelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	return rec, envelope
}

func TestAnalyticsHandlerThroughputBindsQuery(t *testing.T) {
	srv := &fakeAnalyticsSrv{
		throughput: []models.ThroughputPoint{{Label: "2025-08", Start: "2025-08-01", End: "2025-08-31", Created: 10, Completed: 8, CompletionRate: 0.8}},
		hit:        true,
	}
	handler := NewAnalyticsHandler(srv)

	rec, envelope := performAnalytics(t, "/analytics/throughput?start_date=2025-08-01&end_date=2025-09-30&group_by=month", handler.Throughput)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.AnalyticsQuery{StartDate: "2025-08-01", EndDate: "2025-09-30", GroupBy: "month"}, srv.lastQuery)
	assert.Equal(t, true, envelope.Meta["cache_hit"])
	assert.Contains(t, envelope.Meta, "processing_time_ms")

	var points []models.ThroughputPoint
	require.NoError(t, json.Unmarshal(envelope.Data, &points))
	assert.Equal(t, srv.throughput, points)
}

func TestAnalyticsHandlerBacklogPassesRawParameters(t *testing.T) {
	srv := &fakeAnalyticsSrv{backlog: &models.BacklogReport{AsOf: "2025-09-25", OpenByAge: []models.AgeBucketCount{}}}
	handler := NewAnalyticsHandler(srv)

	rec, envelope := performAnalytics(t, "/analytics/backlog?as_of=2025-09-25&top_n=abc", handler.Backlog)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "abc", srv.lastQuery.TopN)
	assert.Equal(t, false, envelope.Meta["cache_hit"])

	var report models.BacklogReport
	require.NoError(t, json.Unmarshal(envelope.Data, &report))
	assert.Equal(t, "2025-09-25", report.AsOf)
}

func TestAnalyticsHandlerInvalidDateRange(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{err: appErrors.ErrInvalidDateRange})

	rec, envelope := performAnalytics(t, "/analytics/overview?start_date=2025-09-30&end_date=2025-09-01", handler.Overview)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "INVALID_DATE_RANGE", envelope.Error["code"])
}

func TestAnalyticsHandlerUpstreamFailure(t *testing.T) {
	upstream := appErrors.Wrap(assert.AnError, appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{err: upstream})

	for name, handle := range map[string]gin.HandlerFunc{
		"completions":      handler.Completions,
		"by-student":       handler.ByStudent,
		"overdue":          handler.Overdue,
		"time-to-complete": handler.TimeToComplete,
		"attendance":       handler.Attendance,
	} {
		t.Run(name, func(t *testing.T) {
			rec, envelope := performAnalytics(t, "/analytics/"+name, handle)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, "UPSTREAM_FAILURE", envelope.Error["code"])
		})
	}
}

func TestAnalyticsHandlerSystem(t *testing.T) {
	handler := NewAnalyticsHandler(&fakeAnalyticsSrv{})

	rec, envelope := performAnalytics(t, "/analytics/system", handler.System)

	assert.Equal(t, http.StatusOK, rec.Code)
	var snapshot models.AnalyticsSystemMetrics
	require.NoError(t, json.Unmarshal(envelope.Data, &snapshot))
	assert.Equal(t, uint64(7), snapshot.RequestsTotal)
}
