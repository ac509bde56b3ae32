package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/goal-tracker-api/internal/middleware"
	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/response"
)

type analyticsService interface {
	Overview(ctx context.Context, query models.AnalyticsQuery) (*models.GoalOverview, bool, error)
	Completions(ctx context.Context, query models.AnalyticsQuery) ([]models.CompletionPoint, bool, error)
	ByStudent(ctx context.Context, query models.AnalyticsQuery) ([]models.StudentCompletion, bool, error)
	Throughput(ctx context.Context, query models.AnalyticsQuery) ([]models.ThroughputPoint, bool, error)
	Backlog(ctx context.Context, query models.AnalyticsQuery) (*models.BacklogReport, bool, error)
	Overdue(ctx context.Context, query models.AnalyticsQuery) (*models.OverdueReport, bool, error)
	TimeToComplete(ctx context.Context, query models.AnalyticsQuery) (*models.TimeToCompleteStats, bool, error)
	Attendance(ctx context.Context, query models.AnalyticsQuery) ([]models.AttendancePoint, bool, error)
	SystemMetrics() models.AnalyticsSystemMetrics
}

// AnalyticsHandler exposes goal analytics reports.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Overview godoc
// @Summary Goal overview
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /analytics/overview [get]
func (h *AnalyticsHandler) Overview(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Overview(ctx, query)
	})
}

// Completions godoc
// @Summary Completed goals per bucket
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param group_by query string false "day, week or month" default(week)
// @Success 200 {object} response.Envelope
// @Router /analytics/completions [get]
func (h *AnalyticsHandler) Completions(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Completions(ctx, query)
	})
}

// ByStudent godoc
// @Summary Students ranked by completions
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param limit query int false "Page size, clamped to 1..1000" default(100)
// @Param offset query int false "Rows to skip" default(0)
// @Success 200 {object} response.Envelope
// @Router /analytics/by-student [get]
func (h *AnalyticsHandler) ByStudent(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.ByStudent(ctx, query)
	})
}

// Throughput godoc
// @Summary Created versus completed goals per bucket
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param group_by query string false "day, week or month" default(month)
// @Success 200 {object} response.Envelope
// @Router /analytics/throughput [get]
func (h *AnalyticsHandler) Throughput(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Throughput(ctx, query)
	})
}

// Backlog godoc
// @Summary Open goal snapshot
// @Tags Analytics
// @Produce json
// @Param as_of query string false "Snapshot date (YYYY-MM-DD)"
// @Param top_n query int false "Students listed, clamped to 1..100" default(10)
// @Success 200 {object} response.Envelope
// @Router /analytics/backlog [get]
func (h *AnalyticsHandler) Backlog(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Backlog(ctx, query)
	})
}

// Overdue godoc
// @Summary Overdue goals and on-time completion
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param as_of query string false "Snapshot date (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/overdue [get]
func (h *AnalyticsHandler) Overdue(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Overdue(ctx, query)
	})
}

// TimeToComplete godoc
// @Summary Days-to-complete distribution
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /analytics/time-to-complete [get]
func (h *AnalyticsHandler) TimeToComplete(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.TimeToComplete(ctx, query)
	})
}

// Attendance godoc
// @Summary Attendance per bucket
// @Tags Analytics
// @Produce json
// @Param start_date query string false "Range start (YYYY-MM-DD)"
// @Param end_date query string false "Range end (YYYY-MM-DD)"
// @Param group_by query string false "day, week or month" default(week)
// @Success 200 {object} response.Envelope
// @Router /analytics/attendance [get]
func (h *AnalyticsHandler) Attendance(c *gin.Context) {
	h.serve(c, func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error) {
		return h.analytics.Attendance(ctx, query)
	})
}

// System returns instrumentation metrics snapshots.
func (h *AnalyticsHandler) System(c *gin.Context) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	middleware.SetCacheHit(c, false)
	response.JSON(c, http.StatusOK, h.analytics.SystemMetrics(), middleware.Meta(c))
}

type reportFunc func(ctx context.Context, query models.AnalyticsQuery) (interface{}, bool, error)

func (h *AnalyticsHandler) serve(c *gin.Context, run reportFunc) {
	if h.analytics == nil {
		response.Error(c, appErrors.ErrInternal)
		return
	}
	var query models.AnalyticsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid query parameters"))
		return
	}
	data, cacheHit, err := run(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	response.JSON(c, http.StatusOK, data, middleware.Meta(c))
}
