package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/timeseries"
)

// AnalyticsRepository describes the record source required by AnalyticsService.
type AnalyticsRepository interface {
	GoalActivity(ctx context.Context, start, end time.Time) ([]models.GoalRecord, error)
	OpenGoals(ctx context.Context, asOf time.Time) ([]models.GoalRecord, error)
	StudentNames(ctx context.Context, ids []string) (map[string]string, error)
	AttendanceBetween(ctx context.Context, start, end time.Time) ([]models.AttendanceRecord, error)
}

// AnalyticsOptions tunes defaults applied to report parameters.
type AnalyticsOptions struct {
	DefaultRangeDays int
	CacheTTL         time.Duration
}

// AnalyticsService computes goal analytics reports with cache integration.
type AnalyticsService struct {
	repo    AnalyticsRepository
	cache   *CacheService
	metrics *MetricsService
	logger  *zap.Logger
	opts    AnalyticsOptions
	now     func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(repo AnalyticsRepository, cache *CacheService, metrics *MetricsService, logger *zap.Logger, opts AnalyticsOptions) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultRangeDays <= 0 {
		opts.DefaultRangeDays = defaultRangeDays
	}
	return &AnalyticsService{repo: repo, cache: cache, metrics: metrics, logger: logger, opts: opts, now: time.Now}
}

// Overview summarises goals created within the range.
func (s *AnalyticsService) Overview(ctx context.Context, query models.AnalyticsQuery) (*models.GoalOverview, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result models.GoalOverview
	hit, err := s.cached(ctx, "overview", params, &result, func() error {
		records, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		result = summarizeOverview(records, params.Range)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, hit, nil
}

// Completions counts completed goals per bucket, defaulting to weekly buckets.
func (s *AnalyticsService) Completions(ctx context.Context, query models.AnalyticsQuery) ([]models.CompletionPoint, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result []models.CompletionPoint
	hit, err := s.cached(ctx, "completions", params, &result, func() error {
		records, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		result = aggregateCompletions(records, timeseries.Buckets(params.Range.Start, params.Range.End, params.GroupBy))
		return nil
	})
	return result, hit, err
}

// ByStudent ranks students by goals completed within the range.
func (s *AnalyticsService) ByStudent(ctx context.Context, query models.AnalyticsQuery) ([]models.StudentCompletion, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result []models.StudentCompletion
	hit, err := s.cached(ctx, "by_student", params, &result, func() error {
		records, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		page := paginate(rankStudentsByCompletion(records, params.Range), params.Limit, params.Offset)
		ids := make([]string, len(page))
		for i := range page {
			ids[i] = page[i].StudentID
		}
		names, err := s.studentNames(ctx, ids)
		if err != nil {
			return err
		}
		for i := range page {
			page[i].StudentName = names[page[i].StudentID]
		}
		result = page
		return nil
	})
	return result, hit, err
}

// Throughput compares created and completed goals per bucket, defaulting to monthly buckets.
func (s *AnalyticsService) Throughput(ctx context.Context, query models.AnalyticsQuery) ([]models.ThroughputPoint, bool, error) {
	params, err := s.params(query, timeseries.Month)
	if err != nil {
		return nil, false, err
	}
	var result []models.ThroughputPoint
	hit, err := s.cached(ctx, "throughput", params, &result, func() error {
		records, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		result = aggregateThroughput(records, timeseries.Buckets(params.Range.Start, params.Range.End, params.GroupBy))
		return nil
	})
	return result, hit, err
}

// Backlog snapshots open goals at as_of.
func (s *AnalyticsService) Backlog(ctx context.Context, query models.AnalyticsQuery) (*models.BacklogReport, bool, error) {
	// the snapshot ignores the date range, so a bad range must not reject it
	params := s.pointInTimeParams(query)
	var result models.BacklogReport
	hit, err := s.cached(ctx, "backlog", params, &result, func() error {
		records, err := s.openGoals(ctx, params.AsOf)
		if err != nil {
			return err
		}
		result = summarizeBacklog(records, params.AsOf, params.TopN)
		ids := make([]string, len(result.TopStudents))
		for i := range result.TopStudents {
			ids[i] = result.TopStudents[i].StudentID
		}
		names, err := s.studentNames(ctx, ids)
		if err != nil {
			return err
		}
		for i := range result.TopStudents {
			result.TopStudents[i].StudentName = names[result.TopStudents[i].StudentID]
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, hit, nil
}

// Overdue contrasts open overdue goals at as_of with on-time completion over the range.
func (s *AnalyticsService) Overdue(ctx context.Context, query models.AnalyticsQuery) (*models.OverdueReport, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result models.OverdueReport
	hit, err := s.cached(ctx, "overdue", params, &result, func() error {
		open, err := s.openGoals(ctx, params.AsOf)
		if err != nil {
			return err
		}
		activity, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		result = summarizeOverdue(open, activity, params.Range, params.AsOf)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, hit, nil
}

// TimeToComplete describes the days-to-complete distribution of goals completed within the range.
func (s *AnalyticsService) TimeToComplete(ctx context.Context, query models.AnalyticsQuery) (*models.TimeToCompleteStats, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result models.TimeToCompleteStats
	hit, err := s.cached(ctx, "time_to_complete", params, &result, func() error {
		records, err := s.goalActivity(ctx, params.Range)
		if err != nil {
			return err
		}
		result = summarizeTimeToComplete(records, params.Range)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &result, hit, nil
}

// Attendance aggregates attendance marks per bucket, defaulting to weekly buckets.
func (s *AnalyticsService) Attendance(ctx context.Context, query models.AnalyticsQuery) ([]models.AttendancePoint, bool, error) {
	params, err := s.params(query, timeseries.Week)
	if err != nil {
		return nil, false, err
	}
	var result []models.AttendancePoint
	hit, err := s.cached(ctx, "attendance", params, &result, func() error {
		start := time.Now()
		records, err := s.repo.AttendanceBetween(ctx, params.Range.Start, params.Range.End)
		s.observe("analytics_attendance", start)
		if err != nil {
			return upstream(err)
		}
		result = aggregateAttendance(records, timeseries.Buckets(params.Range.Start, params.Range.End, params.GroupBy))
		return nil
	})
	return result, hit, err
}

// SystemMetrics returns system instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.AnalyticsSystemMetrics {
	if s.metrics == nil {
		return models.AnalyticsSystemMetrics{}
	}
	return s.metrics.Snapshot()
}

func (s *AnalyticsService) params(query models.AnalyticsQuery, groupFallback timeseries.Granularity) (reportParams, error) {
	return normalize(query, s.now().UTC(), s.opts.DefaultRangeDays, groupFallback)
}

func (s *AnalyticsService) pointInTimeParams(query models.AnalyticsQuery) reportParams {
	query.StartDate, query.EndDate, query.GroupBy = "", "", ""
	params, _ := s.params(query, timeseries.Week)
	return params
}

// cached serves the report from cache when present; otherwise compute fills dest and the result is stored.
func (s *AnalyticsService) cached(ctx context.Context, report string, params reportParams, dest interface{}, compute func() error) (bool, error) {
	key := params.cacheKey(report)
	if s.cache != nil {
		hit, err := s.cache.Get(ctx, key, dest)
		if err != nil {
			s.logger.Warn("analytics cache lookup failed", zap.String("report", report), zap.Error(err))
		} else if hit {
			return true, nil
		}
	}

	start := time.Now()
	if err := compute(); err != nil {
		return false, err
	}
	if s.metrics != nil {
		s.metrics.ObserveReport(report, time.Since(start))
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, dest, s.opts.CacheTTL); err != nil {
			s.logger.Warn("cache analytics report", zap.String("report", report), zap.Error(err))
		}
	}
	return false, nil
}

func (s *AnalyticsService) goalActivity(ctx context.Context, window models.DateRange) ([]models.GoalRecord, error) {
	start := time.Now()
	records, err := s.repo.GoalActivity(ctx, window.Start, window.End)
	s.observe("analytics_goal_activity", start)
	if err != nil {
		return nil, upstream(err)
	}
	return records, nil
}

func (s *AnalyticsService) openGoals(ctx context.Context, asOf time.Time) ([]models.GoalRecord, error) {
	start := time.Now()
	records, err := s.repo.OpenGoals(ctx, asOf)
	s.observe("analytics_open_goals", start)
	if err != nil {
		return nil, upstream(err)
	}
	return records, nil
}

func (s *AnalyticsService) studentNames(ctx context.Context, ids []string) (map[string]string, error) {
	if len(ids) == 0 {
		return map[string]string{}, nil
	}
	start := time.Now()
	names, err := s.repo.StudentNames(ctx, ids)
	s.observe("analytics_student_names", start)
	if err != nil {
		return nil, upstream(err)
	}
	return names, nil
}

func (s *AnalyticsService) observe(label string, start time.Time) {
	if s.metrics != nil {
		s.metrics.ObserveDBQuery(label, time.Since(start))
	}
}

func upstream(err error) error {
	return appErrors.Wrap(fmt.Errorf("analytics record source: %w", err), appErrors.ErrUpstream.Code, appErrors.ErrUpstream.Status, appErrors.ErrUpstream.Message)
}
