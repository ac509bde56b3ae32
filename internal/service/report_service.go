package service

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/goal-tracker-api/internal/dto"
	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/jobs"
	"github.com/noah-isme/goal-tracker-api/pkg/storage"
	"github.com/noah-isme/goal-tracker-api/pkg/timeseries"
)

const exportJobType = "analytics_export"

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string, progress int) error
	MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	Requeue(ctx context.Context, id, message string) error
	ClearResult(ctx context.Context, id string) error
	ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error)
	ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error)
}

type jobDispatcher interface {
	Enqueue(job jobs.Job) error
}

type exportGenerator interface {
	Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error)
}

type exportFiles interface {
	ParseToken(token string, allowExpired bool) (storage.DownloadToken, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
	Cleanup() ([]string, error)
	ContentType(format models.ReportFormat) string
}

// ReportServiceConfig governs recovery and cleanup.
type ReportServiceConfig struct {
	ResultTTL        time.Duration
	CleanupInterval  time.Duration
	DefaultRangeDays int
}

// ReportDownload is an opened export ready to stream.
type ReportDownload struct {
	File        *os.File
	Filename    string
	ContentType string
	ExpiresAt   time.Time
}

// ReportService manages the export job lifecycle seen by API clients.
type ReportService struct {
	repo      reportJobStore
	queue     jobDispatcher
	files     exportFiles
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ReportServiceConfig
	now       func() time.Time
}

// NewReportService constructs the report service.
func NewReportService(repo reportJobStore, queue jobDispatcher, files exportFiles, validate *validator.Validate, logger *zap.Logger, cfg ReportServiceConfig) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	return &ReportService{repo: repo, queue: queue, files: files, validator: validate, logger: logger, cfg: cfg, now: time.Now}
}

// CreateJob validates req, persists a QUEUED job and hands it to the worker pool.
// Date ranges are checked up front so clients get the same 400 as the synchronous endpoints.
func (s *ReportService) CreateJob(ctx context.Context, req dto.ExportRequest, actorID string) (*dto.ExportJobResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export request")
	}
	if req.Report.HasDateRange() {
		if _, err := normalize(req.AnalyticsQuery, s.now().UTC(), s.cfg.DefaultRangeDays, timeseries.Week); err != nil {
			return nil, err
		}
	}

	job := &models.ReportJob{
		Type:      req.Report,
		Params:    models.ReportJobParams{Query: req.AnalyticsQuery, Format: req.Format},
		CreatedBy: actorID,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create export job")
	}
	if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
		if markErr := s.repo.MarkFailed(ctx, job.ID, "failed to enqueue job", s.now().UTC()); markErr != nil {
			s.logger.Warn("failed to mark unqueued job", zap.String("job_id", job.ID), zap.Error(markErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue export job")
	}
	s.logger.Info("export job queued", zap.String("job_id", job.ID), zap.String("report", string(job.Type)), zap.String("format", string(job.Params.Format)))
	return &dto.ExportJobResponse{ID: job.ID, Status: job.Status, Progress: job.Progress}, nil
}

// GetStatus returns job progress. Only the creator or a superadmin may see a job.
func (s *ReportService) GetStatus(ctx context.Context, id, actorID string, role models.UserRole) (*dto.ExportStatusResponse, error) {
	job, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if role != models.RoleSuperAdmin && job.CreatedBy != actorID {
		return nil, appErrors.ErrForbidden
	}
	resp := &dto.ExportStatusResponse{
		ID:         job.ID,
		Report:     job.Type,
		Format:     job.Params.Format,
		Status:     job.Status,
		Progress:   job.Progress,
		ResultURL:  job.ResultURL,
		CreatedAt:  job.CreatedAt,
		FinishedAt: job.FinishedAt,
	}
	if job.ErrorMessage != nil && *job.ErrorMessage != "" {
		resp.Error = job.ErrorMessage
	}
	return resp, nil
}

// ResolveDownload verifies token against the job it names and opens the stored file.
func (s *ReportService) ResolveDownload(ctx context.Context, token string) (*ReportDownload, error) {
	parsed, err := s.files.ParseToken(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "invalid or expired download token")
	}
	job, err := s.load(ctx, parsed.JobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ReportStatusFinished || job.ResultURL == nil || path.Base(*job.ResultURL) != token {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download token does not match report")
	}
	file, err := s.files.Open(parsed.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file no longer available")
	}
	return &ReportDownload{
		File:        file,
		Filename:    path.Base(parsed.Path),
		ContentType: s.files.ContentType(job.Params.Format),
		ExpiresAt:   parsed.ExpiresAt,
	}, nil
}

// RecoverPendingJobs re-enqueues jobs left QUEUED by a previous process.
func (s *ReportService) RecoverPendingJobs(ctx context.Context) int {
	pending, err := s.repo.ListQueued(ctx, 50)
	if err != nil {
		s.logger.Warn("failed to list queued export jobs", zap.Error(err))
		return 0
	}
	recovered := 0
	for _, job := range pending {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: exportJobType}); err != nil {
			s.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		recovered++
	}
	if recovered > 0 {
		s.logger.Info("recovered queued export jobs", zap.Int("count", recovered))
	}
	return recovered
}

// StartCleanup purges expired exports every CleanupInterval until ctx ends.
func (s *ReportService) StartCleanup(ctx context.Context) {
	if s.cfg.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(s.cfg.CleanupInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.CleanupExpired(ctx)
			}
		}
	}()
}

// CleanupExpired deletes files of jobs older than the result TTL and sweeps stray files.
func (s *ReportService) CleanupExpired(ctx context.Context) {
	const batch = 100
	cutoff := s.now().Add(-s.cfg.ResultTTL)
	for {
		expired, err := s.repo.ListExpired(ctx, cutoff, batch)
		if err != nil {
			s.logger.Warn("export cleanup listing failed", zap.Error(err))
			return
		}
		for _, job := range expired {
			s.purge(ctx, job)
		}
		if len(expired) < batch {
			break
		}
	}
	if removed, err := s.files.Cleanup(); err != nil {
		s.logger.Warn("export directory sweep failed", zap.Error(err))
	} else if len(removed) > 0 {
		s.logger.Info("removed stale export files", zap.Int("count", len(removed)))
	}
}

func (s *ReportService) purge(ctx context.Context, job models.ReportJob) {
	if job.ResultURL != nil {
		if parsed, err := s.files.ParseToken(path.Base(*job.ResultURL), true); err == nil {
			if err := s.files.Delete(parsed.Path); err != nil {
				s.logger.Warn("failed to delete export file", zap.String("job_id", job.ID), zap.Error(err))
				return
			}
		}
	}
	if err := s.repo.ClearResult(ctx, job.ID); err != nil {
		s.logger.Warn("failed to clear export result", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func (s *ReportService) load(ctx context.Context, id string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	return job, nil
}

type exportObserver interface {
	ObserveExport(format, status string, duration time.Duration)
}

// ReportWorker renders queued export jobs.
type ReportWorker struct {
	repo       reportJobStore
	exporter   exportGenerator
	metrics    exportObserver
	logger     *zap.Logger
	maxRetries int
	now        func() time.Time
}

// NewReportWorker constructs a worker. maxRetries must match the queue's retry budget.
func NewReportWorker(repo reportJobStore, exporter exportGenerator, metrics exportObserver, maxRetries int, logger *zap.Logger) *ReportWorker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &ReportWorker{repo: repo, exporter: exporter, metrics: metrics, logger: logger, maxRetries: maxRetries, now: time.Now}
}

// Handle renders one job. It returns an error only when the queue should retry; client
// errors such as an invalid range fail the job immediately.
func (w *ReportWorker) Handle(ctx context.Context, job jobs.Job) error {
	started := w.now()
	record, err := w.repo.GetByID(ctx, job.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			w.logger.Warn("export job vanished", zap.String("job_id", job.ID))
			return nil
		}
		return err
	}
	if record.Status.Terminal() {
		return nil
	}
	if err := w.repo.MarkProcessing(ctx, job.ID, 10); err != nil {
		return err
	}

	result, genErr := w.exporter.Generate(ctx, record)
	if genErr == nil {
		if err := w.repo.MarkFinished(ctx, job.ID, result.URL, w.now().UTC()); err != nil {
			return err
		}
		w.observe(record, models.ReportStatusFinished, started)
		w.logger.Info("export job finished", zap.String("job_id", job.ID), zap.Duration("took", w.now().Sub(started)))
		return nil
	}

	msg := genErr.Error()
	retryable := appErrors.FromError(genErr).Status >= 500
	if !retryable || job.Attempt >= w.maxRetries {
		if err := w.repo.MarkFailed(ctx, job.ID, msg, w.now().UTC()); err != nil {
			w.logger.Warn("failed to mark export job failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		w.observe(record, models.ReportStatusFailed, started)
		w.logger.Error("export job failed", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Error(genErr))
		return nil
	}
	if err := w.repo.Requeue(ctx, job.ID, msg); err != nil {
		w.logger.Warn("failed to requeue export job", zap.String("job_id", job.ID), zap.Error(err))
	}
	return genErr
}

func (w *ReportWorker) observe(job *models.ReportJob, status models.ReportStatus, started time.Time) {
	if w.metrics == nil {
		return
	}
	w.metrics.ObserveExport(string(job.Params.Format), string(status), w.now().Sub(started))
}
