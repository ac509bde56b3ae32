package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/goal-tracker-api/internal/models"
)

const reportJobColumns = "id, type, params, status, progress, result_url, created_by, created_at, finished_at, error_message"

// ReportRepository persists export job state in report_jobs.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create inserts job as QUEUED, assigning an id and creation time when missing.
func (r *ReportRepository) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.Status = models.ReportStatusQueued
	job.Progress = 0

	const query = `INSERT INTO report_jobs (` + reportJobColumns + `)
VALUES (:id, :type, :params, :status, :progress, :result_url, :created_by, :created_at, :finished_at, :error_message)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create report job: %w", err)
	}
	return nil
}

// GetByID returns sql.ErrNoRows unwrapped when the job does not exist.
func (r *ReportRepository) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	const query = `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE id = $1`
	var job models.ReportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sql.ErrNoRows
		}
		return nil, fmt.Errorf("get report job: %w", err)
	}
	return &job, nil
}

// MarkProcessing moves a job into PROCESSING with the given progress.
func (r *ReportRepository) MarkProcessing(ctx context.Context, id string, progress int) error {
	const query = `UPDATE report_jobs SET status = $2, progress = $3 WHERE id = $1`
	return r.exec(ctx, "mark report job processing", query, id, models.ReportStatusProcessing, progress)
}

// MarkFinished records the download URL and clears any earlier error.
func (r *ReportRepository) MarkFinished(ctx context.Context, id, resultURL string, finishedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, progress = 100, result_url = $3, error_message = NULL, finished_at = $4 WHERE id = $1`
	return r.exec(ctx, "mark report job finished", query, id, models.ReportStatusFinished, resultURL, finishedAt)
}

// MarkFailed terminates a job with message.
func (r *ReportRepository) MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error {
	const query = `UPDATE report_jobs SET status = $2, progress = 100, error_message = $3, finished_at = $4 WHERE id = $1`
	return r.exec(ctx, "mark report job failed", query, id, models.ReportStatusFailed, message, finishedAt)
}

// Requeue returns a job to QUEUED after a retryable failure, keeping the last error visible.
func (r *ReportRepository) Requeue(ctx context.Context, id, message string) error {
	const query = `UPDATE report_jobs SET status = $2, progress = 0, error_message = $3 WHERE id = $1`
	return r.exec(ctx, "requeue report job", query, id, models.ReportStatusQueued, message)
}

// ClearResult drops the download URL once the file has been purged.
func (r *ReportRepository) ClearResult(ctx context.Context, id string) error {
	const query = `UPDATE report_jobs SET result_url = NULL WHERE id = $1`
	return r.exec(ctx, "clear report job result", query, id)
}

// ListQueued returns the oldest queued jobs, used to replay work after a restart.
func (r *ReportRepository) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 20
	}
	const query = `SELECT ` + reportJobColumns + ` FROM report_jobs WHERE status = $1 ORDER BY created_at ASC LIMIT $2`
	jobs := make([]models.ReportJob, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusQueued, limit); err != nil {
		return nil, fmt.Errorf("list queued report jobs: %w", err)
	}
	return jobs, nil
}

// ListExpired returns finished jobs that still reference a file and finished before cutoff.
func (r *ReportRepository) ListExpired(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	const query = `SELECT ` + reportJobColumns + ` FROM report_jobs
WHERE status = $1 AND result_url IS NOT NULL AND finished_at < $2 ORDER BY finished_at ASC LIMIT $3`
	jobs := make([]models.ReportJob, 0)
	if err := r.db.SelectContext(ctx, &jobs, query, models.ReportStatusFinished, cutoff, limit); err != nil {
		return nil, fmt.Errorf("list expired report jobs: %w", err)
	}
	return jobs, nil
}

func (r *ReportRepository) exec(ctx context.Context, op, query string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%s: %w", op, sql.ErrNoRows)
	}
	return nil
}
