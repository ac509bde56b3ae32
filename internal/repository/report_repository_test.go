package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/goal-tracker-api/internal/models"
)

var reportJobColumnNames = []string{"id", "type", "params", "status", "progress", "result_url", "created_by", "created_at", "finished_at", "error_message"}

func TestReportRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO report_jobs")).
		WithArgs(sqlmock.AnyArg(), "throughput", sqlmock.AnyArg(), "QUEUED", 0, nil, "user-1", sqlmock.AnyArg(), nil, nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	job := &models.ReportJob{
		Type:      models.ReportTypeThroughput,
		Params:    models.ReportJobParams{Query: models.AnalyticsQuery{GroupBy: "month"}, Format: models.ReportFormatCSV},
		CreatedBy: "user-1",
		Status:    models.ReportStatusFinished,
	}
	require.NoError(t, repo.Create(context.Background(), job))
	assert.NotEmpty(t, job.ID)
	assert.Equal(t, models.ReportStatusQueued, job.Status)

	rows := sqlmock.NewRows(reportJobColumnNames).
		AddRow(job.ID, "throughput", `{"query":{"group_by":"month"},"format":"csv"}`, "QUEUED", 0, nil, "user-1", time.Now(), nil, nil)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT " + reportJobColumns + " FROM report_jobs WHERE id = $1")).
		WithArgs(job.ID).
		WillReturnRows(rows)

	fetched, err := repo.GetByID(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, "month", fetched.Params.Query.GroupBy)
	assert.Equal(t, models.ReportFormatCSV, fetched.Params.Format)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryGetByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)

	mock.ExpectQuery("FROM report_jobs WHERE id").WithArgs("missing").WillReturnRows(sqlmock.NewRows(reportJobColumnNames))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
}

func TestReportRepositoryLifecycle(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	now := time.Date(2025, 9, 30, 12, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE report_jobs SET status = $2, progress = $3 WHERE id = $1")).
		WithArgs("job-1", models.ReportStatusProcessing, 10).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("result_url = $3, error_message = NULL, finished_at = $4")).
		WithArgs("job-1", models.ReportStatusFinished, "/api/v1/export/tok", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("error_message = $3, finished_at = $4")).
		WithArgs("job-2", models.ReportStatusFailed, "boom", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("SET status = $2, progress = 0, error_message = $3")).
		WithArgs("job-3", models.ReportStatusQueued, "retry").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkProcessing(context.Background(), "job-1", 10))
	require.NoError(t, repo.MarkFinished(context.Background(), "job-1", "/api/v1/export/tok", now))
	require.NoError(t, repo.MarkFailed(context.Background(), "job-2", "boom", now))
	assert.ErrorIs(t, repo.Requeue(context.Background(), "job-3", "retry"), sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportRepositoryListExpired(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewReportRepository(db)
	cutoff := time.Date(2025, 9, 29, 0, 0, 0, 0, time.UTC)

	url := "/api/v1/export/tok"
	rows := sqlmock.NewRows(reportJobColumnNames).
		AddRow("job-1", "backlog", `{"query":{},"format":"pdf"}`, "FINISHED", 100, url, "user-1", cutoff.Add(-time.Hour), cutoff.Add(-time.Minute), nil)
	mock.ExpectQuery(regexp.QuoteMeta("WHERE status = $1 AND result_url IS NOT NULL AND finished_at < $2")).
		WithArgs(models.ReportStatusFinished, cutoff, 50).
		WillReturnRows(rows)

	jobs, err := repo.ListExpired(context.Background(), cutoff, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.ReportFormatPDF, jobs[0].Params.Format)
	require.NotNil(t, jobs[0].ResultURL)
	assert.Equal(t, url, *jobs[0].ResultURL)
	assert.NoError(t, mock.ExpectationsWereMet())
}
