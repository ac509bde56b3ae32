package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/goal-tracker-api/internal/dto"
	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs    map[string]*models.ReportJob
	cleared []string
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(_ context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = models.ReportStatusQueued
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *job
	return &copied, nil
}

func (r *reportRepoStub) MarkProcessing(_ context.Context, id string, progress int) error {
	job := r.jobs[id]
	job.Status, job.Progress = models.ReportStatusProcessing, progress
	return nil
}

func (r *reportRepoStub) MarkFinished(_ context.Context, id, resultURL string, finishedAt time.Time) error {
	job := r.jobs[id]
	job.Status, job.Progress, job.ResultURL, job.FinishedAt, job.ErrorMessage = models.ReportStatusFinished, 100, &resultURL, &finishedAt, nil
	return nil
}

func (r *reportRepoStub) MarkFailed(_ context.Context, id, message string, finishedAt time.Time) error {
	job := r.jobs[id]
	job.Status, job.Progress, job.ErrorMessage, job.FinishedAt = models.ReportStatusFailed, 100, &message, &finishedAt
	return nil
}

func (r *reportRepoStub) Requeue(_ context.Context, id, message string) error {
	job := r.jobs[id]
	job.Status, job.Progress, job.ErrorMessage = models.ReportStatusQueued, 0, &message
	return nil
}

func (r *reportRepoStub) ClearResult(_ context.Context, id string) error {
	r.jobs[id].ResultURL = nil
	r.cleared = append(r.cleared, id)
	return nil
}

func (r *reportRepoStub) ListQueued(_ context.Context, _ int) ([]models.ReportJob, error) {
	queued := make([]models.ReportJob, 0)
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListExpired(_ context.Context, cutoff time.Time, _ int) ([]models.ReportJob, error) {
	expired := make([]models.ReportJob, 0)
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusFinished && job.ResultURL != nil && job.FinishedAt.Before(cutoff) {
			expired = append(expired, *job)
		}
	}
	return expired, nil
}

type dispatcherStub struct {
	enqueued []jobs.Job
	err      error
}

func (d *dispatcherStub) Enqueue(job jobs.Job) error {
	if d.err != nil {
		return d.err
	}
	d.enqueued = append(d.enqueued, job)
	return nil
}

type generatorStub struct {
	result *ExportResult
	err    error
	calls  int
}

func (g *generatorStub) Generate(context.Context, *models.ReportJob) (*ExportResult, error) {
	g.calls++
	return g.result, g.err
}

type exportObserverStub struct {
	statuses []string
}

func (o *exportObserverStub) ObserveExport(_, status string, _ time.Duration) {
	o.statuses = append(o.statuses, status)
}

func newReportServiceForTest(t *testing.T, repo *reportRepoStub, queue *dispatcherStub) (*ReportService, *ExportService) {
	t.Helper()
	exporter := newExportServiceForTest(t, &mockAnalyticsRepo{activity: throughputRecords(t)})
	svc := NewReportService(repo, queue, exporter, nil, zap.NewNop(), ReportServiceConfig{ResultTTL: time.Hour})
	svc.now = func() time.Time { return time.Date(2025, 10, 1, 8, 0, 0, 0, time.UTC) }
	return svc, exporter
}

func TestReportServiceCreateJob(t *testing.T) {
	repo, queue := newReportRepoStub(), &dispatcherStub{}
	svc, _ := newReportServiceForTest(t, repo, queue)

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Report:         models.ReportTypeThroughput,
		Format:         models.ReportFormatCSV,
		AnalyticsQuery: models.AnalyticsQuery{StartDate: "2025-08-01", GroupBy: "month"},
	}, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, resp.ID, queue.enqueued[0].ID)

	stored := repo.jobs[resp.ID]
	assert.Equal(t, "admin-1", stored.CreatedBy)
	assert.Equal(t, "month", stored.Params.Query.GroupBy)
}

func TestReportServiceCreateJobRejectsBadInput(t *testing.T) {
	repo := newReportRepoStub()
	svc, _ := newReportServiceForTest(t, repo, &dispatcherStub{})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Report: "grades", Format: models.ReportFormatCSV}, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{Report: models.ReportTypeOverview, Format: "xlsx"}, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))

	inverted := models.AnalyticsQuery{StartDate: "2025-09-30", EndDate: "2025-09-01"}
	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{Report: models.ReportTypeOverview, Format: models.ReportFormatCSV, AnalyticsQuery: inverted}, "admin-1")
	assert.True(t, appErrors.Is(err, appErrors.ErrInvalidDateRange))
	assert.Empty(t, repo.jobs)

	_, err = svc.CreateJob(context.Background(), dto.ExportRequest{Report: models.ReportTypeBacklog, Format: models.ReportFormatCSV, AnalyticsQuery: inverted}, "admin-1")
	assert.NoError(t, err)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	repo := newReportRepoStub()
	svc, _ := newReportServiceForTest(t, repo, &dispatcherStub{err: jobs.ErrNotRunning})

	_, err := svc.CreateJob(context.Background(), dto.ExportRequest{Report: models.ReportTypeOverview, Format: models.ReportFormatCSV}, "admin-1")
	require.Error(t, err)
	for _, job := range repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
	}
}

func TestReportServiceGetStatusOwnership(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeOverview, CreatedBy: "admin-1", Status: models.ReportStatusProcessing, Progress: 10}
	svc, _ := newReportServiceForTest(t, repo, &dispatcherStub{})

	status, err := svc.GetStatus(context.Background(), "job-1", "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, 10, status.Progress)

	_, err = svc.GetStatus(context.Background(), "job-1", "admin-2", models.RoleAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	_, err = svc.GetStatus(context.Background(), "job-1", "root", models.RoleSuperAdmin)
	assert.NoError(t, err)

	_, err = svc.GetStatus(context.Background(), "missing", "admin-1", models.RoleAdmin)
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))
}

func TestReportWorkerEndToEndDownload(t *testing.T) {
	repo := newReportRepoStub()
	svc, exporter := newReportServiceForTest(t, repo, &dispatcherStub{})
	observer := &exportObserverStub{}
	worker := NewReportWorker(repo, exporter, observer, 2, zap.NewNop())

	resp, err := svc.CreateJob(context.Background(), dto.ExportRequest{
		Report:         models.ReportTypeThroughput,
		Format:         models.ReportFormatCSV,
		AnalyticsQuery: models.AnalyticsQuery{StartDate: "2025-08-01", EndDate: "2025-09-30", GroupBy: "month"},
	}, "admin-1")
	require.NoError(t, err)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: resp.ID}))
	assert.Equal(t, []string{"FINISHED"}, observer.statuses)

	status, err := svc.GetStatus(context.Background(), resp.ID, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	require.NotNil(t, status.ResultURL)

	token := (*status.ResultURL)[len("/api/v1/export/"):]
	download, err := svc.ResolveDownload(context.Background(), token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	body, err := io.ReadAll(download.File)
	require.NoError(t, err)
	assert.Contains(t, string(body), "2025-08,2025-08-01,2025-08-31,2,1,0.5000")

	_, err = svc.ResolveDownload(context.Background(), token+"x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestReportWorkerRetryAndFailure(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeOverview, Status: models.ReportStatusQueued}
	gen := &generatorStub{err: errors.New("database is down")}
	worker := NewReportWorker(repo, gen, nil, 1, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 0})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)
	require.NotNil(t, repo.jobs["job-1"].ErrorMessage)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1}))
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	assert.Equal(t, 2, gen.calls)

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2}))
	assert.Equal(t, 2, gen.calls)
}

func TestReportWorkerClientErrorsAreNotRetried(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = &models.ReportJob{ID: "job-1", Type: models.ReportTypeOverview, Status: models.ReportStatusQueued}
	worker := NewReportWorker(repo, &generatorStub{err: appErrors.ErrInvalidDateRange}, nil, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	repo := newReportRepoStub()
	svc, exporter := newReportServiceForTest(t, repo, &dispatcherStub{})

	job := &models.ReportJob{ID: "job-old", Type: models.ReportTypeOverview, Params: models.ReportJobParams{Format: models.ReportFormatCSV}}
	result, err := exporter.Generate(context.Background(), job)
	require.NoError(t, err)
	finished := time.Date(2025, 9, 30, 0, 0, 0, 0, time.UTC)
	job.Status, job.ResultURL, job.FinishedAt = models.ReportStatusFinished, &result.URL, &finished
	repo.jobs[job.ID] = job

	svc.CleanupExpired(context.Background())

	assert.Equal(t, []string{"job-old"}, repo.cleared)
	_, err = exporter.Open(result.RelativePath)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["a"] = &models.ReportJob{ID: "a", Status: models.ReportStatusQueued}
	repo.jobs["b"] = &models.ReportJob{ID: "b", Status: models.ReportStatusFinished}
	queue := &dispatcherStub{}
	svc, _ := newReportServiceForTest(t, repo, queue)

	assert.Equal(t, 1, svc.RecoverPendingJobs(context.Background()))
	require.Len(t, queue.enqueued, 1)
	assert.Equal(t, "a", queue.enqueued[0].ID)
}

var _ exportFiles = (*ExportService)(nil)
