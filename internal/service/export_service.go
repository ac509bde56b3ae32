package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/goal-tracker-api/internal/models"
	"github.com/noah-isme/goal-tracker-api/pkg/export"
	"github.com/noah-isme/goal-tracker-api/pkg/storage"
)

// reportSource is the analytics facade as seen by exports.
type reportSource interface {
	Overview(ctx context.Context, query models.AnalyticsQuery) (*models.GoalOverview, bool, error)
	Completions(ctx context.Context, query models.AnalyticsQuery) ([]models.CompletionPoint, bool, error)
	ByStudent(ctx context.Context, query models.AnalyticsQuery) ([]models.StudentCompletion, bool, error)
	Throughput(ctx context.Context, query models.AnalyticsQuery) ([]models.ThroughputPoint, bool, error)
	Backlog(ctx context.Context, query models.AnalyticsQuery) (*models.BacklogReport, bool, error)
	Overdue(ctx context.Context, query models.AnalyticsQuery) (*models.OverdueReport, bool, error)
	TimeToComplete(ctx context.Context, query models.AnalyticsQuery) (*models.TimeToCompleteStats, bool, error)
	Attendance(ctx context.Context, query models.AnalyticsQuery) ([]models.AttendancePoint, bool, error)
}

type fileStorage interface {
	Save(name string, data []byte) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type datasetRenderer interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult describes a rendered and stored export.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ReportFormat
	ExpiresAt    time.Time
}

// ExportService renders analytics reports to files and signs download links for them.
type ExportService struct {
	source    reportSource
	storage   fileStorage
	renderers map[models.ReportFormat]datasetRenderer
	signer    *storage.SignedURLSigner
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService wires the CSV and PDF renderers.
func NewExportService(source reportSource, store fileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = signer.TTL()
	}
	return &ExportService{
		source:  source,
		storage: store,
		renderers: map[models.ReportFormat]datasetRenderer{
			models.ReportFormatCSV: export.NewCSVExporter(),
			models.ReportFormatPDF: export.NewPDFExporter(),
		},
		signer: signer,
		logger: logger,
		cfg:    cfg,
		now:    time.Now,
	}
}

// Generate renders job, stores the file and signs its download URL.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("report job is nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported export format %q", job.Params.Format)
	}

	dataset, err := s.BuildDataset(ctx, job.Type, job.Params.Query)
	if err != nil {
		return nil, err
	}
	payload, err := renderer.Render(dataset)
	if err != nil {
		return nil, err
	}

	relPath, err := s.storage.Save(s.filename(job), payload)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		_ = s.storage.Delete(relPath)
		return nil, err
	}
	s.logger.Debug("export rendered", zap.String("job_id", job.ID), zap.String("path", relPath), zap.Int("bytes", len(payload)))

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          s.downloadURL(token),
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken verifies a download token.
func (s *ExportService) ParseToken(token string, allowExpired bool) (storage.DownloadToken, error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to a stored export.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes exports older than the configured result TTL.
func (s *ExportService) Cleanup() ([]string, error) {
	return s.storage.CleanupOlderThan(s.cfg.ResultTTL)
}

// ContentType returns the MIME type for format, defaulting to octet-stream.
func (s *ExportService) ContentType(format models.ReportFormat) string {
	if renderer, ok := s.renderers[format]; ok {
		return renderer.ContentType()
	}
	return "application/octet-stream"
}

// BuildDataset computes report through the analytics facade and flattens it into a table.
func (s *ExportService) BuildDataset(ctx context.Context, report models.ReportType, query models.AnalyticsQuery) (export.Dataset, error) {
	switch report {
	case models.ReportTypeOverview:
		overview, _, err := s.source.Overview(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := metricDataset("Goal Overview", query)
		data.AddRow("Total Goals", strconv.Itoa(overview.TotalGoals))
		data.AddRow("Completed Goals", strconv.Itoa(overview.CompletedGoals))
		data.AddRow("Completion (%)", formatFloat(overview.PctComplete, 2))
		data.AddRow("Avg Days to Complete", formatFloat(overview.AvgDaysToComplete, 2))
		return data, nil

	case models.ReportTypeCompletions:
		points, _, err := s.source.Completions(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Goal Completions", Subtitle: rangeSubtitle(query), Headers: []string{"Period", "Completions"}}
		for _, p := range points {
			data.AddRow(p.Label, strconv.Itoa(p.Completions))
		}
		return data, nil

	case models.ReportTypeByStudent:
		rows, _, err := s.source.ByStudent(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Completions by Student", Subtitle: rangeSubtitle(query), Headers: []string{"Student ID", "Student", "Completions", "Avg Days"}}
		for _, r := range rows {
			data.AddRow(r.StudentID, r.StudentName, strconv.Itoa(r.Completions), formatFloat(r.AvgDays, 2))
		}
		return data, nil

	case models.ReportTypeThroughput:
		points, _, err := s.source.Throughput(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Goal Throughput", Subtitle: rangeSubtitle(query), Headers: []string{"Period", "Start", "End", "Created", "Completed", "Completion Rate"}}
		for _, p := range points {
			data.AddRow(p.Label, p.Start, p.End, strconv.Itoa(p.Created), strconv.Itoa(p.Completed), formatFloat(p.CompletionRate, 4))
		}
		return data, nil

	case models.ReportTypeBacklog:
		backlog, _, err := s.source.Backlog(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Open Goal Backlog", Subtitle: "As of " + backlog.AsOf, Headers: []string{"Section", "Item", "Value"}}
		data.AddRow("Summary", "Total Open", strconv.Itoa(backlog.TotalOpen))
		data.AddRow("Summary", "Overdue", strconv.Itoa(backlog.Overdue))
		data.AddRow("Summary", "Avg Days Open", formatFloat(backlog.AvgDaysOpen, 2))
		for _, b := range backlog.OpenByAge {
			data.AddRow("Age (days)", b.Bucket, strconv.Itoa(b.Count))
		}
		for _, st := range backlog.TopStudents {
			data.AddRow("Top Students", studentLabel(st.StudentID, st.StudentName), strconv.Itoa(st.OpenGoals))
		}
		return data, nil

	case models.ReportTypeOverdue:
		overdue, _, err := s.source.Overdue(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := metricDataset("Overdue Goals", query)
		data.AddRow("As Of", overdue.AsOf)
		data.AddRow("Open Overdue", strconv.Itoa(overdue.OpenOverdue))
		data.AddRow("Completed With Target", strconv.Itoa(overdue.CompletedCount))
		data.AddRow("Completed On Time", strconv.Itoa(overdue.CompletedOnTime))
		data.AddRow("On-Time Rate", formatFloat(overdue.OnTimeRate, 4))
		return data, nil

	case models.ReportTypeTimeToComplete:
		stats, _, err := s.source.TimeToComplete(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := metricDataset("Time to Complete", query)
		data.AddRow("Completed Goals", strconv.Itoa(stats.Count))
		data.AddRow("Mean Days", formatFloat(stats.MeanDays, 2))
		data.AddRow("Median Days", formatFloat(stats.MedianDays, 2))
		data.AddRow("P90 Days", formatFloat(stats.P90Days, 2))
		for _, b := range stats.Histogram {
			data.AddRow("Days "+b.Bucket, strconv.Itoa(b.Count))
		}
		return data, nil

	case models.ReportTypeAttendance:
		points, _, err := s.source.Attendance(ctx, query)
		if err != nil {
			return export.Dataset{}, err
		}
		data := export.Dataset{Title: "Attendance", Subtitle: rangeSubtitle(query), Headers: []string{"Period", "Start", "End", "Present", "Absent", "Attendance Rate"}}
		for _, p := range points {
			data.AddRow(p.Label, p.Start, p.End, strconv.Itoa(p.Present), strconv.Itoa(p.Absent), formatFloat(p.AttendanceRate, 4))
		}
		return data, nil
	}
	return export.Dataset{}, fmt.Errorf("unsupported report type %q", report)
}

func (s *ExportService) filename(job *models.ReportJob) string {
	stamp := s.now().UTC().Format("20060102_150405")
	return fmt.Sprintf("%s/%s_%s_%s%s", stamp[:6], job.Type, stamp, shortID(job.ID), job.Params.Format.Extension())
}

func (s *ExportService) downloadURL(token string) string {
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return prefix + "/export/" + token
}

func metricDataset(title string, query models.AnalyticsQuery) export.Dataset {
	return export.Dataset{Title: title, Subtitle: rangeSubtitle(query), Headers: []string{"Metric", "Value"}}
}

func rangeSubtitle(query models.AnalyticsQuery) string {
	start, end := query.StartDate, query.EndDate
	if start == "" {
		start = "default start"
	}
	if end == "" {
		end = "today"
	}
	return start + " to " + end
}

func studentLabel(id, name string) string {
	if name == "" {
		return id
	}
	return name + " (" + id + ")"
}

func formatFloat(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

func shortID(id string) string {
	id = strings.ReplaceAll(id, "-", "")
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
