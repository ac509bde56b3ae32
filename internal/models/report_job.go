package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ReportType names the analytics report an export job renders.
type ReportType string

const (
	ReportTypeOverview       ReportType = "overview"
	ReportTypeCompletions    ReportType = "completions"
	ReportTypeByStudent      ReportType = "by_student"
	ReportTypeThroughput     ReportType = "throughput"
	ReportTypeBacklog        ReportType = "backlog"
	ReportTypeOverdue        ReportType = "overdue"
	ReportTypeTimeToComplete ReportType = "time_to_complete"
	ReportTypeAttendance     ReportType = "attendance"
)

// HasDateRange reports whether the report reads start_date/end_date. Backlog is a
// point-in-time snapshot keyed by as_of only.
func (t ReportType) HasDateRange() bool {
	return t != ReportTypeBacklog
}

type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// Extension is the file suffix used for stored exports.
func (f ReportFormat) Extension() string {
	return "." + string(f)
}

// ReportStatus is the lifecycle state of an export job: QUEUED -> PROCESSING -> FINISHED|FAILED.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusFinished   ReportStatus = "FINISHED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// Terminal reports whether no further work will happen for the job.
func (s ReportStatus) Terminal() bool {
	return s == ReportStatusFinished || s == ReportStatusFailed
}

// ReportJob is one row of report_jobs.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
}

// ReportJobParams is persisted as JSONB: {"query": {...}, "format": "csv"}.
type ReportJobParams struct {
	Query  AnalyticsQuery `json:"query"`
	Format ReportFormat   `json:"format"`
}

// Value implements driver.Valuer.
func (p ReportJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal report job params: %w", err)
	}
	return data, nil
}

// Scan implements sql.Scanner; NULL and empty payloads decode to zero params.
func (p *ReportJobParams) Scan(value interface{}) error {
	var data []byte
	switch v := value.(type) {
	case nil:
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("scan report job params: unsupported type %T", value)
	}
	if len(data) == 0 {
		*p = ReportJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal report job params: %w", err)
	}
	return nil
}
