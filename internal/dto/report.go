package dto

import (
	"time"

	"github.com/noah-isme/goal-tracker-api/internal/models"
)

// ExportRequest captures POST /analytics/exports. Report parameters are passed through
// unvalidated and normalised the same way the synchronous endpoints do.
type ExportRequest struct {
	Report models.ReportType   `json:"report" validate:"required,oneof=overview completions by_student throughput backlog overdue time_to_complete attendance"`
	Format models.ReportFormat `json:"format" validate:"required,oneof=csv pdf"`
	models.AnalyticsQuery
}

// ExportJobResponse is returned after enqueueing an export.
type ExportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ExportStatusResponse exposes job progress metadata.
type ExportStatusResponse struct {
	ID         string              `json:"id"`
	Report     models.ReportType   `json:"report"`
	Format     models.ReportFormat `json:"format"`
	Status     models.ReportStatus `json:"status"`
	Progress   int                 `json:"progress"`
	ResultURL  *string             `json:"result_url,omitempty"`
	Error      *string             `json:"error,omitempty"`
	CreatedAt  time.Time           `json:"created_at"`
	FinishedAt *time.Time          `json:"finished_at,omitempty"`
}
