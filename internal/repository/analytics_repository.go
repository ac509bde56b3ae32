package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/goal-tracker-api/internal/models"
)

// AnalyticsRepository exposes the raw goal and attendance rows consumed by analytics reports.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type goalRow struct {
	ID          string       `db:"id"`
	StudentID   string       `db:"student_id"`
	CreatedAt   time.Time    `db:"created_at"`
	CompletedAt sql.NullTime `db:"completed_at"`
	TargetDate  sql.NullTime `db:"target_date"`
	IsCompleted bool         `db:"is_completed"`
}

const goalColumns = "g.id, g.student_id, g.created_at, g.completed_at, g.target_date, g.is_completed"

// GoalActivity returns goals created or completed within [start, end] (calendar days, inclusive).
func (r *AnalyticsRepository) GoalActivity(ctx context.Context, start, end time.Time) ([]models.GoalRecord, error) {
	query := `SELECT ` + goalColumns + `
        FROM goals g
        WHERE (g.created_at >= $1 AND g.created_at < $2)
           OR (g.completed_at >= $1 AND g.completed_at < $2)
        ORDER BY g.created_at ASC, g.id ASC`

	var rows []goalRow
	if err := r.db.SelectContext(ctx, &rows, query, start, end.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("query goal activity: %w", err)
	}
	return toGoalRecords(rows), nil
}

// OpenGoals returns goals not yet completed that were created on or before asOf.
func (r *AnalyticsRepository) OpenGoals(ctx context.Context, asOf time.Time) ([]models.GoalRecord, error) {
	query := `SELECT ` + goalColumns + `
        FROM goals g
        WHERE g.is_completed = FALSE AND g.created_at < $1
        ORDER BY g.created_at ASC, g.id ASC`

	var rows []goalRow
	if err := r.db.SelectContext(ctx, &rows, query, asOf.AddDate(0, 0, 1)); err != nil {
		return nil, fmt.Errorf("query open goals: %w", err)
	}
	return toGoalRecords(rows), nil
}

// StudentNames resolves display names for the given student identifiers.
func (r *AnalyticsRepository) StudentNames(ctx context.Context, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query, args, err := sqlx.In("SELECT id, full_name FROM students WHERE id IN (?)", ids)
	if err != nil {
		return nil, fmt.Errorf("build student names query: %w", err)
	}
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, r.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("query student names: %w", err)
	}
	for _, student := range students {
		names[student.ID] = student.FullName
	}
	return names, nil
}

// AttendanceBetween returns attendance marks dated within [start, end].
func (r *AnalyticsRepository) AttendanceBetween(ctx context.Context, start, end time.Time) ([]models.AttendanceRecord, error) {
	const query = `SELECT a.id, a.student_id, a.date, a.present
        FROM attendance a
        WHERE a.date >= $1 AND a.date <= $2
        ORDER BY a.date ASC`

	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, start, end); err != nil {
		return nil, fmt.Errorf("query attendance: %w", err)
	}
	return records, nil
}

// toGoalRecords enforces the completed flag/timestamp pairing so aggregation never sees a
// completed goal without a completion time.
func toGoalRecords(rows []goalRow) []models.GoalRecord {
	records := make([]models.GoalRecord, 0, len(rows))
	for _, row := range rows {
		record := models.GoalRecord{
			ID:          row.ID,
			StudentID:   row.StudentID,
			CreatedAt:   row.CreatedAt.UTC(),
			IsCompleted: row.IsCompleted && row.CompletedAt.Valid,
		}
		if record.IsCompleted {
			completed := row.CompletedAt.Time.UTC()
			record.CompletedAt = &completed
		}
		if row.TargetDate.Valid {
			target := row.TargetDate.Time.UTC()
			record.TargetDate = &target
		}
		records = append(records, record)
	}
	return records
}
