package models

import "time"

// GoalRecord is the analytics view of a student goal. CompletedAt is set exactly when IsCompleted is true.
type GoalRecord struct {
	ID          string     `json:"id"`
	StudentID   string     `json:"student_id"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	TargetDate  *time.Time `json:"target_date,omitempty"`
	IsCompleted bool       `json:"is_completed"`
}

// AttendanceRecord captures a single student's presence on a calendar day.
type AttendanceRecord struct {
	ID        string    `db:"id" json:"id"`
	StudentID string    `db:"student_id" json:"student_id"`
	Date      time.Time `db:"date" json:"date"`
	Present   bool      `db:"present" json:"present"`
}

// DateRange is an inclusive span of calendar dates.
type DateRange struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
