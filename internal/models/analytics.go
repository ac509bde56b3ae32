package models

import "time"

// AnalyticsQuery carries raw report parameters as received from clients. Values are
// normalised by the analytics service; malformed input falls back to defaults.
type AnalyticsQuery struct {
	StartDate string `form:"start_date" json:"start_date,omitempty"`
	EndDate   string `form:"end_date" json:"end_date,omitempty"`
	GroupBy   string `form:"group_by" json:"group_by,omitempty"`
	AsOf      string `form:"as_of" json:"as_of,omitempty"`
	Limit     string `form:"limit" json:"limit,omitempty"`
	Offset    string `form:"offset" json:"offset,omitempty"`
	TopN      string `form:"top_n" json:"top_n,omitempty"`
}

// GoalOverview summarises goals created within a date range.
type GoalOverview struct {
	TotalGoals        int     `json:"total_goals"`
	CompletedGoals    int     `json:"completed_goals"`
	PctComplete       float64 `json:"pct_complete"`
	AvgDaysToComplete float64 `json:"avg_days_to_complete"`
}

// CompletionPoint counts goals completed within one bucket.
type CompletionPoint struct {
	Label       string `json:"label"`
	Completions int    `json:"completions"`
}

// StudentCompletion ranks a student by goals completed within a range.
type StudentCompletion struct {
	StudentID   string  `json:"student_id"`
	StudentName string  `json:"student_name"`
	Completions int     `json:"completions"`
	AvgDays     float64 `json:"avg_days"`
}

// ThroughputPoint compares goals created and completed within one bucket.
type ThroughputPoint struct {
	Label          string  `json:"label"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Created        int     `json:"created"`
	Completed      int     `json:"completed"`
	CompletionRate float64 `json:"completion_rate"`
}

// AgeBucketCount counts open goals whose age falls into a fixed bucket.
type AgeBucketCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// StudentBacklog lists a student's open goal count.
type StudentBacklog struct {
	StudentID   string `json:"student_id"`
	StudentName string `json:"student_name"`
	OpenGoals   int    `json:"open_goals"`
}

// BacklogReport is a point-in-time snapshot of open goals.
type BacklogReport struct {
	AsOf        string           `json:"as_of"`
	TotalOpen   int              `json:"total_open"`
	Overdue     int              `json:"overdue"`
	AvgDaysOpen float64          `json:"avg_days_open"`
	OpenByAge   []AgeBucketCount `json:"open_by_age"`
	TopStudents []StudentBacklog `json:"top_students"`
}

// OverdueReport contrasts open overdue goals with on-time completion over a range.
type OverdueReport struct {
	AsOf            string  `json:"as_of"`
	OpenOverdue     int     `json:"open_overdue"`
	CompletedCount  int     `json:"completed_count"`
	CompletedOnTime int     `json:"completed_on_time"`
	OnTimeRate      float64 `json:"on_time_rate"`
}

// HistogramBucket counts values within a labelled range.
type HistogramBucket struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// TimeToCompleteStats describes the distribution of days from creation to completion.
type TimeToCompleteStats struct {
	Count      int               `json:"count"`
	MeanDays   float64           `json:"mean_days"`
	MedianDays float64           `json:"median_days"`
	P90Days    float64           `json:"p90_days"`
	Histogram  []HistogramBucket `json:"histogram"`
}

// AttendancePoint aggregates attendance marks within one bucket.
type AttendancePoint struct {
	Label          string  `json:"label"`
	Start          string  `json:"start"`
	End            string  `json:"end"`
	Present        int     `json:"present"`
	Absent         int     `json:"absent"`
	AttendanceRate float64 `json:"attendance_rate"`
}

// AnalyticsSystemMetrics represents system level analytics captured from instrumentation.
type AnalyticsSystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	ReportsComputed          uint64    `json:"reports_computed"`
	ExportsProcessed         uint64    `json:"exports_processed"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
