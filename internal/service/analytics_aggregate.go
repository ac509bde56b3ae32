package service

import (
	"sort"
	"time"

	"github.com/noah-isme/goal-tracker-api/internal/models"
	"github.com/noah-isme/goal-tracker-api/pkg/stats"
	"github.com/noah-isme/goal-tracker-api/pkg/timeseries"
)

// backlogAgeBins partitions open goals by age in days.
var backlogAgeBins = []stats.Bin{
	{Label: "0-7", Min: 0, Max: 7},
	{Label: "8-30", Min: 8, Max: 30},
	{Label: "31-90", Min: 31, Max: 90},
	{Label: "90+", Min: 91, Max: -1},
}

// completionBins partitions days from creation to completion.
var completionBins = []stats.Bin{
	{Label: "0-1", Min: 0, Max: 1},
	{Label: "2-7", Min: 2, Max: 7},
	{Label: "8-30", Min: 8, Max: 30},
	{Label: "31-90", Min: 31, Max: 90},
	{Label: "90+", Min: 91, Max: -1},
}

// aggregateThroughput counts created and completed goals per bucket. Every bucket is emitted.
func aggregateThroughput(records []models.GoalRecord, buckets []timeseries.Bucket) []models.ThroughputPoint {
	points := make([]models.ThroughputPoint, len(buckets))
	for i, bucket := range buckets {
		points[i] = models.ThroughputPoint{
			Label: bucket.Label,
			Start: bucket.Start.Format(timeseries.DateLayout),
			End:   bucket.End.Format(timeseries.DateLayout),
		}
	}
	for _, record := range records {
		if idx := timeseries.Locate(buckets, record.CreatedAt); idx >= 0 {
			points[idx].Created++
		}
		if completedAt, ok := completionTime(record); ok {
			if idx := timeseries.Locate(buckets, completedAt); idx >= 0 {
				points[idx].Completed++
			}
		}
	}
	for i := range points {
		points[i].CompletionRate = stats.Ratio(points[i].Completed, points[i].Created)
	}
	return points
}

// aggregateCompletions counts completions per bucket. Every bucket is emitted.
func aggregateCompletions(records []models.GoalRecord, buckets []timeseries.Bucket) []models.CompletionPoint {
	points := make([]models.CompletionPoint, len(buckets))
	for i, bucket := range buckets {
		points[i].Label = bucket.Label
	}
	for _, record := range records {
		completedAt, ok := completionTime(record)
		if !ok {
			continue
		}
		if idx := timeseries.Locate(buckets, completedAt); idx >= 0 {
			points[idx].Completions++
		}
	}
	return points
}

// aggregateAttendance counts present and absent marks per bucket. Every bucket is emitted.
func aggregateAttendance(records []models.AttendanceRecord, buckets []timeseries.Bucket) []models.AttendancePoint {
	points := make([]models.AttendancePoint, len(buckets))
	for i, bucket := range buckets {
		points[i] = models.AttendancePoint{
			Label: bucket.Label,
			Start: bucket.Start.Format(timeseries.DateLayout),
			End:   bucket.End.Format(timeseries.DateLayout),
		}
	}
	for _, record := range records {
		idx := timeseries.Locate(buckets, record.Date)
		if idx < 0 {
			continue
		}
		if record.Present {
			points[idx].Present++
		} else {
			points[idx].Absent++
		}
	}
	for i := range points {
		points[i].AttendanceRate = stats.Ratio(points[i].Present, points[i].Present+points[i].Absent)
	}
	return points
}

// summarizeOverview describes goals created within the range.
func summarizeOverview(records []models.GoalRecord, window models.DateRange) models.GoalOverview {
	var overview models.GoalOverview
	var durations []int
	for _, record := range records {
		if !timeseries.Within(record.CreatedAt, window.Start, window.End) {
			continue
		}
		overview.TotalGoals++
		if completedAt, ok := completionTime(record); ok {
			overview.CompletedGoals++
			durations = append(durations, daysToComplete(record.CreatedAt, completedAt))
		}
	}
	if overview.TotalGoals > 0 {
		overview.PctComplete = stats.Round(float64(overview.CompletedGoals)/float64(overview.TotalGoals)*100, 2)
	}
	overview.AvgDaysToComplete = stats.Summarize(durations).Mean
	return overview
}

// summarizeTimeToComplete describes how long goals completed within the range took.
func summarizeTimeToComplete(records []models.GoalRecord, window models.DateRange) models.TimeToCompleteStats {
	durations := completionDurations(records, window)
	summary := stats.Summarize(durations)
	bins := stats.Histogram(durations, completionBins)

	histogram := make([]models.HistogramBucket, len(bins))
	for i, bin := range bins {
		histogram[i] = models.HistogramBucket{Bucket: bin.Bucket, Count: bin.Count}
	}
	return models.TimeToCompleteStats{
		Count:      summary.Count,
		MeanDays:   summary.Mean,
		MedianDays: summary.Median,
		P90Days:    summary.P90,
		Histogram:  histogram,
	}
}

// rankStudentsByCompletion groups goals completed within the range per student, ordered by
// completions descending then student id. Names are left for the caller to join.
func rankStudentsByCompletion(records []models.GoalRecord, window models.DateRange) []models.StudentCompletion {
	durations := make(map[string][]int)
	for _, record := range records {
		completedAt, ok := completionTime(record)
		if !ok || !timeseries.Within(completedAt, window.Start, window.End) {
			continue
		}
		durations[record.StudentID] = append(durations[record.StudentID], daysToComplete(record.CreatedAt, completedAt))
	}

	ranked := make([]models.StudentCompletion, 0, len(durations))
	for studentID, days := range durations {
		ranked = append(ranked, models.StudentCompletion{
			StudentID:   studentID,
			Completions: len(days),
			AvgDays:     stats.Summarize(days).Mean,
		})
	}
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Completions != ranked[j].Completions {
			return ranked[i].Completions > ranked[j].Completions
		}
		return ranked[i].StudentID < ranked[j].StudentID
	})
	return ranked
}

// paginate returns the [offset, offset+limit) window of items.
func paginate[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

// summarizeBacklog snapshots goals open at asOf. TopStudents carry ids only.
func summarizeBacklog(records []models.GoalRecord, asOf time.Time, topN int) models.BacklogReport {
	asOf = timeseries.DateOf(asOf)
	report := models.BacklogReport{AsOf: asOf.Format(timeseries.DateLayout)}

	var ages []int
	perStudent := make(map[string]int)
	for _, record := range records {
		if !isOpenAt(record, asOf) {
			continue
		}
		report.TotalOpen++
		if isOverdueAt(record, asOf) {
			report.Overdue++
		}
		ages = append(ages, timeseries.DaysBetween(record.CreatedAt, asOf))
		perStudent[record.StudentID]++
	}
	report.AvgDaysOpen = stats.Summarize(ages).Mean

	bins := stats.Histogram(ages, backlogAgeBins)
	report.OpenByAge = make([]models.AgeBucketCount, len(bins))
	for i, bin := range bins {
		report.OpenByAge[i] = models.AgeBucketCount{Bucket: bin.Bucket, Count: bin.Count}
	}

	top := make([]models.StudentBacklog, 0, len(perStudent))
	for studentID, count := range perStudent {
		top = append(top, models.StudentBacklog{StudentID: studentID, OpenGoals: count})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].OpenGoals != top[j].OpenGoals {
			return top[i].OpenGoals > top[j].OpenGoals
		}
		return top[i].StudentID < top[j].StudentID
	})
	report.TopStudents = paginate(top, topN, 0)
	return report
}

// summarizeOverdue counts open overdue goals at asOf and on-time completions within the range.
// Goals without a target date are excluded from both.
func summarizeOverdue(open, activity []models.GoalRecord, window models.DateRange, asOf time.Time) models.OverdueReport {
	asOf = timeseries.DateOf(asOf)
	report := models.OverdueReport{AsOf: asOf.Format(timeseries.DateLayout)}

	for _, record := range open {
		if isOpenAt(record, asOf) && isOverdueAt(record, asOf) {
			report.OpenOverdue++
		}
	}
	for _, record := range activity {
		completedAt, ok := completionTime(record)
		if !ok || record.TargetDate == nil || !timeseries.Within(completedAt, window.Start, window.End) {
			continue
		}
		report.CompletedCount++
		if !timeseries.DateOf(completedAt).After(timeseries.DateOf(*record.TargetDate)) {
			report.CompletedOnTime++
		}
	}
	report.OnTimeRate = stats.Ratio(report.CompletedOnTime, report.CompletedCount)
	return report
}

func completionDurations(records []models.GoalRecord, window models.DateRange) []int {
	var durations []int
	for _, record := range records {
		completedAt, ok := completionTime(record)
		if !ok || !timeseries.Within(completedAt, window.Start, window.End) {
			continue
		}
		durations = append(durations, daysToComplete(record.CreatedAt, completedAt))
	}
	return durations
}

func completionTime(record models.GoalRecord) (time.Time, bool) {
	if !record.IsCompleted || record.CompletedAt == nil {
		return time.Time{}, false
	}
	return *record.CompletedAt, true
}

// daysToComplete never goes negative, even for back-dated completions.
func daysToComplete(created, completed time.Time) int {
	days := timeseries.DaysBetween(created, completed)
	if days < 0 {
		return 0
	}
	return days
}

func isOpenAt(record models.GoalRecord, asOf time.Time) bool {
	return !record.IsCompleted && !timeseries.DateOf(record.CreatedAt).After(asOf)
}

func isOverdueAt(record models.GoalRecord, asOf time.Time) bool {
	return record.TargetDate != nil && timeseries.DateOf(*record.TargetDate).Before(asOf)
}
