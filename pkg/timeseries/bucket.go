// Package timeseries partitions calendar date ranges into labelled day, week or month buckets.
package timeseries

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Granularity selects the width of generated buckets.
type Granularity string

const (
	Day   Granularity = "day"
	Week  Granularity = "week"
	Month Granularity = "month"
)

// ParseGranularity normalises raw input, returning fallback for unknown values.
func ParseGranularity(raw string, fallback Granularity) Granularity {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(raw))); g {
	case Day, Week, Month:
		return g
	default:
		return fallback
	}
}

// Bucket is a contiguous, inclusive date window.
type Bucket struct {
	Label string    `json:"label"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Contains reports whether the calendar day of t lies inside the bucket.
func (b Bucket) Contains(t time.Time) bool {
	return Within(t, b.Start, b.End)
}

// Buckets covers [start, end] with ordered, gapless buckets. Week and month buckets are
// clipped to the range. start after end yields an empty slice.
func Buckets(start, end time.Time, g Granularity) []Bucket {
	start, end = DateOf(start), DateOf(end)
	if start.After(end) {
		return []Bucket{}
	}

	var buckets []Bucket
	for cursor := start; !cursor.After(end); {
		periodEnd := periodEnd(cursor, g)
		if periodEnd.After(end) {
			periodEnd = end
		}
		buckets = append(buckets, Bucket{
			Label: Label(cursor, g),
			Start: cursor,
			End:   periodEnd,
		})
		cursor = periodEnd.AddDate(0, 0, 1)
	}
	return buckets
}

// Label renders the identifier of the period containing date.
func Label(date time.Time, g Granularity) string {
	date = DateOf(date)
	switch g {
	case Week:
		year, week := date.ISOWeek()
		return fmt.Sprintf("%04d-W%02d", year, week)
	case Month:
		return date.Format("2006-01")
	default:
		return date.Format(DateLayout)
	}
}

// Locate returns the index of the bucket containing t, or -1 when t is outside every bucket.
// buckets must be ordered as produced by Buckets.
func Locate(buckets []Bucket, t time.Time) int {
	d := DateOf(t)
	idx := sort.Search(len(buckets), func(i int) bool {
		return !buckets[i].End.Before(d)
	})
	if idx == len(buckets) || d.Before(buckets[idx].Start) {
		return -1
	}
	return idx
}

func periodEnd(date time.Time, g Granularity) time.Time {
	switch g {
	case Week:
		// ISO weeks run Monday through Sunday.
		offset := (int(date.Weekday()) + 6) % 7
		return date.AddDate(0, 0, 6-offset)
	case Month:
		return time.Date(date.Year(), date.Month()+1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)
	default:
		return date
	}
}
