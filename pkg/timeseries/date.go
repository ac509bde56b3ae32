package timeseries

import (
	"strings"
	"time"
)

// DateLayout is the canonical calendar date format used in labels and query parameters.
const DateLayout = "2006-01-02"

const day = 24 * time.Hour

// DateOf truncates t to midnight UTC of its calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate accepts YYYY-MM-DD or RFC3339 input. The boolean is false for blank or malformed values.
func ParseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}
	if parsed, err := time.Parse(DateLayout, raw); err == nil {
		return parsed, true
	}
	if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
		return DateOf(parsed), true
	}
	return time.Time{}, false
}

// AddDays shifts a date by n calendar days.
func AddDays(date time.Time, n int) time.Time {
	return DateOf(date).AddDate(0, 0, n)
}

// DaysBetween returns the number of calendar days from one date to another.
// The result is negative when to precedes from.
func DaysBetween(from, to time.Time) int {
	return int(DateOf(to).Sub(DateOf(from)) / day)
}

// Within reports whether date falls inside the inclusive [start, end] window.
func Within(date, start, end time.Time) bool {
	d := DateOf(date)
	return !d.Before(DateOf(start)) && !d.After(DateOf(end))
}
