package service

import (
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/goal-tracker-api/internal/models"
	appErrors "github.com/noah-isme/goal-tracker-api/pkg/errors"
	"github.com/noah-isme/goal-tracker-api/pkg/timeseries"
)

const (
	defaultRangeDays = 90
	defaultLimit     = 100
	maxLimit         = 1000
	defaultTopN      = 10
	maxTopN          = 100
)

// reportParams is the normalised form of models.AnalyticsQuery.
type reportParams struct {
	Range   models.DateRange
	GroupBy timeseries.Granularity
	AsOf    time.Time
	Limit   int
	Offset  int
	TopN    int
}

// normalize applies defaults and clamps. Malformed values fall back silently; the only rejected
// input is a start date after the end date.
func normalize(query models.AnalyticsQuery, today time.Time, rangeDays int, groupFallback timeseries.Granularity) (reportParams, error) {
	today = timeseries.DateOf(today)
	if rangeDays <= 0 {
		rangeDays = defaultRangeDays
	}

	start, ok := timeseries.ParseDate(query.StartDate)
	if !ok {
		start = timeseries.AddDays(today, -rangeDays)
	}
	end, ok := timeseries.ParseDate(query.EndDate)
	if !ok {
		end = today
	}
	if start.After(end) {
		return reportParams{}, appErrors.ErrInvalidDateRange
	}

	asOf, ok := timeseries.ParseDate(query.AsOf)
	if !ok {
		asOf = today
	}

	return reportParams{
		Range:   models.DateRange{Start: start, End: end},
		GroupBy: timeseries.ParseGranularity(query.GroupBy, groupFallback),
		AsOf:    asOf,
		Limit:   clampInt(parseInt(query.Limit, defaultLimit), 1, maxLimit),
		Offset:  clampInt(parseInt(query.Offset, 0), 0, -1),
		TopN:    clampInt(parseInt(query.TopN, defaultTopN), 1, maxTopN),
	}, nil
}

// cacheKey identifies a report by its resolved parameters so defaults and explicit values share entries.
func (p reportParams) cacheKey(report string) string {
	return makeAnalyticsCacheKey(
		report,
		p.Range.Start.Format(timeseries.DateLayout),
		p.Range.End.Format(timeseries.DateLayout),
		string(p.GroupBy),
		p.AsOf.Format(timeseries.DateLayout),
		strconv.Itoa(p.Limit),
		strconv.Itoa(p.Offset),
		strconv.Itoa(p.TopN),
	)
}

func parseInt(raw string, fallback int) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}

// clampInt bounds value to [min, max]; a negative max means no upper bound.
func clampInt(value, min, max int) int {
	if value < min {
		return min
	}
	if max >= 0 && value > max {
		return max
	}
	return value
}

func makeAnalyticsCacheKey(parts ...string) string {
	var builder strings.Builder
	builder.Grow(len(parts) * 12)
	builder.WriteString("analytics")
	for _, part := range parts {
		builder.WriteByte(':')
		builder.WriteString(strings.ReplaceAll(part, ":", "|"))
	}
	return builder.String()
}
