// Package stats provides descriptive statistics over day-count distributions.
package stats

import (
	"math"
	"sort"
)

// Summary describes a distribution of non-negative day counts.
type Summary struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P90    float64 `json:"p90"`
}

// Bin is an inclusive [Min, Max] range. A negative Max leaves the bin unbounded above.
type Bin struct {
	Label string
	Min   int
	Max   int
}

// BinCount is the number of values that fell into a bin.
type BinCount struct {
	Bucket string `json:"bucket"`
	Count  int    `json:"count"`
}

// Summarize computes count, mean, median and p90 rounded to two decimals.
// An empty input yields a zero Summary.
func Summarize(values []int) Summary {
	if len(values) == 0 {
		return Summary{}
	}
	sorted := toSortedFloats(values)
	return Summary{
		Count:  len(sorted),
		Mean:   Round(Mean(sorted), 2),
		Median: Round(Median(sorted), 2),
		P90:    Round(Percentile(sorted, 90), 2),
	}
}

// Mean returns the arithmetic mean, or 0 for no values.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Median expects sorted input.
func Median(sorted []float64) float64 {
	n := len(sorted)
	switch {
	case n == 0:
		return 0
	case n%2 == 1:
		return sorted[n/2]
	default:
		return (sorted[n/2-1] + sorted[n/2]) / 2
	}
}

// Percentile interpolates linearly between the closest ranks at p/100*(n-1). sorted must be ascending.
func Percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := p / 100 * float64(n-1)
	lower := int(math.Floor(rank))
	upper := lower + 1
	if upper >= n {
		return sorted[lower]
	}
	weight := rank - float64(lower)
	return sorted[lower] + (sorted[upper]-sorted[lower])*weight
}

// Histogram counts values per bin, keeping bin order. Every bin is present even when empty;
// values matching no bin are ignored.
func Histogram(values []int, bins []Bin) []BinCount {
	counts := make([]BinCount, len(bins))
	for i, bin := range bins {
		counts[i].Bucket = bin.Label
	}
	for _, v := range values {
		for i, bin := range bins {
			if v < bin.Min || (bin.Max >= 0 && v > bin.Max) {
				continue
			}
			counts[i].Count++
			break
		}
	}
	return counts
}

// Ratio returns part/total rounded to four decimals, or 0 when total is not positive.
func Ratio(part, total int) float64 {
	if total <= 0 {
		return 0
	}
	return Round(float64(part)/float64(total), 4)
}

// Round rounds half away from zero to the given number of decimal places.
func Round(value float64, places int) float64 {
	factor := math.Pow10(places)
	return math.Round(value*factor) / factor
}

func toSortedFloats(values []int) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = float64(v)
	}
	sort.Float64s(out)
	return out
}
