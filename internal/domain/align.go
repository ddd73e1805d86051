package domain

import (
	"math"
	"slices"
	"strconv"
	"strings"
)

// MaxAlignYears is the longest grid Align builds. Longer ranges, like
// inverted ones, yield an empty series.
const MaxAlignYears = 10000

// AlignedSeries is a contiguous yearly grid, one Point per year.
type AlignedSeries []Point

// FillStats counts how each year of an aligned series got its value.
type FillStats struct {
	Exact        int
	Interpolated int
	Held         int
	Missing      int
}

// Align places samples on the grid [start, end]. Years with a sample keep its
// value, interior gaps are linearly interpolated between the nearest samples,
// and gaps before the first or after the last sample hold the nearest value.
// With no usable samples every year is NaN. An inverted range, or one longer
// than MaxAlignYears, yields an empty series.
func Align(samples []Sample, start, end int) AlignedSeries {
	series, _ := AlignWithStats(samples, start, end)
	return series
}

// AlignWithStats is Align plus a breakdown of how each year was filled.
func AlignWithStats(samples []Sample, start, end int) (AlignedSeries, FillStats) {
	var stats FillStats
	// Unsigned subtraction cannot overflow for end >= start.
	if end < start || uint64(end)-uint64(start) >= MaxAlignYears {
		return AlignedSeries{}, stats
	}
	n := int(uint64(end)-uint64(start)) + 1

	years, byYear := indexSamples(samples)
	out := make(AlignedSeries, 0, n)
	for i := range n {
		y := start + i
		if s, ok := byYear[y]; ok {
			out = append(out, Point{Year: y, Value: s.Value, Predicted: s.Predicted})
			stats.Exact++
			continue
		}

		i, _ := slices.BinarySearch(years, y)
		hasPrev, hasNext := i > 0, i < len(years)
		switch {
		case hasPrev && hasNext:
			prev, next := byYear[years[i-1]], byYear[years[i]]
			frac := float64(y-years[i-1]) / float64(years[i]-years[i-1])
			out = append(out, Point{
				Year:      y,
				Value:     prev.Value + (next.Value-prev.Value)*frac,
				Predicted: prev.Predicted || next.Predicted,
			})
			stats.Interpolated++
		case hasPrev:
			prev := byYear[years[i-1]]
			out = append(out, Point{Year: y, Value: prev.Value, Predicted: prev.Predicted})
			stats.Held++
		case hasNext:
			next := byYear[years[i]]
			out = append(out, Point{Year: y, Value: next.Value, Predicted: next.Predicted})
			stats.Held++
		default:
			out = append(out, Point{Year: y, Value: math.NaN()})
			stats.Missing++
		}
	}
	return out, stats
}

// indexSamples drops non-finite samples and keys the rest by whole year.
// For duplicate years the later sample wins.
func indexSamples(samples []Sample) ([]int, map[int]Sample) {
	byYear := make(map[int]Sample, len(samples))
	for _, s := range samples {
		if !isFinite(s.Year) || !isFinite(s.Value) {
			continue
		}
		byYear[int(math.Round(s.Year))] = s
	}
	years := make([]int, 0, len(byYear))
	for y := range byYear {
		years = append(years, y)
	}
	slices.Sort(years)
	return years, byYear
}

// YearSpan returns the first and last finite sample years.
func YearSpan(samples []Sample) (first, last int, ok bool) {
	years, _ := indexSamples(samples)
	if len(years) == 0 {
		return 0, 0, false
	}
	return years[0], years[len(years)-1], true
}

// ParseSamples reads (year, value) pairs from rows with the tolerant number
// parser. Years must be four digits; other rows get a NaN year and are dropped
// by Align. A truthy "is_predicted" or "predicted" column marks forecast rows.
func ParseSamples(rows []RawRecord, yearCol, valueCol string) []Sample {
	out := make([]Sample, 0, len(rows))
	for _, row := range rows {
		year := math.NaN()
		if y, ok := parseYear(row[yearCol]); ok {
			year = float64(y)
		}
		out = append(out, Sample{
			Year:      year,
			Value:     ParseNumber(row[valueCol]),
			Predicted: isPredicted(row),
		})
	}
	return out
}

func isPredicted(row RawRecord) bool {
	for _, key := range []string{"is_predicted", "predicted"} {
		if v, ok := row[key]; ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			return err == nil && b
		}
	}
	return false
}

// At returns the point for year.
func (s AlignedSeries) At(year int) (Point, bool) {
	if len(s) == 0 {
		return Point{}, false
	}
	i := year - s[0].Year
	if i < 0 || i >= len(s) || s[i].Year != year {
		return Point{}, false
	}
	return s[i], true
}

// ClipAfter returns a copy with every value after index i set to NaN, as used
// to reveal a series progressively during playback.
func (s AlignedSeries) ClipAfter(i int) AlignedSeries {
	out := slices.Clone(s)
	for j := max(i+1, 0); j < len(out); j++ {
		out[j].Value = math.NaN()
	}
	return out
}

// Years returns the year of every point.
func (s AlignedSeries) Years() []int {
	years := make([]int, len(s))
	for i, p := range s {
		years[i] = p.Year
	}
	return years
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
