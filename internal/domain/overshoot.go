package domain

import (
	"math"
	"time"
)

// lastOvershootDay is the highest day of year reported as an overshoot. The
// cutoff stays at 365 in leap years too.
const lastOvershootDay = 365

// trendYearLength scales the overshoot trend. Leap years are ignored so the
// trend stays comparable across years.
const trendYearLength = 365

// OvershootResult is the day on which footprint exhausts a year's biocapacity.
// WithinYear is false when the budget lasts the whole year; Date is then December 31.
type OvershootResult struct {
	Year       int
	DayOfYear  int
	Date       time.Time
	WithinYear bool
}

// DateString formats Date as YYYY-MM-DD.
func (r OvershootResult) DateString() string {
	return r.Date.Format(time.DateOnly)
}

// DaysInYear returns 366 for Gregorian leap years and 365 otherwise.
func DaysInYear(year int) int {
	if year%4 == 0 && (year%100 != 0 || year%400 == 0) {
		return 366
	}
	return 365
}

// CalculateOvershoot computes the overshoot day for one year. It reports false
// when footprint is not positive or either input is not finite.
func CalculateOvershoot(year int, biocapacity, footprint float64) (OvershootResult, bool) {
	if !isFinite(biocapacity) || !isFinite(footprint) || footprint <= 0 {
		return OvershootResult{}, false
	}

	days := DaysInYear(year)
	doy := int(math.Floor(float64(days) * biocapacity / footprint))
	if doy < 1 {
		doy = 1
	}

	if doy > lastOvershootDay {
		return OvershootResult{
			Year:      year,
			DayOfYear: days,
			Date:      time.Date(year, time.December, 31, 0, 0, 0, 0, time.UTC),
		}, true
	}
	return OvershootResult{
		Year:       year,
		DayOfYear:  doy,
		Date:       time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1),
		WithinYear: true,
	}, true
}

// Progress is the share of the year covered by biocapacity, clamped to [0, 1].
// Undefined ratios report 0.
func Progress(biocapacity, footprint float64) float64 {
	if !isFinite(biocapacity) || !isFinite(footprint) || footprint <= 0 {
		return 0
	}
	return math.Min(math.Max(biocapacity/footprint, 0), 1)
}

// DayDifference returns how many days later a falls than b. Negative means earlier.
func DayDifference(a, b OvershootResult) int {
	return int(math.Round(a.Date.Sub(b.Date).Hours() / 24))
}

// OvershootTrend computes biocapacity / footprint × 365 for every year of
// biocapacity that footprint also covers, using 365 in leap years too. Years
// without a usable ratio are NaN.
func OvershootTrend(biocapacity, footprint AlignedSeries) AlignedSeries {
	out := make(AlignedSeries, 0, len(biocapacity))
	for _, b := range biocapacity {
		f, ok := footprint.At(b.Year)
		if !ok {
			continue
		}
		v := math.NaN()
		if isFinite(b.Value) && isFinite(f.Value) && f.Value > 0 {
			v = b.Value / f.Value * trendYearLength
		}
		out = append(out, Point{Year: b.Year, Value: v, Predicted: b.Predicted || f.Predicted})
	}
	return out
}

// OvershootSummary bundles what a dashboard shows for one country and year.
type OvershootSummary struct {
	Year       int     `json:"year"`
	DayOfYear  int     `json:"day_of_year"`
	Date       string  `json:"date"`
	WithinYear bool    `json:"within_year"`
	Progress   float64 `json:"progress"`
}

// Summarize computes the overshoot day and progress together.
func Summarize(year int, biocapacity, footprint float64) (OvershootSummary, bool) {
	r, ok := CalculateOvershoot(year, biocapacity, footprint)
	if !ok {
		return OvershootSummary{}, false
	}
	return OvershootSummary{
		Year:       r.Year,
		DayOfYear:  r.DayOfYear,
		Date:       r.DateString(),
		WithinYear: r.WithinYear,
		Progress:   Progress(biocapacity, footprint),
	}, true
}
