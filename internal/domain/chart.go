package domain

import (
	"fmt"
	"slices"
)

// ChartRange is the closed year range a chart is aligned to. A zero range
// means the span of the observed data.
type ChartRange struct {
	Start int
	End   int
}

func (r ChartRange) isZero() bool { return r.Start == 0 && r.End == 0 }

// BuildChart turns a parsed table into aligned, named series.
//
// Tidy and wide tables produce one series per sector. Any other table with a
// year column produces one series per remaining column, parsed with the
// tolerant number parser; a column with no numeric values is reported in
// ChartPayload.Errors without failing the others. Tables with no year column
// fail with ErrUnrecognizedSchema.
func BuildChart(dataset string, t Table, c *Classifier, r ChartRange) (ChartPayload, FillStats, error) {
	var (
		names   []string
		samples [][]Sample
		errs    map[string]string
	)

	schema := DetectSchema(t.Header, c)
	switch schema.Shape {
	case ShapeTidy, ShapeWide:
		rows := SumByYear(ClassifyRecords(t, schema, c))
		for _, s := range Sectors(rows) {
			names = append(names, string(s))
			samples = append(samples, SeriesFromRows(rows, s))
		}
	default:
		yearCol := findColumn(t.Header, yearColumnCandidates)
		if yearCol == "" {
			return ChartPayload{}, FillStats{}, &SchemaError{Header: slices.Clone(t.Header)}
		}
		for _, col := range t.Header {
			if col == yearCol || col == "" || isFlagColumn(col) {
				continue
			}
			parsed := ParseSamples(t.Rows, yearCol, col)
			if _, _, ok := YearSpan(parsed); !ok {
				if errs == nil {
					errs = make(map[string]string)
				}
				errs[col] = fmt.Sprintf("%s: column %q has no numeric values", ErrMalformedInput, col)
				continue
			}
			names = append(names, col)
			samples = append(samples, parsed)
		}
		if len(names) == 0 && len(errs) == 0 {
			return ChartPayload{}, FillStats{}, &SchemaError{Header: slices.Clone(t.Header)}
		}
	}

	if r.isZero() {
		r = spanOf(samples)
	}

	payload := ChartPayload{
		Dataset:     dataset,
		Start:       r.Start,
		End:         r.End,
		Series:      make([]NamedSeries, 0, len(names)),
		Errors:      errs,
		ProcessedAt: clock.Now(),
	}
	var total FillStats
	for i, name := range names {
		aligned, stats := AlignWithStats(samples[i], r.Start, r.End)
		total.Exact += stats.Exact
		total.Interpolated += stats.Interpolated
		total.Held += stats.Held
		total.Missing += stats.Missing
		payload.Series = append(payload.Series, NamedSeries{Name: name, Points: aligned})
	}
	return payload, total, nil
}

// spanOf returns the range covering every sample year, or an inverted range
// when there are none so alignment yields empty series.
func spanOf(series [][]Sample) ChartRange {
	r, found := ChartRange{}, false
	for _, s := range series {
		first, last, ok := YearSpan(s)
		if !ok {
			continue
		}
		if !found || first < r.Start {
			r.Start = first
		}
		if !found || last > r.End {
			r.End = last
		}
		found = true
	}
	if !found {
		return ChartRange{Start: 1, End: 0}
	}
	return r
}

func isFlagColumn(col string) bool {
	return col == "is_predicted" || col == "predicted"
}
