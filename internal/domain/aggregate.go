package domain

import (
	"slices"
	"strings"
)

var (
	yearColumnCandidates   = []string{"year"}
	sectorColumnCandidates = []string{"sector", "category", "main category", "name"}
	valueColumnCandidates  = []string{"pj", "value (pj)", "value", "energy", "y", "total", "co2_kt", "co2", "co₂"}
)

// Shape tags the layout of a table.
type Shape int

const (
	ShapeUnrecognized Shape = iota
	ShapeTidy
	ShapeWide
)

func (s Shape) String() string {
	switch s {
	case ShapeTidy:
		return "tidy"
	case ShapeWide:
		return "wide"
	default:
		return "unrecognized"
	}
}

// Schema is the detected layout of a table, decided once from its header.
// Tidy schemas set SectorColumn and ValueColumn; wide schemas set SectorColumns.
type Schema struct {
	Shape         Shape
	YearColumn    string
	SectorColumn  string
	ValueColumn   string
	SectorColumns map[Sector]string
}

// DetectSchema identifies the table shape from header names. A tidy table has a
// year, a category, and a value column. A wide table has a year column, no
// category column, and at least one column whose name classifies into the taxonomy.
func DetectSchema(header []string, c *Classifier) Schema {
	yearCol := findColumn(header, yearColumnCandidates)
	if yearCol == "" {
		return Schema{Shape: ShapeUnrecognized}
	}

	sectorCol := findColumn(header, sectorColumnCandidates)
	if sectorCol != "" {
		valueCol := findColumn(header, valueColumnCandidates)
		if valueCol == "" {
			return Schema{Shape: ShapeUnrecognized}
		}
		return Schema{Shape: ShapeTidy, YearColumn: yearCol, SectorColumn: sectorCol, ValueColumn: valueCol}
	}

	cols := make(map[Sector]string)
	for _, h := range header {
		if h == yearCol {
			continue
		}
		s := c.Classify(h)
		if !slices.Contains(Taxonomy, s) {
			continue
		}
		if _, taken := cols[s]; !taken {
			cols[s] = h
		}
	}
	if len(cols) == 0 {
		return Schema{Shape: ShapeUnrecognized}
	}
	return Schema{Shape: ShapeWide, YearColumn: yearCol, SectorColumns: cols}
}

// findColumn returns the header matching the earliest candidate, compared
// case-insensitively after trimming.
func findColumn(header, candidates []string) string {
	for _, want := range candidates {
		for _, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), want) {
				return h
			}
		}
	}
	return ""
}

// ClassifyRecords flattens a table into one record per (row, sector) cell.
// Rows without a four-digit year and cells whose sector classifies to empty
// are skipped. Values that do not parse become 0.
func ClassifyRecords(t Table, schema Schema, c *Classifier) []ClassifiedRecord {
	var out []ClassifiedRecord
	for _, row := range t.Rows {
		year, ok := parseYear(row[schema.YearColumn])
		if !ok {
			continue
		}
		switch schema.Shape {
		case ShapeTidy:
			sector := c.Classify(row[schema.SectorColumn])
			if sector == "" {
				continue
			}
			out = append(out, ClassifiedRecord{Year: year, Sector: sector, Value: coerceValue(row[schema.ValueColumn])})
		case ShapeWide:
			for _, sector := range Taxonomy {
				col, ok := schema.SectorColumns[sector]
				if !ok {
					continue
				}
				out = append(out, ClassifiedRecord{Year: year, Sector: sector, Value: coerceValue(row[col])})
			}
		}
	}
	return out
}

// Aggregate classifies every row of t and sums values per (year, sector).
// Rows come back in ascending year order, one per year.
func Aggregate(t Table, c *Classifier) ([]YearRow, error) {
	schema := DetectSchema(t.Header, c)
	if schema.Shape == ShapeUnrecognized {
		return nil, &SchemaError{Header: slices.Clone(t.Header)}
	}
	return SumByYear(ClassifyRecords(t, schema, c)), nil
}

// SumByYear folds classified records into one row per year.
func SumByYear(records []ClassifiedRecord) []YearRow {
	byYear := make(map[int]map[Sector]float64)
	for _, r := range records {
		values, ok := byYear[r.Year]
		if !ok {
			values = make(map[Sector]float64)
			byYear[r.Year] = values
		}
		values[r.Sector] += r.Value
	}

	rows := make([]YearRow, 0, len(byYear))
	for year, values := range byYear {
		rows = append(rows, YearRow{Year: year, Values: values})
	}
	slices.SortFunc(rows, func(a, b YearRow) int { return a.Year - b.Year })
	return rows
}

// Sectors lists every sector present in rows: taxonomy sectors first in
// display order, then pass-through labels alphabetically.
func Sectors(rows []YearRow) []Sector {
	seen := make(map[Sector]struct{})
	for _, r := range rows {
		for s := range r.Values {
			seen[s] = struct{}{}
		}
	}
	var out, extra []Sector
	for _, s := range Taxonomy {
		if _, ok := seen[s]; ok {
			out = append(out, s)
			delete(seen, s)
		}
	}
	for s := range seen {
		extra = append(extra, s)
	}
	slices.Sort(extra)
	return append(out, extra...)
}

// SeriesFromRows extracts the samples for one sector from aggregated rows.
func SeriesFromRows(rows []YearRow, sector Sector) []Sample {
	var out []Sample
	for _, r := range rows {
		if v, ok := r.Values[sector]; ok {
			out = append(out, Sample{Year: float64(r.Year), Value: v})
		}
	}
	return out
}
