package domain

import (
	"context"
	"encoding/json"
	"math"
	"time"
)

// RawEvent represents an unprocessed dataset message from the source topic.
type RawEvent struct {
	Key       []byte
	Value     []byte
	Headers   map[string]string
	Topic     string
	Partition int
	Offset    int64
	Timestamp time.Time
	Commit    func(ctx context.Context) error
}

// RawRecord is one parsed row keyed by trimmed header name.
type RawRecord map[string]string

// Table is the parser's output: the header in source order and one record per data row.
type Table struct {
	Header []string
	Rows   []RawRecord
}

// Sector is a coarse economic-activity category. Labels the classifier cannot
// place keep their own text, so Sector is open-ended.
type Sector string

const (
	SectorIndustry       Sector = "Industry"
	SectorBuilding       Sector = "Building"
	SectorTransportation Sector = "Transportation"
	SectorAgriculture    Sector = "Agriculture"
	SectorOther          Sector = "Other"
)

// Taxonomy lists the known sectors in display order. A wide table needs a
// column for at least one of them.
var Taxonomy = []Sector{SectorIndustry, SectorBuilding, SectorTransportation, SectorAgriculture}

// ClassifiedRecord is one tidy observation after sector classification.
type ClassifiedRecord struct {
	Year   int
	Sector Sector
	Value  float64
}

// YearRow holds the summed value of every sector observed in one year.
type YearRow struct {
	Year   int
	Values map[Sector]float64
}

// Sample is an observed (year, value) pair before alignment.
type Sample struct {
	Year      float64
	Value     float64
	Predicted bool
}

// Point is one year on an aligned grid. NaN marks a year with no value.
type Point struct {
	Year      int
	Value     float64
	Predicted bool
}

type wirePoint struct {
	Year      int      `json:"year"`
	Value     *float64 `json:"value"`
	Predicted bool     `json:"predicted,omitempty"`
}

// MarshalJSON encodes a missing value as null.
func (p Point) MarshalJSON() ([]byte, error) {
	w := wirePoint{Year: p.Year, Predicted: p.Predicted}
	if !math.IsNaN(p.Value) && !math.IsInf(p.Value, 0) {
		v := p.Value
		w.Value = &v
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes null as NaN.
func (p *Point) UnmarshalJSON(data []byte) error {
	var w wirePoint
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	p.Year = w.Year
	p.Predicted = w.Predicted
	p.Value = math.NaN()
	if w.Value != nil {
		p.Value = *w.Value
	}
	return nil
}

// NamedSeries is one aligned series as handed to a chart.
type NamedSeries struct {
	Name   string        `json:"name"`
	Points AlignedSeries `json:"points"`
}

// ChartPayload is the output contract for one logical chart.
type ChartPayload struct {
	Dataset     string            `json:"dataset"`
	Start       int               `json:"start_year"`
	End         int               `json:"end_year"`
	Series      []NamedSeries     `json:"series"`
	Errors      map[string]string `json:"errors,omitempty"`
	ProcessedAt time.Time         `json:"processed_at"`
}
