// Package domain normalizes ecological-footprint and sector-emission datasets
// into per-year series that charts can compare directly.
//
// # Data Sources
//
// Inputs arrive as delimited text exported from spreadsheets or as JSON
// records returned by the footprint API. Neither is reliable: delimiters
// vary (comma, semicolon, tab), quoting is inconsistent, headers carry a
// byte-order mark, column names differ between exports, and years are
// missing from some series.
//
// # Pipeline
//
//	text/JSON → Table → ClassifiedRecord → YearRow → AlignedSeries
//
// Each stage returns a new value and never mutates its input.
//
// Parsing (ParseDelimited, DecodeRecords) produces a Table of string cells
// keyed by trimmed header. Rows with no content are dropped, short rows are
// padded with empty strings.
//
// Classification (Classifier) maps free-text labels onto the sector taxonomy:
//
//	Industry        industry, manufacturing
//	Building        building, residential, housing
//	Transportation  transport, traffic, mobility, road, rail
//	Agriculture     agriculture, farming, livestock
//
// Labels are lowercased, stripped of diacritics and punctuation before the
// keyword rules run. Caller overrides are checked first. Labels that match
// nothing pass through unchanged.
//
// Aggregation (DetectSchema, Aggregate) recognizes two table shapes:
//
//	tidy  year | sector | value       one row per (year, sector) observation
//	wide  year | Industry | Building  one column per sector
//
// Tidy values are summed per (year, sector). Anything else is rejected with
// ErrUnrecognizedSchema.
//
// Alignment (Align) puts a sparse series on a contiguous yearly grid. Known
// years pass through, interior gaps are linearly interpolated, edge gaps hold
// the nearest known value. NaN marks a year with no value and serializes to
// JSON null.
//
// # Overshoot Day
//
// The overshoot day is the day of the year on which demand (footprint) has
// used up what the ecosystem regenerates in a year (biocapacity):
//
//	day = floor(daysInYear × biocapacity / footprint)
//
// A result above 365 means the population lives within its means; the date
// is pinned to December 31.
//
// # Unknown Values
//
// Bad data degrades instead of failing: unparsable values become 0 during
// aggregation and NaN during alignment, unknown labels keep their text.
package domain
