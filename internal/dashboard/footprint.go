package dashboard

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
)

// Country codes used by the footprint API.
const (
	WorldCode   = "5001"
	GermanyCode = "79"
)

// Footprint API record names.
const (
	RecordBiocapacity = "BiocapPerCap"
	RecordFootprint   = "EFConsPerCap"
)

// FootprintSeries fetches one record's yearly totals for a country.
func FootprintSeries(ctx context.Context, f source.Fetcher, code, record string) ([]domain.Sample, error) {
	body, err := f.Fetch(ctx, source.Request{
		Path:  "/country/ct/" + url.PathEscape(code),
		Query: url.Values{"record": {record}},
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s for %s: %w", record, code, err)
	}
	table, err := domain.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s for %s: %w", record, code, err)
	}
	return domain.ParseSamples(table.Rows, "year", "total"), nil
}

// yearRecords fetches every record of one country and year, keyed by record name.
func yearRecords(ctx context.Context, f source.Fetcher, code string, year int) (map[string]float64, error) {
	body, err := f.Fetch(ctx, source.Request{
		Path: "/country/ct/" + url.PathEscape(code) + "/" + strconv.Itoa(year),
	})
	if err != nil {
		return nil, fmt.Errorf("fetch %s/%d: %w", code, year, err)
	}
	table, err := domain.DecodeRecords(body)
	if err != nil {
		return nil, fmt.Errorf("decode %s/%d: %w", code, year, err)
	}
	out := make(map[string]float64, len(table.Rows))
	for _, row := range table.Rows {
		if _, seen := out[row["record"]]; seen {
			continue
		}
		out[row["record"]] = domain.ParseNumber(row["total"])
	}
	return out, nil
}

// OvershootComparison is a country's overshoot day next to a baseline country's.
type OvershootComparison struct {
	Country  domain.OvershootResult
	Baseline domain.OvershootResult
	// DifferenceDays is how many days later the country overshoots than the baseline.
	DifferenceDays int
	// Progress is the share of the year the world's biocapacity covers the country's footprint.
	Progress float64
}

// CountryOvershoot computes a country's overshoot day for year as world
// biocapacity per capita over the country's footprint per capita.
func CountryOvershoot(ctx context.Context, f source.Fetcher, code string, year int) (domain.OvershootResult, float64, error) {
	world, err := yearRecords(ctx, f, WorldCode, year)
	if err != nil {
		return domain.OvershootResult{}, 0, err
	}
	country := world
	if code != WorldCode {
		if country, err = yearRecords(ctx, f, code, year); err != nil {
			return domain.OvershootResult{}, 0, err
		}
	}

	bio, ok := world[RecordBiocapacity]
	if !ok {
		return domain.OvershootResult{}, 0, fmt.Errorf("%w: world has no %s for %d", domain.ErrMalformedInput, RecordBiocapacity, year)
	}
	fp, ok := country[RecordFootprint]
	if !ok {
		return domain.OvershootResult{}, 0, fmt.Errorf("%w: %s has no %s for %d", domain.ErrMalformedInput, code, RecordFootprint, year)
	}
	res, ok := domain.CalculateOvershoot(year, bio, fp)
	if !ok {
		return domain.OvershootResult{}, 0, fmt.Errorf("%w: overshoot undefined for %s in %d", domain.ErrMalformedInput, code, year)
	}
	return res, domain.Progress(bio, fp), nil
}

// CompareOvershoot computes the overshoot day of code and of baseline for the
// same year. The world view is conventionally compared against Germany.
func CompareOvershoot(ctx context.Context, f source.Fetcher, code, baseline string, year int) (OvershootComparison, error) {
	country, progress, err := CountryOvershoot(ctx, f, code, year)
	if err != nil {
		return OvershootComparison{}, err
	}
	base, _, err := CountryOvershoot(ctx, f, baseline, year)
	if err != nil {
		return OvershootComparison{}, err
	}
	return OvershootComparison{
		Country:        country,
		Baseline:       base,
		DifferenceDays: domain.DayDifference(country, base),
		Progress:       progress,
	}, nil
}

// EvolutionSeries builds the footprint evolution chart for a country: world
// biocapacity, world footprint, the country's footprint, and the country's
// overshoot day per year, all on the grid [start, end].
func EvolutionSeries(ctx context.Context, f source.Fetcher, code string, r domain.ChartRange) ([]domain.NamedSeries, error) {
	worldBio, err := FootprintSeries(ctx, f, WorldCode, RecordBiocapacity)
	if err != nil {
		return nil, err
	}
	worldFP, err := FootprintSeries(ctx, f, WorldCode, RecordFootprint)
	if err != nil {
		return nil, err
	}
	countryFP, err := FootprintSeries(ctx, f, code, RecordFootprint)
	if err != nil {
		return nil, err
	}

	bio := domain.Align(worldBio, r.Start, r.End)
	fp := domain.Align(countryFP, r.Start, r.End)
	return []domain.NamedSeries{
		{Name: "World biocapacity", Points: bio},
		{Name: "World footprint", Points: domain.Align(worldFP, r.Start, r.End)},
		{Name: "Country footprint", Points: fp},
		{Name: "Overshoot day", Points: domain.OvershootTrend(bio, fp)},
	}, nil
}
