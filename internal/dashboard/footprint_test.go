package dashboard

import (
	"context"
	"math"
	"testing"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func footprintFetcher() *fakeFetcher {
	f := newFakeFetcher()
	f.responses["GET /country/ct/5001/2023"] = `[
		{"year":2023,"record":"BiocapPerCap","total":1.5},
		{"year":2023,"record":"EFConsPerCap","total":2.6}
	]`
	f.responses["GET /country/ct/79/2023"] = `[
		{"year":2023,"record":"BiocapPerCap","total":1.2},
		{"year":2023,"record":"EFConsPerCap","total":4.5}
	]`
	f.responses["GET /country/ct/5001?record=BiocapPerCap"] = `[{"year":2000,"total":2},{"year":2002,"total":1.8}]`
	f.responses["GET /country/ct/5001?record=EFConsPerCap"] = `[{"year":2000,"total":2.5},{"year":2002,"total":2.7}]`
	f.responses["GET /country/ct/79?record=EFConsPerCap"] = `[{"year":2000,"total":5},{"year":2001,"total":"4,5"}]`
	return f
}

func TestCountryOvershoot(t *testing.T) {
	f := footprintFetcher()

	world, progress, err := CountryOvershoot(context.Background(), f, WorldCode, 2023)
	require.NoError(t, err)
	// 365 * 1.5 / 2.6 = 210.58
	assert.Equal(t, 210, world.DayOfYear)
	assert.Equal(t, "2023-07-29", world.Date.Format("2006-01-02"))
	assert.InDelta(t, 1.5/2.6, progress, 1e-9)

	germany, _, err := CountryOvershoot(context.Background(), f, GermanyCode, 2023)
	require.NoError(t, err)
	// world biocapacity over the country's footprint: 365 * 1.5 / 4.5 = 121.67
	assert.Equal(t, 121, germany.DayOfYear)
	assert.True(t, germany.WithinYear)
}

func TestCountryOvershoot_MissingRecord(t *testing.T) {
	f := footprintFetcher()
	f.responses["GET /country/ct/79/2023"] = `[{"year":2023,"record":"BiocapPerCap","total":1.2}]`

	_, _, err := CountryOvershoot(context.Background(), f, GermanyCode, 2023)
	assert.ErrorIs(t, err, domain.ErrMalformedInput)

	_, _, err = CountryOvershoot(context.Background(), f, "276", 2023)
	assert.ErrorIs(t, err, domain.ErrSourceUnavailable)
}

func TestCompareOvershoot(t *testing.T) {
	got, err := CompareOvershoot(context.Background(), footprintFetcher(), WorldCode, GermanyCode, 2023)
	require.NoError(t, err)
	assert.Equal(t, 210, got.Country.DayOfYear)
	assert.Equal(t, 121, got.Baseline.DayOfYear)
	assert.Equal(t, 89, got.DifferenceDays)
}

func TestEvolutionSeries(t *testing.T) {
	series, err := EvolutionSeries(context.Background(), footprintFetcher(), GermanyCode, domain.ChartRange{Start: 2000, End: 2002})
	require.NoError(t, err)
	require.Len(t, series, 4)

	names := make([]string, len(series))
	for i, s := range series {
		names[i] = s.Name
		assert.Equal(t, []int{2000, 2001, 2002}, s.Points.Years(), s.Name)
	}
	assert.Equal(t, []string{"World biocapacity", "World footprint", "Country footprint", "Overshoot day"}, names)

	// The country footprint holds its last value after 2001.
	assert.InDelta(t, 4.5, series[2].Points[2].Value, 1e-9)
	// 2001: world biocapacity 1.9 over country footprint 4.5.
	assert.InDelta(t, 1.9/4.5*365, series[3].Points[1].Value, 1e-9)
	assert.False(t, math.IsNaN(series[3].Points[0].Value))
}
