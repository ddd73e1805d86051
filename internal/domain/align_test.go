package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func values(s AlignedSeries) []float64 {
	out := make([]float64, len(s))
	for i, p := range s {
		out[i] = p.Value
	}
	return out
}

func TestAlign_GridShape(t *testing.T) {
	samples := []Sample{{Year: 1995, Value: 1}, {Year: 2003, Value: 9}}
	ranges := [][2]int{{1990, 2010}, {2000, 2000}, {1961, 2024}, {2005, 2006}}

	for _, r := range ranges {
		series := Align(samples, r[0], r[1])
		require.Len(t, series, r[1]-r[0]+1)
		for i, p := range series {
			assert.Equal(t, r[0]+i, p.Year)
		}
	}
}

func TestAlign_InvertedRange(t *testing.T) {
	series := Align([]Sample{{Year: 2000, Value: 1}}, 2010, 2000)
	assert.NotNil(t, series)
	assert.Empty(t, series)
}

func TestAlign_Interpolates(t *testing.T) {
	series := Align([]Sample{{Year: 2004, Value: 30}, {Year: 2000, Value: 10}}, 2000, 2004)
	assert.InDeltaSlice(t, []float64{10, 15, 20, 25, 30}, values(series), 1e-9)
}

func TestAlign_InterpolationStaysWithinBounds(t *testing.T) {
	samples := []Sample{{Year: 1990, Value: 5}, {Year: 1997, Value: -2}, {Year: 2001, Value: 40}}
	series := Align(samples, 1990, 2001)

	for _, p := range series {
		switch {
		case p.Year <= 1997:
			assert.GreaterOrEqual(t, p.Value, -2.0)
			assert.LessOrEqual(t, p.Value, 5.0)
		default:
			assert.GreaterOrEqual(t, p.Value, -2.0)
			assert.LessOrEqual(t, p.Value, 40.0)
		}
	}
	for _, s := range samples {
		p, ok := series.At(int(s.Year))
		require.True(t, ok)
		assert.Equal(t, s.Value, p.Value)
	}
}

func TestAlign_HoldsEdges(t *testing.T) {
	series := Align([]Sample{{Year: 2002, Value: 4}, {Year: 2004, Value: 8}}, 2000, 2006)
	assert.InDeltaSlice(t, []float64{4, 4, 4, 6, 8, 8, 8}, values(series), 1e-9)
}

func TestAlign_SinglePointIsConstant(t *testing.T) {
	series := Align([]Sample{{Year: 2010, Value: 5}}, 2005, 2015)
	require.Len(t, series, 11)
	for _, p := range series {
		assert.Equal(t, 5.0, p.Value)
	}
}

func TestAlign_EmptyIsAllNaN(t *testing.T) {
	series := Align(nil, 2000, 2004)
	require.Len(t, series, 5)
	for _, p := range series {
		assert.True(t, math.IsNaN(p.Value))
	}
}

func TestAlign_LastDuplicateWins(t *testing.T) {
	series := Align([]Sample{{Year: 2000, Value: 1}, {Year: 2001, Value: 7}, {Year: 2000, Value: 2}}, 2000, 2000)
	assert.Equal(t, []float64{2}, values(series))
}

func TestAlign_DropsNonFinite(t *testing.T) {
	samples := []Sample{
		{Year: math.NaN(), Value: 1},
		{Year: 2001, Value: math.Inf(1)},
		{Year: 2002, Value: 4},
	}
	series := Align(samples, 2000, 2003)
	assert.Equal(t, []float64{4, 4, 4, 4}, values(series))
}

func TestAlignWithStats(t *testing.T) {
	_, stats := AlignWithStats([]Sample{{Year: 2000, Value: 1}, {Year: 2002, Value: 3}}, 1999, 2003)
	assert.Equal(t, FillStats{Exact: 2, Interpolated: 1, Held: 2}, stats)

	_, stats = AlignWithStats(nil, 2000, 2001)
	assert.Equal(t, FillStats{Missing: 2}, stats)
}

func TestAlign_PredictedFlag(t *testing.T) {
	series := Align([]Sample{{Year: 2020, Value: 1}, {Year: 2022, Value: 3, Predicted: true}}, 2020, 2023)
	assert.False(t, series[0].Predicted)
	assert.True(t, series[1].Predicted)
	assert.True(t, series[2].Predicted)
	assert.True(t, series[3].Predicted)
}

func TestYearSpan(t *testing.T) {
	first, last, ok := YearSpan([]Sample{{Year: 2003, Value: 1}, {Year: 1999, Value: 2}, {Year: 2050, Value: math.NaN()}})
	require.True(t, ok)
	assert.Equal(t, 1999, first)
	assert.Equal(t, 2003, last)

	_, _, ok = YearSpan(nil)
	assert.False(t, ok)
}

func TestParseSamples(t *testing.T) {
	rows := []RawRecord{
		{"Year": "2020", "Value": "1,5"},
		{"Year": "2021", "Value": "2 000", "is_predicted": "true"},
		{"Year": "n/a", "Value": "3"},
	}
	samples := ParseSamples(rows, "Year", "Value")
	require.Len(t, samples, 3)

	assert.Equal(t, Sample{Year: 2020, Value: 1.5}, samples[0])
	assert.Equal(t, Sample{Year: 2021, Value: 2000, Predicted: true}, samples[1])
	assert.True(t, math.IsNaN(samples[2].Year))

	series := Align(samples, 2020, 2021)
	assert.Equal(t, []float64{1.5, 2000}, values(series))
}

func TestAlignedSeries_ClipAfter(t *testing.T) {
	series := Align([]Sample{{Year: 2000, Value: 1}, {Year: 2002, Value: 3}}, 2000, 2002)

	clipped := series.ClipAfter(1)
	assert.Equal(t, 1.0, clipped[0].Value)
	assert.Equal(t, 2.0, clipped[1].Value)
	assert.True(t, math.IsNaN(clipped[2].Value))
	assert.Equal(t, 3.0, series[2].Value, "original must be untouched")

	for _, p := range series.ClipAfter(-1) {
		assert.True(t, math.IsNaN(p.Value))
	}
	assert.Equal(t, values(series), values(series.ClipAfter(10)))
}

func TestAlignedSeries_At(t *testing.T) {
	series := Align([]Sample{{Year: 2000, Value: 1}}, 2000, 2002)

	p, ok := series.At(2001)
	require.True(t, ok)
	assert.Equal(t, 2001, p.Year)

	_, ok = series.At(1999)
	assert.False(t, ok)
	_, ok = series.At(2003)
	assert.False(t, ok)
	_, ok = AlignedSeries{}.At(2000)
	assert.False(t, ok)
}

func TestPoint_JSONNull(t *testing.T) {
	data, err := json.Marshal(AlignedSeries{{Year: 2020, Value: math.NaN()}, {Year: 2021, Value: 2, Predicted: true}})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"year":2020,"value":null},{"year":2021,"value":2,"predicted":true}]`, string(data))

	var decoded AlignedSeries
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.Len(t, decoded, 2)
	assert.True(t, math.IsNaN(decoded[0].Value))
	assert.Equal(t, 2.0, decoded[1].Value)
}

func TestAlign_RangeLimits(t *testing.T) {
	samples := []Sample{{Year: 2000, Value: 1}}
	tests := []struct {
		name       string
		start, end int
		wantLen    int
	}{
		{"inverted", 2005, 2000, 0},
		{"at limit", 0, MaxAlignYears - 1, MaxAlignYears},
		{"longer than limit", 0, MaxAlignYears, 0},
		{"full int range", math.MinInt, math.MaxInt, 0},
		{"ends at max int", math.MaxInt - 2, math.MaxInt, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			series, stats := AlignWithStats(samples, tt.start, tt.end)
			require.Len(t, series, tt.wantLen)
			if tt.wantLen == 0 {
				assert.Equal(t, FillStats{}, stats)
				return
			}
			assert.Equal(t, tt.end, series[len(series)-1].Year)
		})
	}
}

func TestParseSamples_ExponentValues(t *testing.T) {
	table, err := DecodeRecords([]byte(`[{"year":2000,"total":1e-05},{"year":2001,"total":2.5E+3}]`))
	require.NoError(t, err)

	series := Align(ParseSamples(table.Rows, "year", "total"), 2000, 2001)
	assert.InDeltaSlice(t, []float64{1e-05, 2500}, values(series), 1e-12)
}

func TestParseSamples_RejectsOutlierYears(t *testing.T) {
	rows := []RawRecord{
		{"year": "1990", "total": "1"},
		{"year": "-3000000", "total": "2"},
		{"year": "12345", "total": "3"},
	}
	samples := ParseSamples(rows, "year", "total")
	require.Len(t, samples, 3)
	assert.True(t, math.IsNaN(samples[1].Year))
	assert.True(t, math.IsNaN(samples[2].Year))

	first, last, ok := YearSpan(samples)
	require.True(t, ok)
	assert.Equal(t, 1990, first)
	assert.Equal(t, 1990, last)
}
