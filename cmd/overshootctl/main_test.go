package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestNormalize_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "co2.csv")
	require.NoError(t, os.WriteFile(path, []byte("Year;Sector;CO2_kt\n2019;Industrie;10\n2021;Industrie;14\n2019;Traffic;5\n"), 0o600))

	out, err := execute(t, "", "normalize", "--co2", "--start", "2019", "--end", "2021", path)
	require.NoError(t, err)

	var payload domain.ChartPayload
	require.NoError(t, json.Unmarshal([]byte(out), &payload))
	assert.Equal(t, "co2", payload.Dataset)
	assert.Equal(t, 2019, payload.Start)
	assert.Equal(t, 2021, payload.End)
	require.Len(t, payload.Series, 2)
	assert.Equal(t, "Industry", payload.Series[0].Name)
	assert.InDelta(t, 12.0, payload.Series[0].Points[1].Value, 1e-9)
	assert.Equal(t, "Transportation", payload.Series[1].Name)
}

func TestNormalize_StdinJSON(t *testing.T) {
	in := `{"energy":{"energySeries":[{"year":2020,"name":"Agriculture","y":3}]}}`

	out, err := execute(t, in, "normalize", "--format", "json", "--json-path", "energy.energySeries", "--dataset", "pie", "-")
	require.NoError(t, err)
	assert.Contains(t, out, `"dataset": "pie"`)
	assert.Contains(t, out, `"name": "Agriculture"`)
}

func TestNormalize_UnrecognizedTable(t *testing.T) {
	_, err := execute(t, "country,value\nDE,1\n", "normalize", "-")
	assert.ErrorIs(t, err, domain.ErrUnrecognizedSchema)
}

func TestOvershoot_Local(t *testing.T) {
	out, err := execute(t, "", "overshoot", "--year", "2024", "--biocapacity", "1", "--footprint", "1")
	require.NoError(t, err)

	var summary domain.OvershootSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	assert.Equal(t, 366, summary.DayOfYear)
	assert.Equal(t, "2024-12-31", summary.Date)
	assert.False(t, summary.WithinYear)
}

func TestOvershoot_RequiresInputs(t *testing.T) {
	_, err := execute(t, "", "overshoot", "--year", "2024", "--biocapacity", "1")
	assert.Error(t, err)

	_, err = execute(t, "", "overshoot", "--year", "2024", "--biocapacity", "1", "--footprint", "0")
	assert.Error(t, err)
}

func TestOvershoot_WorldComparedToGermany(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-API-Key"))
		switch r.URL.Path {
		case "/country/ct/5001/2023":
			_, _ = w.Write([]byte(`[{"record":"BiocapPerCap","total":1.5},{"record":"EFConsPerCap","total":2.6}]`))
		case "/country/ct/79/2023":
			_, _ = w.Write([]byte(`[{"record":"BiocapPerCap","total":1.2},{"record":"EFConsPerCap","total":4.5}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	t.Setenv("OVERSHOOT_SOURCE_API_KEY", "secret")
	out, err := execute(t, "", "overshoot", "--source-url", srv.URL, "--year", "2023", "--country", "5001")
	require.NoError(t, err)

	var got comparisonOutput
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, 210, got.Country.DayOfYear)
	assert.Equal(t, 121, got.Baseline.DayOfYear)
	assert.Equal(t, 89, got.DifferenceDays)
}

func TestSimulate(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/energy-split/health":
			_, _ = w.Write([]byte(`{"years_min":2019,"years_max":2023}`))
		case "/energy-split/features":
			_, _ = w.Write([]byte(`["Agriculture","Traffic"]`))
		case "/energy-split/simulate":
			assert.Equal(t, http.MethodPost, r.Method)
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			_, _ = w.Write([]byte(`[{"baseline_day_of_year":120,"predicted_day_of_year":135}]`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	out, err := execute(t, "", "simulate", "--source-url", srv.URL, "--traffic", "-50")
	require.NoError(t, err)

	var res simulateOutput
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	assert.Equal(t, 2023, res.Year)
	assert.Equal(t, 15, res.DeltaDays)
	assert.Equal(t, "2023-05-15", res.AdjustedDate)
	assert.Equal(t, map[string]float64{"Traffic": -0.5}, res.Adjustments)
	assert.InDelta(t, 2023, body["forecast_year"], 0)
}

func TestParseChartArgs(t *testing.T) {
	specs, err := parseChartArgs([]string{
		"co2=/co2/sectors.csv",
		"pie=/pie_data/all",
		"split=/energy?json_path=energy.energySeries&year=2020",
	}, domain.ChartRange{})
	require.NoError(t, err)
	require.Len(t, specs, 3)

	assert.Equal(t, "csv", specs[0].Format)
	assert.Equal(t, "/co2/sectors.csv", specs[0].Request.Path)
	assert.Nil(t, specs[0].Request.Query)

	assert.Equal(t, "json", specs[1].Format)

	assert.Equal(t, "json", specs[2].Format)
	assert.Equal(t, []string{"energy", "energySeries"}, specs[2].JSONPath)
	assert.Equal(t, "year=2020", specs[2].Request.Query.Encode())

	for _, bad := range [][]string{{"nope"}, {"=/x"}, {"a=/x", "a=/y"}} {
		_, err := parseChartArgs(bad, domain.ChartRange{})
		assert.Error(t, err, bad)
	}
}
