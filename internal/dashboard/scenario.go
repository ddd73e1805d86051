package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
)

// Lever is one sector slider of the emissions scenario.
type Lever string

const (
	LeverAgriculture Lever = "agriculture"
	LeverBuilding    Lever = "building"
	LeverEnergy      Lever = "energy"
	LeverIndustry    Lever = "industry"
	LeverTraffic     Lever = "traffic"
	LeverWaste       Lever = "waste"
)

// Levers lists every slider in display order.
var Levers = []Lever{LeverAgriculture, LeverBuilding, LeverEnergy, LeverIndustry, LeverTraffic, LeverWaste}

// leverFeatures maps each lever onto the simulator's feature names: the
// preferred name when offered, else the first feature containing a matcher.
var leverFeatures = map[Lever]struct {
	preferred string
	matchers  []string
}{
	LeverAgriculture: {"Agriculture", []string{"agric"}},
	LeverBuilding:    {"Building", []string{"build"}},
	LeverEnergy:      {"Energy industry", []string{"energy", "power"}},
	LeverIndustry:    {"Industry", []string{"industry", "industrial", "manufactur"}},
	LeverTraffic:     {"Traffic", []string{"traffic", "transport"}},
	LeverWaste:       {"Waste management and other", []string{"waste", "other"}},
}

const scenarioKey = "scenario"

// Fallback forecast years when the simulator does not report its range.
const (
	fallbackMinYear = 1990
	fallbackMaxYear = 2024
)

// Adjustments holds slider positions in percent, from -100 to 100.
type Adjustments map[Lever]int

// YearRange is the span of years the simulator can forecast.
type YearRange struct {
	Min int `json:"years_min"`
	Max int `json:"years_max"`
}

// ScenarioOutcome is the simulated overshoot day with and without the adjustments.
type ScenarioOutcome struct {
	Year         int
	BaselineDay  int
	AdjustedDay  int
	BaselineDate time.Time
	AdjustedDate time.Time
}

// Delta is how many days the adjustments move the overshoot day. Positive is later.
func (o ScenarioOutcome) Delta() int { return o.AdjustedDay - o.BaselineDay }

// ScenarioRunner drives the emissions simulator endpoint under /energy-split.
type ScenarioRunner struct {
	fetcher  source.Fetcher
	session  *Session
	basePath string
	logger   *slog.Logger

	mu       sync.RWMutex
	features []string
	years    YearRange
}

// NewScenarioRunner creates a runner. Scheduled simulations are debounced and
// superseded through session.
func NewScenarioRunner(fetcher source.Fetcher, session *Session, logger *slog.Logger) *ScenarioRunner {
	return &ScenarioRunner{
		fetcher:  fetcher,
		session:  session,
		basePath: "/energy-split",
		logger:   logger,
		years:    YearRange{Min: fallbackMinYear, Max: fallbackMaxYear},
	}
}

// Init loads the forecast year range and the feature names. The health call
// must succeed; a failed feature listing leaves the features empty.
func (r *ScenarioRunner) Init(ctx context.Context) (YearRange, error) {
	body, err := r.fetcher.Fetch(ctx, source.Request{Path: r.basePath + "/health"})
	if err != nil {
		return YearRange{}, fmt.Errorf("simulator health: %w", err)
	}
	var health struct {
		Min *int `json:"years_min"`
		Max *int `json:"years_max"`
	}
	if err := json.Unmarshal(body, &health); err != nil {
		return YearRange{}, fmt.Errorf("%w: simulator health: %w", domain.ErrMalformedInput, err)
	}

	years := YearRange{Min: fallbackMinYear, Max: fallbackMaxYear}
	if health.Min != nil {
		years.Min = *health.Min
	}
	if health.Max != nil {
		years.Max = *health.Max
	}

	features, err := r.fetchFeatures(ctx)
	if err != nil {
		r.logger.Warn("simulator features unavailable", "error", err)
	}

	r.mu.Lock()
	r.years = years
	r.features = features
	r.mu.Unlock()
	return years, nil
}

func (r *ScenarioRunner) fetchFeatures(ctx context.Context) ([]string, error) {
	body, err := r.fetcher.Fetch(ctx, source.Request{Path: r.basePath + "/features"})
	if err != nil {
		return nil, err
	}
	var items []any
	if err := json.Unmarshal(body, &items); err != nil {
		return nil, fmt.Errorf("%w: simulator features: %w", domain.ErrMalformedInput, err)
	}
	names := make([]string, 0, len(items))
	for _, it := range items {
		if name := featureName(it); name != "" {
			names = append(names, name)
		}
	}
	return names, nil
}

// featureName accepts a bare string or an object with a name, key, or id.
func featureName(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case map[string]any:
		for _, k := range []string{"name", "key", "id"} {
			if s, ok := v[k].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}

// Features returns the feature names loaded by Init.
func (r *ScenarioRunner) Features() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.features...)
}

// Years returns the forecast range loaded by Init, or the fallback range.
func (r *ScenarioRunner) Years() YearRange {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.years
}

// MapAdjustments converts slider percentages into simulator adjustments keyed
// by feature name, as fractions. Zero sliders and levers with no matching
// feature are omitted.
func MapAdjustments(features []string, adj Adjustments) map[string]float64 {
	out := make(map[string]float64)
	for _, lever := range Levers {
		pct := max(-100, min(100, adj[lever]))
		if pct == 0 {
			continue
		}
		if name := matchFeature(features, lever); name != "" {
			out[name] = float64(pct) / 100
		}
	}
	return out
}

func matchFeature(features []string, lever Lever) string {
	rule := leverFeatures[lever]
	for _, f := range features {
		if f == rule.preferred {
			return f
		}
	}
	for _, f := range features {
		lower := strings.ToLower(f)
		for _, m := range rule.matchers {
			if strings.Contains(lower, m) {
				return f
			}
		}
	}
	return ""
}

type simulateRequest struct {
	ForecastYear int                `json:"forecast_year"`
	Adjustments  map[string]float64 `json:"adjustments"`
}

type simulateResult struct {
	Baseline  *float64 `json:"baseline_day_of_year"`
	Predicted *float64 `json:"predicted_day_of_year"`
	Adjusted  *float64 `json:"adjusted_day_of_year"`
	DayOfYear *float64 `json:"day_of_year"`
}

func (s simulateResult) adjusted() float64 {
	for _, v := range []*float64{s.Predicted, s.Adjusted, s.DayOfYear} {
		if v != nil {
			return *v
		}
	}
	return 0
}

// Simulate asks the simulator for the overshoot day of year under adj.
func (r *ScenarioRunner) Simulate(ctx context.Context, year int, adj Adjustments) (ScenarioOutcome, error) {
	body, err := json.Marshal(simulateRequest{
		ForecastYear: year,
		Adjustments:  MapAdjustments(r.Features(), adj),
	})
	if err != nil {
		return ScenarioOutcome{}, err
	}
	resp, err := r.fetcher.Fetch(ctx, source.Request{
		Method: http.MethodPost,
		Path:   r.basePath + "/simulate",
		Body:   body,
	})
	if err != nil {
		return ScenarioOutcome{}, fmt.Errorf("simulate %d: %w", year, err)
	}
	res, err := decodeSimulateResult(resp)
	if err != nil {
		return ScenarioOutcome{}, fmt.Errorf("simulate %d: %w", year, err)
	}

	var base float64
	if res.Baseline != nil {
		base = *res.Baseline
	}
	baseDay := clampDayOfYear(year, base)
	adjDay := clampDayOfYear(year, res.adjusted())
	return ScenarioOutcome{
		Year:         year,
		BaselineDay:  baseDay,
		AdjustedDay:  adjDay,
		BaselineDate: dateOfDay(year, baseDay),
		AdjustedDate: dateOfDay(year, adjDay),
	}, nil
}

// decodeSimulateResult accepts a single object or a list whose first entry is used.
func decodeSimulateResult(data []byte) (simulateResult, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []simulateResult
		if err := json.Unmarshal(data, &list); err != nil {
			return simulateResult{}, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
		}
		if len(list) == 0 {
			return simulateResult{}, fmt.Errorf("%w: empty simulation result", domain.ErrMalformedInput)
		}
		return list[0], nil
	}
	var res simulateResult
	if err := json.Unmarshal(data, &res); err != nil {
		return simulateResult{}, fmt.Errorf("%w: %w", domain.ErrMalformedInput, err)
	}
	return res, nil
}

// Schedule runs Simulate after the session's debounce period. A newer call
// replaces a pending one and aborts a running one; only the latest outcome
// reaches onResult. Outcomes are delivered with the session lock held, so
// onResult must not call back into the session.
func (r *ScenarioRunner) Schedule(year int, adj Adjustments, onResult func(ScenarioOutcome, error)) {
	snapshot := make(Adjustments, len(adj))
	for k, v := range adj {
		snapshot[k] = v
	}
	r.session.Debounce(scenarioKey, 0, func(ctx context.Context) {
		err := r.session.Refresh(ctx, scenarioKey, func(ctx context.Context) (func(), error) {
			out, err := r.Simulate(ctx, year, snapshot)
			if err != nil {
				return nil, err
			}
			return func() { onResult(out, nil) }, nil
		})
		switch {
		case err == nil, errors.Is(err, ErrSuperseded), errors.Is(err, ErrClosed), errors.Is(err, context.Canceled):
		default:
			r.logger.Warn("simulation failed", "year", year, "error", err)
			onResult(ScenarioOutcome{}, err)
		}
	})
}

// clampDayOfYear rounds doy and clamps it to the days of year.
func clampDayOfYear(year int, doy float64) int {
	if math.IsNaN(doy) {
		return 1
	}
	return int(max(1, min(math.Round(doy), float64(domain.DaysInYear(year)))))
}

func dateOfDay(year, doy int) time.Time {
	return time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, doy-1)
}
