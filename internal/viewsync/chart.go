package viewsync

import (
	"math"
	"slices"
	"sync"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
)

// Chart is an in-memory View over aligned series. It records what the
// coordinator asked it to render so a drawing layer, or a test, can read it back.
type Chart struct {
	id string

	mu      sync.Mutex
	surface *ListenerSet
	series  []domain.NamedSeries
	states  map[string]SeriesState
	hidden  map[string]bool
	tooltip []TooltipPoint
	redraws int
}

// NewChart creates a chart view with its own surface.
func NewChart(id string, series []domain.NamedSeries) *Chart {
	return &Chart{
		id:      id,
		surface: NewListenerSet(),
		series:  slices.Clone(series),
		states:  make(map[string]SeriesState),
		hidden:  make(map[string]bool),
	}
}

func (c *Chart) ID() string { return c.id }

func (c *Chart) Surface() Surface {
	return c.Events()
}

// Events returns the concrete surface so the drawing layer can emit into it.
func (c *Chart) Events() *ListenerSet {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// ResetSurface replaces the surface, dropping every listener on the old one,
// as happens when a chart is torn down and drawn again.
func (c *Chart) ResetSurface() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.surface = NewListenerSet()
}

// SetSeries replaces the chart's data. Hover state and visibility are kept
// for series that remain.
func (c *Chart) SetSeries(series []domain.NamedSeries) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.series = slices.Clone(series)
}

// Series returns a copy of the chart's data.
func (c *Chart) Series() []domain.NamedSeries {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.series)
}

func (c *Chart) SeriesNames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	names := make([]string, len(c.series))
	for i, s := range c.series {
		names[i] = s.Name
	}
	return names
}

func (c *Chart) SetSeriesState(series string, state SeriesState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has(series) {
		return
	}
	c.states[series] = state
}

func (c *Chart) SetSeriesVisible(series string, visible bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.has(series) {
		return
	}
	if visible {
		delete(c.hidden, series)
	} else {
		c.hidden[series] = true
	}
}

// PointsAt returns the visible series values at year, skipping missing values.
func (c *Chart) PointsAt(year int) []TooltipPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []TooltipPoint
	for _, s := range c.series {
		if c.hidden[s.Name] {
			continue
		}
		p, ok := s.Points.At(year)
		if !ok || math.IsNaN(p.Value) {
			continue
		}
		out = append(out, TooltipPoint{Series: s.Name, Year: year, Value: p.Value})
	}
	return out
}

func (c *Chart) ShowTooltip(points []TooltipPoint) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tooltip = slices.Clone(points)
}

func (c *Chart) HideTooltip() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tooltip = nil
}

func (c *Chart) Redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.redraws++
}

// State returns how series is rendered.
func (c *Chart) State(series string) SeriesState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.states[series]
}

// IsVisible reports whether series is drawn.
func (c *Chart) IsVisible(series string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.has(series) && !c.hidden[series]
}

// Tooltip returns the points currently shown, or nil.
func (c *Chart) Tooltip() []TooltipPoint {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.tooltip)
}

// Redraws counts Redraw calls.
func (c *Chart) Redraws() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.redraws
}

func (c *Chart) has(series string) bool {
	return slices.ContainsFunc(c.series, func(s domain.NamedSeries) bool { return s.Name == series })
}
