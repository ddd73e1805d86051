// Package viewsync keeps independently rendered chart views consistent: one
// hovered year, one highlighted legend entry, and one visibility map shared by
// every view registered with a Coordinator.
package viewsync

import (
	"errors"
	"log/slog"
	"slices"
	"sync"

	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
)

// ErrClosed is returned when registering with a closed coordinator.
var ErrClosed = errors.New("coordinator closed")

// SeriesState is how a view renders one series.
type SeriesState int

const (
	StateNormal SeriesState = iota
	StateHovered
	StateInactive
)

func (s SeriesState) String() string {
	switch s {
	case StateHovered:
		return "hovered"
	case StateInactive:
		return "inactive"
	default:
		return "normal"
	}
}

// TooltipPoint is one series value shown in a tooltip.
type TooltipPoint struct {
	Series string
	Year   int
	Value  float64
}

// View is a chart handle the coordinator drives. Views never own shared state;
// they report interactions through their Surface and apply what the
// coordinator tells them. Every method must ignore series the view does not have.
type View interface {
	ID() string
	Surface() Surface
	SeriesNames() []string
	SetSeriesState(series string, state SeriesState)
	// SetSeriesVisible applies visibility without emitting a visibility event.
	SetSeriesVisible(series string, visible bool)
	PointsAt(year int) []TooltipPoint
	ShowTooltip(points []TooltipPoint)
	HideTooltip()
	Redraw()
}

type binding struct {
	view     View
	surface  Surface
	listener ListenerID
}

// Coordinator owns the hover and visibility state for one dashboard session.
// State changes are serialized; view callbacks run outside the lock so views
// may report new events while being updated.
type Coordinator struct {
	logger  *slog.Logger
	metrics *observability.Metrics

	mu           sync.Mutex
	bindings     map[string]*binding
	order        []string
	hoveredYear  int
	hovering     bool
	legendSeries string
	legendOrigin string
	hidden       map[string]bool
	closed       bool
}

// NewCoordinator creates an empty coordinator.
func NewCoordinator(logger *slog.Logger, metrics *observability.Metrics) *Coordinator {
	return &Coordinator{
		logger:   logger,
		metrics:  metrics,
		bindings: make(map[string]*binding),
		hidden:   make(map[string]bool),
	}
}

// Register adds a view and installs one listener on its surface. Registering
// the same view again is a no-op; registering a different view under an
// existing ID replaces the old one and its listener. Series hidden elsewhere
// are hidden in the new view as well, and an active legend highlight from
// another view is applied to it.
func (c *Coordinator) Register(v View) error {
	id := v.ID()
	if id == "" {
		return errors.New("view id is required")
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	old, exists := c.bindings[id]
	if exists && old.view == v && old.surface == v.Surface() {
		c.mu.Unlock()
		return nil
	}
	if exists {
		old.surface.RemoveListener(old.listener)
	} else {
		c.order = append(c.order, id)
	}
	c.bindings[id] = c.bind(v)
	hidden := c.hiddenSeries()
	highlighted := ""
	if c.legendOrigin != id {
		highlighted = c.legendSeries
	}
	count := len(c.bindings)
	c.mu.Unlock()

	c.metrics.RegisteredViews.Set(float64(count))
	c.logger.Debug("view registered", "view", id, "replaced", exists)

	if len(hidden) > 0 {
		for _, series := range hidden {
			v.SetSeriesVisible(series, false)
		}
		v.Redraw()
	}
	if highlighted != "" {
		highlight(v, highlighted)
	}
	return nil
}

// bind installs the routing listener. Callers hold c.mu.
func (c *Coordinator) bind(v View) *binding {
	id := v.ID()
	surface := v.Surface()
	listener := surface.AddListener(func(e Event) { c.handle(id, e) })
	return &binding{view: v, surface: surface, listener: listener}
}

// Rebind moves a view's listener to its current surface, for views whose
// surface was recreated by a redraw. The old listener is removed first.
func (c *Coordinator) Rebind(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.bindings[id]
	if !ok {
		return
	}
	b.surface.RemoveListener(b.listener)
	c.bindings[id] = c.bind(b.view)
}

// Unregister removes a view and its listener. Unknown IDs are ignored. When
// the removed view started the active legend highlight, the highlight ends
// and the remaining views return to normal.
func (c *Coordinator) Unregister(id string) {
	c.mu.Lock()
	b, ok := c.bindings[id]
	var reset []View
	if ok {
		b.surface.RemoveListener(b.listener)
		delete(c.bindings, id)
		c.order = slices.DeleteFunc(c.order, func(o string) bool { return o == id })
		if c.legendOrigin == id {
			c.legendSeries, c.legendOrigin = "", ""
			reset = c.snapshot("")
		}
	}
	count := len(c.bindings)
	c.mu.Unlock()

	if !ok {
		return
	}
	c.metrics.RegisteredViews.Set(float64(count))
	c.logger.Debug("view unregistered", "view", id, "ended_highlight", reset != nil)
	for _, v := range reset {
		resetStates(v)
	}
}

// Close unregisters every view, ending any legend highlight first. Later
// registrations fail with ErrClosed.
func (c *Coordinator) Close() {
	c.mu.Lock()
	var reset []View
	if c.legendSeries != "" {
		reset = c.snapshot(c.legendOrigin)
	}
	for _, b := range c.bindings {
		b.surface.RemoveListener(b.listener)
	}
	c.bindings = make(map[string]*binding)
	c.order = nil
	c.closed = true
	c.hovering = false
	c.legendSeries, c.legendOrigin = "", ""
	c.mu.Unlock()

	c.metrics.RegisteredViews.Set(0)
	for _, v := range reset {
		resetStates(v)
	}
}

// Views returns the IDs of registered views in registration order.
func (c *Coordinator) Views() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.order)
}

// HoveredYear returns the shared hovered year, if any.
func (c *Coordinator) HoveredYear() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.hoveredYear, c.hovering
}

// Visible reports whether series is shown. Series are visible until hidden.
func (c *Coordinator) Visible(series string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.hidden[series]
}

// HighlightedSeries returns the legend entry currently hovered, if any.
func (c *Coordinator) HighlightedSeries() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.legendSeries, c.legendSeries != ""
}

func (c *Coordinator) handle(origin string, e Event) {
	switch e.Kind {
	case EventPointHover:
		c.PointHover(origin, e.Series, e.Year)
	case EventPointUnhover:
		c.PointUnhover(origin)
	case EventLegendEnter:
		c.LegendHover(origin, e.Series, true)
	case EventLegendLeave:
		c.LegendHover(origin, e.Series, false)
	case EventVisibility:
		c.ToggleVisibility(origin, e.Series, e.Visible)
	}
}

// PointHover makes year the shared hovered year. Every view shows a tooltip
// for its own points at that year, or hides it when it has none.
func (c *Coordinator) PointHover(origin, series string, year int) {
	c.mu.Lock()
	c.hoveredYear, c.hovering = year, true
	views := c.snapshot("")
	c.mu.Unlock()

	c.metrics.SyncEvents.WithLabelValues(EventPointHover.String()).Inc()
	c.logger.Debug("point hover", "origin", origin, "series", series, "year", year)

	for _, v := range views {
		if points := v.PointsAt(year); len(points) > 0 {
			v.ShowTooltip(points)
		} else {
			v.HideTooltip()
		}
	}
}

// PointUnhover clears the hovered year and hides every tooltip.
func (c *Coordinator) PointUnhover(origin string) {
	c.mu.Lock()
	if !c.hovering {
		c.mu.Unlock()
		return
	}
	c.hovering = false
	views := c.snapshot("")
	c.mu.Unlock()

	c.metrics.SyncEvents.WithLabelValues(EventPointUnhover.String()).Inc()
	c.logger.Debug("point unhover", "origin", origin)

	for _, v := range views {
		v.HideTooltip()
	}
}

// LegendHover highlights series in every view except origin on enter and
// restores them on the matching leave. A repeated enter for the highlighted
// series, or a leave for a different one, is ignored.
func (c *Coordinator) LegendHover(origin, series string, enter bool) {
	c.mu.Lock()
	var (
		kind     EventKind
		previous View
	)
	if enter {
		if c.legendSeries == series && c.legendOrigin == origin {
			c.mu.Unlock()
			return
		}
		// The new origin was dimmed by an earlier highlight from another view.
		if c.legendOrigin != "" && c.legendOrigin != origin {
			if b, ok := c.bindings[origin]; ok {
				previous = b.view
			}
		}
		c.legendSeries, c.legendOrigin = series, origin
		kind = EventLegendEnter
	} else {
		if c.legendSeries == "" || c.legendSeries != series {
			c.mu.Unlock()
			return
		}
		origin = c.legendOrigin
		c.legendSeries, c.legendOrigin = "", ""
		kind = EventLegendLeave
	}
	views := c.snapshot(origin)
	c.mu.Unlock()

	c.metrics.SyncEvents.WithLabelValues(kind.String()).Inc()
	c.logger.Debug("legend hover", "origin", origin, "series", series, "enter", enter)

	if previous != nil {
		resetStates(previous)
	}
	for _, v := range views {
		if enter {
			highlight(v, series)
		} else {
			resetStates(v)
		}
	}
}

// highlight marks series hovered and the view's other series inactive. Views
// without series are reset to normal.
func highlight(v View, series string) {
	names := v.SeriesNames()
	if !slices.Contains(names, series) {
		resetStates(v)
		return
	}
	for _, name := range names {
		if name == series {
			v.SetSeriesState(name, StateHovered)
		} else {
			v.SetSeriesState(name, StateInactive)
		}
	}
}

func resetStates(v View) {
	for _, name := range v.SeriesNames() {
		v.SetSeriesState(name, StateNormal)
	}
}

// ToggleVisibility shows or hides series in every view, including origin,
// then redraws them. Requests that match the current state do nothing, so a
// view echoing the change back cannot loop.
func (c *Coordinator) ToggleVisibility(origin, series string, visible bool) {
	c.mu.Lock()
	if c.hidden[series] == !visible {
		c.mu.Unlock()
		return
	}
	if visible {
		delete(c.hidden, series)
	} else {
		c.hidden[series] = true
	}
	views := c.snapshot("")
	c.mu.Unlock()

	c.metrics.SyncEvents.WithLabelValues(EventVisibility.String()).Inc()
	c.logger.Debug("visibility toggle", "origin", origin, "series", series, "visible", visible)

	for _, v := range views {
		if !slices.Contains(v.SeriesNames(), series) {
			continue
		}
		v.SetSeriesVisible(series, visible)
		v.Redraw()
	}
}

// snapshot returns registered views in registration order, minus exclude.
// Callers hold c.mu.
func (c *Coordinator) snapshot(exclude string) []View {
	views := make([]View, 0, len(c.order))
	for _, id := range c.order {
		if id == exclude {
			continue
		}
		views = append(views, c.bindings[id].view)
	}
	return views
}

// hiddenSeries lists hidden series in sorted order. Callers hold c.mu.
func (c *Coordinator) hiddenSeries() []string {
	out := make([]string, 0, len(c.hidden))
	for s := range c.hidden {
		out = append(out, s)
	}
	slices.Sort(out)
	return out
}
