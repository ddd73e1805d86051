// Package dashboard runs one interactive dashboard session: it fetches
// datasets through a source.Fetcher, turns them into aligned chart views,
// and keeps those views synchronized through a single viewsync.Coordinator.
//
// Parameter-driven refetches are debounced and superseded per key. A result
// that arrives after a newer request for the same key has started is dropped.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
	"github.com/couchcryptid/overshoot-data-etl/internal/viewsync"
	"github.com/jonboulle/clockwork"
)

var (
	// ErrSuperseded is returned by Refresh when a newer request for the same key started first.
	ErrSuperseded = errors.New("superseded by a newer request")
	// ErrClosed is returned once the session has been closed.
	ErrClosed = errors.New("session closed")
)

// DefaultDebounce is the quiet period used when Debounce is given no duration.
const DefaultDebounce = 250 * time.Millisecond

// ChartSpec describes one chart and where its data comes from.
type ChartSpec struct {
	ID      string
	Request source.Request
	// Format is "csv" or "json". JSONPath names the nested keys holding the records.
	Format   string
	JSONPath []string
	// Range is the year grid; zero uses the span of the data.
	Range domain.ChartRange
}

func (s ChartSpec) decode(body []byte) (domain.Table, error) {
	if strings.EqualFold(s.Format, "json") {
		return domain.DecodeRecords(body, s.JSONPath...)
	}
	return domain.ParseDelimited(string(body))
}

// Job fetches and computes a result. The returned apply func commits it and
// runs only if no newer job for the same key has started. apply runs with the
// session lock held and must not call back into the session.
type Job func(ctx context.Context) (apply func(), err error)

type inflight struct {
	gen    uint64
	cancel context.CancelFunc
}

// Session owns the chart views and the coordinator for one dashboard.
type Session struct {
	fetcher    source.Fetcher
	classifier *domain.Classifier
	coord      *viewsync.Coordinator
	clock      clockwork.Clock
	debounce   time.Duration
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	charts   map[string]*viewsync.Chart
	inflight map[string]inflight
	timers   map[string]clockwork.Timer
	gen      uint64
	closed   bool
}

// NewSession creates a session and its coordinator. A nil clock uses the real
// clock; a non-positive debounce uses DefaultDebounce.
func NewSession(fetcher source.Fetcher, classifier *domain.Classifier, clock clockwork.Clock, debounce time.Duration, logger *slog.Logger, metrics *observability.Metrics) *Session {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Session{
		fetcher:    fetcher,
		classifier: classifier,
		coord:      viewsync.NewCoordinator(logger, metrics),
		clock:      clock,
		debounce:   debounce,
		logger:     logger,
		ctx:        ctx,
		cancel:     cancel,
		charts:     make(map[string]*viewsync.Chart),
		inflight:   make(map[string]inflight),
		timers:     make(map[string]clockwork.Timer),
	}
}

// Coordinator returns the session's coordinator.
func (s *Session) Coordinator() *viewsync.Coordinator { return s.coord }

// Chart returns the view loaded under id.
func (s *Session) Chart(id string) (*viewsync.Chart, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.charts[id]
	return c, ok
}

// LoadCharts loads every chart concurrently. A chart that fails does not
// affect the others; failures are returned keyed by chart ID. Loads
// superseded by a newer request are not failures.
func (s *Session) LoadCharts(ctx context.Context, specs []ChartSpec) map[string]error {
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		failed = make(map[string]error)
	)
	for _, spec := range specs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.LoadChart(ctx, spec)
			if err == nil || errors.Is(err, ErrSuperseded) {
				return
			}
			mu.Lock()
			failed[spec.ID] = err
			mu.Unlock()
		}()
	}
	wg.Wait()
	return failed
}

// LoadChart fetches one chart's dataset, aligns it, and installs the result.
// A new chart is registered with the coordinator; an existing one has its
// series replaced and is redrawn.
func (s *Session) LoadChart(ctx context.Context, spec ChartSpec) error {
	if spec.ID == "" {
		return errors.New("chart id is required")
	}
	err := s.Refresh(ctx, spec.ID, func(ctx context.Context) (func(), error) {
		body, err := s.fetcher.Fetch(ctx, spec.Request)
		if err != nil {
			return nil, err
		}
		table, err := spec.decode(body)
		if err != nil {
			return nil, err
		}
		payload, _, err := domain.BuildChart(spec.ID, table, s.classifier, spec.Range)
		if err != nil {
			return nil, err
		}
		for col, msg := range payload.Errors {
			s.logger.Warn("series skipped", "chart", spec.ID, "column", col, "error", msg)
		}
		return func() { s.install(spec.ID, payload.Series) }, nil
	})
	switch {
	case err == nil:
		s.logger.Debug("chart loaded", "chart", spec.ID)
	case errors.Is(err, ErrSuperseded):
		s.logger.Debug("chart load superseded", "chart", spec.ID)
	default:
		s.logger.Warn("chart load failed", "chart", spec.ID, "error", err)
		err = fmt.Errorf("chart %q: %w", spec.ID, err)
	}
	return err
}

// install runs under s.mu.
func (s *Session) install(id string, series []domain.NamedSeries) {
	if c, ok := s.charts[id]; ok {
		c.SetSeries(series)
		for _, ns := range series {
			c.SetSeriesVisible(ns.Name, s.coord.Visible(ns.Name))
		}
		c.Redraw()
		return
	}
	c := viewsync.NewChart(id, series)
	if err := s.coord.Register(c); err != nil {
		s.logger.Warn("register chart failed", "chart", id, "error", err)
		return
	}
	s.charts[id] = c
}

// ScheduleLoad reloads a chart after the debounce quiet period. Calls made
// within the period collapse into one load.
func (s *Session) ScheduleLoad(spec ChartSpec) {
	s.Debounce(spec.ID, 0, func(ctx context.Context) {
		_ = s.LoadChart(ctx, spec)
	})
}

// Refresh runs job under key, cancelling any job already running under the
// same key. It returns ErrSuperseded if a newer job started before this one
// finished; in that case the result is discarded.
func (s *Session) Refresh(ctx context.Context, key string, job Job) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if prev, ok := s.inflight[key]; ok {
		prev.cancel()
	}
	s.gen++
	gen := s.gen
	jobCtx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(s.ctx, cancel)
	s.inflight[key] = inflight{gen: gen, cancel: cancel}
	s.mu.Unlock()
	defer stop()
	defer cancel()

	apply, err := job(jobCtx)

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if cur, ok := s.inflight[key]; !ok || cur.gen != gen {
		return ErrSuperseded
	}
	delete(s.inflight, key)
	if err != nil {
		return err
	}
	if apply != nil {
		apply()
	}
	return nil
}

// Debounce runs fn once no further Debounce call for key has arrived for d.
// A non-positive d uses the session's debounce interval. fn receives a
// context cancelled when the session closes.
func (s *Session) Debounce(key string, d time.Duration, fn func(ctx context.Context)) {
	if d <= 0 {
		d = s.debounce
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	if t, ok := s.timers[key]; ok {
		t.Stop()
	}
	var t clockwork.Timer
	t = s.clock.AfterFunc(d, func() {
		s.mu.Lock()
		if s.closed || s.timers[key] != t {
			s.mu.Unlock()
			return
		}
		delete(s.timers, key)
		s.mu.Unlock()
		fn(s.ctx)
	})
	s.timers[key] = t
}

// Pending reports how many debounced calls and running jobs are outstanding.
func (s *Session) Pending() (timers, jobs int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers), len(s.inflight)
}

// Close cancels running jobs and pending timers and unregisters every view.
// It is safe to call more than once.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	for key, t := range s.timers {
		t.Stop()
		delete(s.timers, key)
	}
	for key, f := range s.inflight {
		f.cancel()
		delete(s.inflight, key)
	}
	s.charts = make(map[string]*viewsync.Chart)
	s.mu.Unlock()

	s.cancel()
	s.coord.Close()
	s.logger.Debug("dashboard session closed")
}
