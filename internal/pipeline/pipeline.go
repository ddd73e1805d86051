package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
)

// BatchExtractor reads up to batchSize raw events from the source.
type BatchExtractor interface {
	ExtractBatch(ctx context.Context, batchSize int) ([]domain.RawEvent, error)
}

// Transformer turns a raw dataset message into an aligned chart payload.
type Transformer interface {
	Transform(ctx context.Context, raw domain.RawEvent) (domain.ChartPayload, error)
}

// BatchLoader writes chart payloads to the destination.
type BatchLoader interface {
	LoadBatch(ctx context.Context, payloads []domain.ChartPayload) error
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second
)

// Pipeline moves dataset messages through extract, align and load.
type Pipeline struct {
	extractor   BatchExtractor
	transformer Transformer
	loader      BatchLoader
	logger      *slog.Logger
	metrics     *observability.Metrics
	ready       atomic.Bool
	batchSize   int
}

// New creates a Pipeline with the given stages and observability.
func New(e BatchExtractor, t Transformer, l BatchLoader, logger *slog.Logger, metrics *observability.Metrics, batchSize int) *Pipeline {
	return &Pipeline{
		extractor:   e,
		transformer: t,
		loader:      l,
		logger:      logger,
		metrics:     metrics,
		batchSize:   batchSize,
	}
}

// Ready reports whether at least one batch has been loaded.
func (p *Pipeline) Ready() bool {
	return p.ready.Load()
}

// CheckReadiness returns nil once a batch of chart payloads has been loaded.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no chart payloads loaded yet")
	}
	return nil
}

// Run executes the batch loop until the context is cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	p.logger.Info("pipeline started", "batch_size", p.batchSize)
	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	b := &backoff{next: initialBackoff}
	for ctx.Err() == nil {
		if !p.runOnce(ctx, b) {
			break
		}
	}
	p.logger.Info("pipeline stopping", "reason", ctx.Err())
	return nil
}

// runOnce handles one batch. It returns false when the pipeline should stop.
func (p *Pipeline) runOnce(ctx context.Context, b *backoff) bool {
	start := time.Now()

	batch, err := p.extractor.ExtractBatch(ctx, p.batchSize)
	if err != nil {
		if ctx.Err() != nil {
			return false
		}
		p.logger.Error("extract batch failed", "error", err)
		return b.wait(ctx)
	}
	if len(batch) == 0 {
		return true
	}

	p.metrics.MessagesConsumed.Add(float64(len(batch)))
	p.metrics.BatchSize.Observe(float64(len(batch)))
	b.reset()

	latest, superseded := latestPerDataset(batch)
	if len(superseded) > 0 {
		p.metrics.DatasetsSuperseded.Add(float64(len(superseded)))
		p.logger.Debug("skipping superseded dataset messages", "count", len(superseded))
	}

	payloads, done := p.align(ctx, latest)
	if len(payloads) > 0 {
		if err := p.loader.LoadBatch(ctx, payloads); err != nil {
			p.logger.Error("load batch failed", "error", err, "batch_size", len(payloads))
			return b.wait(ctx)
		}
		p.metrics.MessagesProduced.Add(float64(len(payloads)))
		p.metrics.BatchProcessingDuration.Observe(time.Since(start).Seconds())
		p.ready.Store(true)
	}

	// Superseded and unusable messages are committed with the loaded ones so a
	// failed load replays the whole batch.
	for _, raw := range append(done, superseded...) {
		p.commit(ctx, raw)
	}
	return true
}

// align transforms each message. Messages that fail are logged and counted;
// they are returned in done alongside the successes so their offsets advance.
func (p *Pipeline) align(ctx context.Context, batch []domain.RawEvent) ([]domain.ChartPayload, []domain.RawEvent) {
	payloads := make([]domain.ChartPayload, 0, len(batch))
	done := make([]domain.RawEvent, 0, len(batch))
	var failed []domain.RawEvent

	for _, raw := range batch {
		out, err := p.transformer.Transform(ctx, raw)
		if err != nil {
			p.logger.Warn("transform failed, skipping message",
				"error", err,
				"dataset", datasetName(raw),
				"topic", raw.Topic,
				"partition", raw.Partition,
				"offset", raw.Offset,
			)
			p.metrics.TransformErrors.Inc()
			failed = append(failed, raw)
			continue
		}
		if len(out.Errors) > 0 {
			p.logger.Warn("dataset loaded with failed series",
				"dataset", out.Dataset, "failed", len(out.Errors))
		}
		payloads = append(payloads, out)
		done = append(done, raw)
	}

	// A poison message must not block the partition, even if nothing loads.
	if len(payloads) == 0 {
		for _, raw := range failed {
			p.commit(ctx, raw)
		}
		return nil, nil
	}
	return payloads, append(done, failed...)
}

func (p *Pipeline) commit(ctx context.Context, raw domain.RawEvent) {
	if raw.Commit == nil {
		return
	}
	if err := raw.Commit(ctx); err != nil {
		p.logger.Warn("commit offset failed", "error", err,
			"topic", raw.Topic, "partition", raw.Partition, "offset", raw.Offset)
	}
}

// latestPerDataset keeps the last message for each dataset, in batch order.
// Earlier messages for the same dataset are returned as superseded.
func latestPerDataset(batch []domain.RawEvent) (latest, superseded []domain.RawEvent) {
	last := make(map[string]int, len(batch))
	for i, raw := range batch {
		last[datasetName(raw)] = i
	}
	latest = make([]domain.RawEvent, 0, len(last))
	for i, raw := range batch {
		if last[datasetName(raw)] == i {
			latest = append(latest, raw)
		} else {
			superseded = append(superseded, raw)
		}
	}
	return latest, superseded
}

func datasetName(raw domain.RawEvent) string {
	if name := raw.Headers[HeaderDataset]; name != "" {
		return name
	}
	return string(raw.Key)
}

// backoff doubles the wait after each consecutive failure, up to maxBackoff.
type backoff struct {
	next time.Duration
}

func (b *backoff) reset() { b.next = initialBackoff }

// wait sleeps for the current delay and reports false if ctx ended first.
func (b *backoff) wait(ctx context.Context) bool {
	timer := time.NewTimer(b.next)
	defer timer.Stop()

	b.next = min(b.next*2, maxBackoff)
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
