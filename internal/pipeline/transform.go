package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/overshoot-data-etl/internal/adapter/source"
	"github.com/couchcryptid/overshoot-data-etl/internal/domain"
	"github.com/couchcryptid/overshoot-data-etl/internal/observability"
)

// Message headers understood by the transformer.
const (
	HeaderDataset   = "dataset"
	HeaderFormat    = "format"
	HeaderStartYear = "start_year"
	HeaderEndYear   = "end_year"
	HeaderJSONPath  = "json_path"
	// HeaderSourcePath marks a message whose dataset is fetched from the data
	// API instead of carried in the value.
	HeaderSourcePath = "source_path"
)

// DatasetTransformer implements Transformer by parsing a CSV or JSON dataset
// and aligning every series it contains onto one year grid.
type DatasetTransformer struct {
	fetcher      source.Fetcher
	classifier   *domain.Classifier
	defaultRange domain.ChartRange
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewTransformer creates a DatasetTransformer. Messages without start_year and
// end_year headers are aligned to defaultRange; a zero range uses the span of
// the data. Pass a nil fetcher to reject source_path messages.
func NewTransformer(fetcher source.Fetcher, classifier *domain.Classifier, defaultRange domain.ChartRange, logger *slog.Logger, metrics *observability.Metrics) *DatasetTransformer {
	return &DatasetTransformer{
		fetcher:      fetcher,
		classifier:   classifier,
		defaultRange: defaultRange,
		logger:       logger,
		metrics:      metrics,
	}
}

func (t *DatasetTransformer) Transform(ctx context.Context, raw domain.RawEvent) (domain.ChartPayload, error) {
	dataset := datasetName(raw)

	if path := raw.Headers[HeaderSourcePath]; path != "" {
		body, err := t.fetch(ctx, path)
		if err != nil {
			return domain.ChartPayload{}, fmt.Errorf("dataset %q: %w", dataset, err)
		}
		raw.Value = body
	}

	table, err := decodeTable(raw)
	if err != nil {
		return domain.ChartPayload{}, fmt.Errorf("dataset %q: %w", dataset, err)
	}

	r, err := t.rangeFor(raw.Headers)
	if err != nil {
		return domain.ChartPayload{}, fmt.Errorf("dataset %q: %w", dataset, err)
	}

	payload, stats, err := domain.BuildChart(dataset, table, t.classifier, r)
	if err != nil {
		return domain.ChartPayload{}, fmt.Errorf("dataset %q: %w", dataset, err)
	}

	t.metrics.SeriesAligned.WithLabelValues(dataset).Add(float64(len(payload.Series)))
	t.metrics.YearsFilled.WithLabelValues("exact").Add(float64(stats.Exact))
	t.metrics.YearsFilled.WithLabelValues("interpolated").Add(float64(stats.Interpolated))
	t.metrics.YearsFilled.WithLabelValues("held").Add(float64(stats.Held))
	t.metrics.YearsFilled.WithLabelValues("missing").Add(float64(stats.Missing))

	t.logger.Debug("dataset aligned",
		"dataset", dataset,
		"series", len(payload.Series),
		"start_year", payload.Start,
		"end_year", payload.End,
	)
	return payload, nil
}

// fetch retrieves a referenced dataset. The path may carry a query string.
func (t *DatasetTransformer) fetch(ctx context.Context, path string) ([]byte, error) {
	if t.fetcher == nil {
		return nil, fmt.Errorf("%w: no data source configured for %q", domain.ErrSourceUnavailable, path)
	}
	u, err := url.Parse(path)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid %s %q", domain.ErrMalformedInput, HeaderSourcePath, path)
	}
	return t.fetcher.Fetch(ctx, source.Request{Path: u.Path, Query: u.Query()})
}

func decodeTable(raw domain.RawEvent) (domain.Table, error) {
	switch strings.ToLower(strings.TrimSpace(raw.Headers[HeaderFormat])) {
	case "json":
		var path []string
		if p := strings.TrimSpace(raw.Headers[HeaderJSONPath]); p != "" {
			path = strings.Split(p, ".")
		}
		return domain.DecodeRecords(raw.Value, path...)
	case "", "csv", "tsv", "text":
		return domain.ParseDelimited(string(raw.Value))
	default:
		return domain.Table{}, fmt.Errorf("%w: unsupported format %q", domain.ErrMalformedInput, raw.Headers[HeaderFormat])
	}
}

// rangeFor reads the alignment range from headers, falling back to the default
// when neither bound is set.
func (t *DatasetTransformer) rangeFor(headers map[string]string) (domain.ChartRange, error) {
	startRaw, endRaw := headers[HeaderStartYear], headers[HeaderEndYear]
	if startRaw == "" && endRaw == "" {
		return t.defaultRange, nil
	}
	start, err := strconv.Atoi(strings.TrimSpace(startRaw))
	if err != nil {
		return domain.ChartRange{}, fmt.Errorf("%w: invalid %s %q", domain.ErrMalformedInput, HeaderStartYear, startRaw)
	}
	end, err := strconv.Atoi(strings.TrimSpace(endRaw))
	if err != nil {
		return domain.ChartRange{}, fmt.Errorf("%w: invalid %s %q", domain.ErrMalformedInput, HeaderEndYear, endRaw)
	}
	if !domain.ValidYear(start) || !domain.ValidYear(end) {
		return domain.ChartRange{}, fmt.Errorf("%w: range %d-%d is not a pair of four-digit years", domain.ErrMalformedInput, start, end)
	}
	return domain.ChartRange{Start: start, End: end}, nil
}
