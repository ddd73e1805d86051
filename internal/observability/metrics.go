package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "overshoot_etl"

// Metrics holds the Prometheus counters, histograms, and gauges for the service.
type Metrics struct {
	MessagesConsumed prometheus.Counter
	MessagesProduced prometheus.Counter
	TransformErrors  prometheus.Counter
	PipelineRunning  prometheus.Gauge

	// DatasetsSuperseded counts messages dropped because a newer message for
	// the same dataset arrived in the same batch.
	DatasetsSuperseded prometheus.Counter

	// Batch processing metrics.
	BatchSize               prometheus.Histogram
	BatchProcessingDuration prometheus.Histogram

	// Alignment metrics.
	SeriesAligned *prometheus.CounterVec // labels: dataset
	YearsFilled   *prometheus.CounterVec // labels: kind={exact,interpolated,held,missing}

	// Data source metrics.
	SourceRequests    *prometheus.CounterVec   // labels: method, outcome={success,error,cancelled}
	SourceCache       *prometheus.CounterVec   // labels: result={hit,miss}
	SourceAPIDuration *prometheus.HistogramVec // labels: method

	// Dashboard sync metrics.
	SyncEvents      *prometheus.CounterVec // labels: event={point_hover,point_unhover,legend_enter,legend_leave,visibility}
	RegisteredViews prometheus.Gauge
}

// NewMetrics creates and registers all metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(m.collectors()...)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		MessagesConsumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_consumed_total",
			Help:      "Total dataset messages read from the source topic.",
		}),
		MessagesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_produced_total",
			Help:      "Total chart payloads written to the sink topic.",
		}),
		TransformErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transform_errors_total",
			Help:      "Total datasets that could not be turned into a chart.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the pipeline is active, 0 when shut down.",
		}),
		BatchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Number of messages per batch extracted from Kafka.",
			Buckets:   []float64{1, 5, 10, 20, 30, 40, 50, 75, 100},
		}),
		BatchProcessingDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_processing_duration_seconds",
			Help:      "Duration of a complete batch extract-transform-load cycle.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10},
		}),
		DatasetsSuperseded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "datasets_superseded_total",
			Help:      "Dataset messages skipped in favour of a newer one in the same batch.",
		}),
		SeriesAligned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "series_aligned_total",
			Help:      "Series aligned onto a yearly grid, by dataset.",
		}, []string{"dataset"}),
		YearsFilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "years_filled_total",
			Help:      "Aligned grid years by how their value was obtained.",
		}, []string{"kind"}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_requests_total",
			Help:      "Data source requests by method and outcome.",
		}, []string{"method", "outcome"}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "source_cache_total",
			Help:      "Data source cache lookups by result.",
		}, []string{"result"}),
		SourceAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "source_api_duration_seconds",
			Help:      "Data source request duration in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		SyncEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_events_total",
			Help:      "Cross-view sync events processed, by event.",
		}, []string{"event"}),
		RegisteredViews: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "registered_views",
			Help:      "Chart views currently registered with a sync coordinator.",
		}),
	}
}

func (m *Metrics) collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.MessagesConsumed,
		m.MessagesProduced,
		m.TransformErrors,
		m.PipelineRunning,
		m.DatasetsSuperseded,
		m.BatchSize,
		m.BatchProcessingDuration,
		m.SeriesAligned,
		m.YearsFilled,
		m.SourceRequests,
		m.SourceCache,
		m.SourceAPIDuration,
		m.SyncEvents,
		m.RegisteredViews,
	}
}
