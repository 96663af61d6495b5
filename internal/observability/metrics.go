package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "quake_trends"

// Metrics holds the Prometheus counters, histograms, and gauges for the pipeline.
type Metrics struct {
	PipelineRunning prometheus.Gauge

	// USGS query metrics.
	QueryRequests *prometheus.CounterVec // labels: outcome={success,empty,retryable,rejected}
	QueryRetries  prometheus.Counter
	QueryDuration prometheus.Histogram

	// Dataset metrics.
	PrecursorFiles  *prometheus.CounterVec // labels: result={fetched,skipped}
	RowsWritten     *prometheus.CounterVec // labels: table={main_events,precursors,merged}
	EventsPublished prometheus.Counter
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 while a pipeline run is active, 0 otherwise.",
		}),
		QueryRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_requests_total",
			Help:      "USGS event query attempts by outcome.",
		}, []string{"outcome"}),
		QueryRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_retries_total",
			Help:      "USGS event query attempts that were retried after a failure.",
		}),
		QueryDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Duration of a single USGS event query attempt.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		PrecursorFiles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "precursor_files_total",
			Help:      "Per-event precursor files by result.",
		}, []string{"result"}),
		RowsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Catalog rows persisted by table.",
		}, []string{"table"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_published_total",
			Help:      "Precursor events published to Kafka.",
		}),
	}

	prometheus.MustRegister(
		m.PipelineRunning,
		m.QueryRequests,
		m.QueryRetries,
		m.QueryDuration,
		m.PrecursorFiles,
		m.RowsWritten,
		m.EventsPublished,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: namespace, Name: "pipeline_running"}),
		QueryRequests:   prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "query_requests_total"}, []string{"outcome"}),
		QueryRetries:    prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "query_retries_total"}),
		QueryDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: namespace, Name: "query_duration_seconds"}),
		PrecursorFiles:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "precursor_files_total"}, []string{"result"}),
		RowsWritten:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: namespace, Name: "rows_written_total"}, []string{"table"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{Namespace: namespace, Name: "events_published_total"}),
	}
}
