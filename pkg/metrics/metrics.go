// Package metrics exposes Prometheus metrics for the feature exporter.
// Metrics implements sink.Observer and the exporter's bar hooks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "etna"

// Metrics holds all Prometheus metrics for the exporter
type Metrics struct {
	BarsIngested prometheus.Counter // Bars received from the source
	BarsSkipped  prometheus.Counter // Bars outside the session window
	FeatureRows  prometheus.Counter // Feature records produced by the engine

	RowsEnqueued      prometheus.Counter     // Records handed to the sink
	PendingRows       prometheus.Gauge       // Records waiting in the queue
	BatchesWritten    prometheus.Counter     // Batches appended by the writer
	RowsWritten       prometheus.Counter     // Rows appended (not yet committed)
	RowsCommitted     prometheus.Counter     // Rows in committed transactions
	Commits           prometheus.Counter     // Committed transactions
	PersistenceErrors *prometheus.CounterVec // Failed storage operations by op
	BatchDuration     prometheus.Histogram   // Time to append one batch
}

// New creates and registers all metrics on the default registry
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing)
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		BarsIngested: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_ingested_total",
			Help:      "Total number of bars received",
		}),
		BarsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bars_skipped_total",
			Help:      "Total number of bars outside the session window",
		}),
		FeatureRows: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feature_rows_total",
			Help:      "Total number of feature records produced",
		}),
		RowsEnqueued: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_enqueued_total",
			Help:      "Total number of records handed to the sink",
		}),
		PendingRows: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pending_rows",
			Help:      "Records waiting to be flushed",
		}),
		BatchesWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_written_total",
			Help:      "Total number of batches appended",
		}),
		RowsWritten: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Total number of rows appended",
		}),
		RowsCommitted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_committed_total",
			Help:      "Total number of rows in committed transactions",
		}),
		Commits: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commits_total",
			Help:      "Total number of committed transactions",
		}),
		PersistenceErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_errors_total",
			Help:      "Total number of failed storage operations",
		}, []string{"op"}),
		BatchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Time to append one batch in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
	}
}

// Enqueued implements sink.Observer
func (m *Metrics) Enqueued(pending int) {
	m.RowsEnqueued.Inc()
	m.PendingRows.Set(float64(pending))
}

// BatchWritten implements sink.Observer
func (m *Metrics) BatchWritten(rows int, elapsed time.Duration) {
	m.BatchesWritten.Inc()
	m.RowsWritten.Add(float64(rows))
	m.BatchDuration.Observe(elapsed.Seconds())
}

// Committed implements sink.Observer
func (m *Metrics) Committed(rows int64) {
	m.Commits.Inc()
	m.RowsCommitted.Add(float64(rows))
}

// PersistenceFailed implements sink.Observer
func (m *Metrics) PersistenceFailed(op string) {
	m.PersistenceErrors.WithLabelValues(op).Inc()
}

// BarIngested counts a received bar
func (m *Metrics) BarIngested() {
	m.BarsIngested.Inc()
}

// BarSkipped counts a bar dropped by the session filter
func (m *Metrics) BarSkipped() {
	m.BarsSkipped.Inc()
}

// RowEmitted counts a produced feature record
func (m *Metrics) RowEmitted() {
	m.FeatureRows.Inc()
}

// Handler returns the HTTP handler serving gatherer's metrics
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
