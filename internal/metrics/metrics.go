// Package metrics exposes Prometheus instruments for indexing passes, watcher
// batches and searches. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"vaultgraph/internal/indexer"
)

const namespace = "vaultgraph"

// Pass statuses.
const (
	PassCompleted = "completed"
	PassAborted   = "aborted"
	PassFailed    = "failed"
)

// Watch batch kinds.
const (
	BatchIncremental = "incremental"
	BatchFullPass    = "full_pass"
)

// Metrics holds the collectors registered for one process.
type Metrics struct {
	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	documents      *prometheus.CounterVec
	searchLatency  *prometheus.HistogramVec
	watchBatches   *prometheus.CounterVec
	lastPassUnixTS prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_passes_total",
			Help:      "Reindex passes by final status",
		}, []string{"status"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "index_pass_duration_seconds",
			Help:      "Wall time of reindex passes",
			Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "index_documents_total",
			Help:      "Documents processed by reindex passes, by outcome",
		}, []string{"outcome"}),
		searchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Latency of search requests",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode", "status"}),
		watchBatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "watch_batches_total",
			Help:      "File watcher change batches by how they were applied",
		}, []string{"kind"}),
		lastPassUnixTS: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "index_last_pass_timestamp_seconds",
			Help:      "Start time of the most recent finished pass",
		}),
	}

	reg.MustRegister(
		m.passes,
		m.passDuration,
		m.documents,
		m.searchLatency,
		m.watchBatches,
		m.lastPassUnixTS,
	)
	return m
}

// ObservePass records the outcome of one reindex pass. Joiners of a shared
// pass are not counted again.
func (m *Metrics) ObservePass(report *indexer.IndexReport, err error) {
	if m == nil {
		return
	}
	if report == nil {
		if err != nil {
			m.passes.WithLabelValues(PassFailed).Inc()
		}
		return
	}
	if report.Shared {
		return
	}

	status := PassCompleted
	switch {
	case err != nil:
		status = PassFailed
	case report.Aborted:
		status = PassAborted
	}
	m.passes.WithLabelValues(status).Inc()
	m.passDuration.Observe(report.Duration.Seconds())
	m.lastPassUnixTS.Set(float64(report.StartedAt.Unix()))

	m.documents.WithLabelValues(string(indexer.OutcomeUnchanged)).Add(float64(report.Unchanged))
	m.documents.WithLabelValues(string(indexer.OutcomeReindexed)).Add(float64(report.Reindexed))
	m.documents.WithLabelValues(string(indexer.OutcomeFailed)).Add(float64(report.Failed))
	m.documents.WithLabelValues(string(indexer.OutcomeRemoved)).Add(float64(report.Removed))
}

// ObserveSearch records the latency of one search.
func (m *Metrics) ObserveSearch(mode string, d time.Duration, err error) {
	if m == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	m.searchLatency.WithLabelValues(mode, status).Observe(d.Seconds())
}

// ObserveWatchBatch counts one watcher batch applied as kind.
func (m *Metrics) ObserveWatchBatch(kind string) {
	if m == nil {
		return
	}
	m.watchBatches.WithLabelValues(kind).Inc()
}
