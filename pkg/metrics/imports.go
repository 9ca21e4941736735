package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// ImportMetrics records catalog import chunk outcomes.
type ImportMetrics struct {
	rows     *prometheus.CounterVec
	chunks   *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewImportMetrics registers the import metrics on the provided registerer.
func NewImportMetrics(reg prometheus.Registerer) *ImportMetrics {
	if reg == nil {
		return &ImportMetrics{}
	}
	rows := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_rows_total",
		Help: "Catalog import rows by outcome.",
	}, []string{"outcome"})
	chunks := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "import_chunks_total",
		Help: "Catalog import chunks by result.",
	}, []string{"result"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "import_chunk_duration_seconds",
		Help:    "Time spent validating and upserting one import chunk.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(rows, chunks, duration)
	return &ImportMetrics{rows: rows, chunks: chunks, duration: duration}
}

// ObserveChunk records one processed chunk.
func (m *ImportMetrics) ObserveChunk(processed, successful, failed int, persisted bool, took time.Duration) {
	if m == nil || m.rows == nil {
		return
	}
	m.rows.WithLabelValues("processed").Add(float64(processed))
	m.rows.WithLabelValues("successful").Add(float64(successful))
	m.rows.WithLabelValues("failed").Add(float64(failed))
	result := "persisted"
	if !persisted {
		result = "store_failed"
	}
	m.chunks.WithLabelValues(result).Inc()
	m.duration.Observe(took.Seconds())
}
