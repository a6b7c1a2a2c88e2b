package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initWALMetrics() {
	r.WALAppendsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_wal_appends_total",
			Help: "Total number of WAL entries appended",
		},
	)

	r.WALConsolidationsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_wal_consolidations_total",
			Help: "Total number of WAL per-id consolidations (5th write collapsing 4 segments)",
		},
	)

	r.WALFlushesTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_wal_flushes_total",
			Help: "Total number of WAL-to-L0 batch flushes",
		},
	)

	r.WALBytesWritten = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_wal_bytes_written_total",
			Help: "Total bytes appended to the WAL",
		},
	)

	r.WALSizeBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "redka_wal_size_bytes",
			Help: "Current logical size of the WAL file",
		},
	)
}
