package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initLSMMetrics() {
	r.LSMPutsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_lsm_puts_total",
			Help: "Total number of single-record puts into L0",
		},
	)

	r.LSMGetsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_lsm_gets_total",
			Help: "Total number of point lookups across WAL and levels",
		},
	)

	r.LSMCompactionsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "redka_lsm_compactions_total",
			Help: "Total number of compactions performed, by source level",
		},
		[]string{"level"},
	)

	r.LSMSSTablesTotal = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "redka_lsm_sstables",
			Help: "Current number of SST files, by level",
		},
		[]string{"level"},
	)

	r.LSMCompactionSeconds = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redka_lsm_compaction_seconds",
			Help:    "Time spent compacting a level",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		},
		[]string{"level"},
	)
}
