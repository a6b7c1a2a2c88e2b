package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initServerMetrics() {
	r.ServerConnectionsTotal = promauto.With(r.registry).NewCounter(
		prometheus.CounterOpts{
			Name: "redka_server_connections_total",
			Help: "Total number of accepted TCP connections",
		},
	)

	r.ServerActiveConnections = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "redka_server_active_connections",
			Help: "Number of currently open connections",
		},
	)

	r.ServerRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "redka_server_requests_total",
			Help: "Total number of requests handled, by kind and status",
		},
		[]string{"kind", "status"},
	)

	r.ServerRequestSeconds = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "redka_server_request_seconds",
			Help:    "Request handling latency, by kind",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
		},
		[]string{"kind"},
	)

	r.ServerErrorsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "redka_server_errors_total",
			Help: "Total number of protocol-level errors, by status byte",
		},
		[]string{"status"},
	)

	r.UptimeSeconds = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "redka_uptime_seconds",
			Help: "Time since the server started, in seconds",
		},
	)

	r.GoRoutines = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "redka_goroutines",
			Help: "Number of goroutines",
		},
	)

	r.MemoryAllocBytes = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "redka_memory_alloc_bytes",
			Help: "Bytes of allocated heap objects",
		},
	)
}
