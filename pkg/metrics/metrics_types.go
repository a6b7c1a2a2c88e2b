package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics exported by the storage engine and the server.
type Registry struct {
	// WAL metrics
	WALAppendsTotal        prometheus.Counter
	WALConsolidationsTotal prometheus.Counter
	WALFlushesTotal        prometheus.Counter
	WALBytesWritten        prometheus.Counter
	WALSizeBytes           prometheus.Gauge

	// LSM metrics
	LSMPutsTotal        prometheus.Counter
	LSMGetsTotal        prometheus.Counter
	LSMCompactionsTotal *prometheus.CounterVec
	LSMSSTablesTotal    *prometheus.GaugeVec
	LSMCompactionSeconds *prometheus.HistogramVec

	// Server metrics
	ServerConnectionsTotal  prometheus.Counter
	ServerActiveConnections prometheus.Gauge
	ServerRequestsTotal     *prometheus.CounterVec
	ServerRequestSeconds    *prometheus.HistogramVec
	ServerErrorsTotal       *prometheus.CounterVec

	// Process metrics
	UptimeSeconds    prometheus.Gauge
	GoRoutines       prometheus.Gauge
	MemoryAllocBytes prometheus.Gauge

	registry *prometheus.Registry
	mu       sync.RWMutex
}

var (
	defaultRegistry *Registry
	once            sync.Once
)

// DefaultRegistry returns the global metrics registry.
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		registry: reg,
	}

	r.initWALMetrics()
	r.initLSMMetrics()
	r.initServerMetrics()

	return r
}

// PrometheusRegistry returns the underlying Prometheus registry, for wiring
// into an HTTP /metrics handler.
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.registry
}
