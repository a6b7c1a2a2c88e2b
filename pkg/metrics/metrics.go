package metrics

import (
	"strconv"
	"time"
)

// RecordWALAppend records a single WAL append of the given byte size.
func (r *Registry) RecordWALAppend(bytesWritten int, walSize int64) {
	r.WALAppendsTotal.Inc()
	r.WALBytesWritten.Add(float64(bytesWritten))
	r.WALSizeBytes.Set(float64(walSize))
}

// RecordWALConsolidation records a WAL per-id consolidation.
func (r *Registry) RecordWALConsolidation() {
	r.WALConsolidationsTotal.Inc()
}

// RecordWALFlush records a WAL-to-L0 batch flush.
func (r *Registry) RecordWALFlush() {
	r.WALFlushesTotal.Inc()
	r.WALSizeBytes.Set(0)
}

// RecordCompaction records a compaction run for the given source level.
func (r *Registry) RecordCompaction(level int, duration time.Duration) {
	lvl := strconv.Itoa(level)
	r.LSMCompactionsTotal.WithLabelValues(lvl).Inc()
	r.LSMCompactionSeconds.WithLabelValues(lvl).Observe(duration.Seconds())
}

// SetSSTableCount sets the current SST file count for a level.
func (r *Registry) SetSSTableCount(level, count int) {
	r.LSMSSTablesTotal.WithLabelValues(strconv.Itoa(level)).Set(float64(count))
}

// RecordRequest records a completed request of the given kind (create/update/read)
// and status (ok, or the protocol status byte returned on error).
func (r *Registry) RecordRequest(kind, status string, duration time.Duration) {
	r.ServerRequestsTotal.WithLabelValues(kind, status).Inc()
	r.ServerRequestSeconds.WithLabelValues(kind).Observe(duration.Seconds())
	if status != "ok" {
		r.ServerErrorsTotal.WithLabelValues(status).Inc()
	}
}

// ConnectionOpened records a newly accepted connection.
func (r *Registry) ConnectionOpened() {
	r.ServerConnectionsTotal.Inc()
	r.ServerActiveConnections.Inc()
}

// ConnectionClosed records a connection that has finished.
func (r *Registry) ConnectionClosed() {
	r.ServerActiveConnections.Dec()
}
