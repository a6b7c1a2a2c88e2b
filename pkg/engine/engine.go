// Package engine is the explicit value the source's global db/wal_log/
// recordIdToOffset module state collapses into (§9 Design Notes): one
// struct owning the WAL and the LSM engine, constructed once at startup and
// handed to every per-connection task.
package engine

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/dd0wney/redka/pkg/config"
	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/lsm"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/record"
	"github.com/dd0wney/redka/pkg/wal"
)

// Engine is the storage core: Create/Update append to the WAL, Read merges
// the WAL's view of an id with the LSM's, newest (WAL) wins any tie.
type Engine struct {
	wal *wal.WAL
	lsm *lsm.Engine

	logger  logging.Logger
	metrics *metrics.Registry
}

// Open wires a WAL and an LSM engine together under cfg.DataDir. The WAL's
// rollover hands its batch straight to the LSM engine's L0 flush.
func Open(cfg config.Config, logger logging.Logger, reg *metrics.Registry) (*Engine, error) {
	lsmEngine, err := lsm.Open(filepath.Join(cfg.DataDir, "lsm_db"), logger, reg)
	if err != nil {
		return nil, fmt.Errorf("engine: open lsm: %w", err)
	}

	walLog, err := wal.Open(filepath.Join(cfg.DataDir, "wal.log"), lsmEngine.FlushBatchToL0, logger, reg)
	if err != nil {
		return nil, fmt.Errorf("engine: open wal: %w", err)
	}

	return &Engine{wal: walLog, lsm: lsmEngine, logger: logger, metrics: reg}, nil
}

// Create allocates a fresh id, appends fields under it, and returns the id.
func (e *Engine) Create(fields record.Record) (string, error) {
	id := uuid.New().String()
	if err := e.wal.Append(id, fields); err != nil {
		return "", fmt.Errorf("engine: create: %w", err)
	}
	return id, nil
}

// Update appends fields under an existing id. There is no existence check:
// an update to an id nothing has ever written simply creates it, matching
// the WAL's append-only, id-agnostic semantics.
func (e *Engine) Update(id string, fields record.Record) error {
	if err := e.wal.Append(id, fields); err != nil {
		return fmt.Errorf("engine: update %s: %w", id, err)
	}
	return nil
}

// Read merges the LSM's view of id (older, already-compacted writes) with
// the WAL's view (newer, not yet flushed), the WAL winning any field-version
// tie. ok is false only when id appears in neither store.
func (e *Engine) Read(id string) (record.Record, bool) {
	fromWAL := e.wal.ReadByID(id)
	fromLSM, foundInLSM := e.lsm.Get(id)

	if !foundInLSM && len(fromWAL) == 0 {
		return nil, false
	}
	return record.Merge(fromLSM, fromWAL), true
}

// Close releases the WAL's mapped file. The LSM engine holds no persistent
// file handles between calls.
func (e *Engine) Close() error {
	return e.wal.Close()
}
