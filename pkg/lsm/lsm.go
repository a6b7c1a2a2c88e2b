package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/record"
)

// Engine is the on-disk half of the store: a directory of L0..Ln SST
// levels. It holds no in-memory buffer of unflushed writes — the WAL is
// that buffer — so every Engine method either reads existing SSTs or writes
// a brand new one.
type Engine struct {
	dataDir string
	logger  logging.Logger
	metrics *metrics.Registry
}

// Open prepares dataDir (creating it if necessary) as the root of the level
// directory tree.
func Open(dataDir string, logger logging.Logger, reg *metrics.Registry) (*Engine, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("lsm: mkdir %s: %w", dataDir, err)
	}
	return &Engine{dataDir: dataDir, logger: logger, metrics: reg}, nil
}

// Put wraps a single (key, fields) pair as a one-entry SST in L0, then
// triggers compaction starting at L0.
func (e *Engine) Put(key string, fields record.Record) error {
	if err := e.writeL0([]KeyedEntry{{Key: key, Fields: fields}}); err != nil {
		return err
	}
	e.metrics.LSMPutsTotal.Inc()
	return compact(e.dataDir, 0, e.logger, e.metrics)
}

// FlushBatchToL0 dedupes batch by key (merge is not needed here — the
// caller, the WAL, already hands over one fully-merged record per id),
// sorts ascending by key, writes a single L0 SST, then compacts from L0.
func (e *Engine) FlushBatchToL0(batch map[string]record.Record) error {
	if len(batch) == 0 {
		return nil
	}

	keys := make([]string, 0, len(batch))
	for k := range batch {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]KeyedEntry, len(keys))
	for i, k := range keys {
		entries[i] = KeyedEntry{Key: k, Fields: batch[k]}
	}

	if err := e.writeL0(entries); err != nil {
		return err
	}
	e.logger.Info("flushed wal batch to l0", logging.Count(len(entries)))
	return compact(e.dataDir, 0, e.logger, e.metrics)
}

func (e *Engine) writeL0(entries []KeyedEntry) error {
	dir := levelDir(e.dataDir, 0)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("lsm: mkdir %s: %w", dir, err)
	}
	path := filepath.Join(dir, sstFileName(time.Now().UnixNano()))
	if err := WriteSST(path, entries); err != nil {
		return fmt.Errorf("lsm: write %s: %w", path, err)
	}
	return nil
}

// Get walks every level oldest-first (L0..Ln) and, within a level,
// newest-first, folding every hit into an accumulator (accumulator is the
// left operand, each newly found record the right). Returns ok=false only
// if the key was found in no SST at all.
func (e *Engine) Get(key string) (record.Record, bool) {
	e.metrics.LSMGetsTotal.Inc()

	levels, err := loadLevels(e.dataDir)
	if err != nil {
		e.logger.Error("lsm: load levels", logging.Error(err))
		return nil, false
	}

	acc := record.New()
	found := false
	for level, files := range levels {
		e.metrics.SetSSTableCount(level, len(files))
		for _, path := range files {
			sst, err := OpenSST(path)
			if err != nil {
				e.logger.Warn("lsm: skip unreadable sst", logging.Path(path), logging.Error(err))
				continue
			}
			if fields, ok := sst.Get(key); ok {
				acc = record.Merge(acc, fields)
				found = true
			}
			sst.Close()
		}
	}

	if !found {
		return nil, false
	}
	return acc, true
}
