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

// levelThreshold is 10 * 10^level, the distinct-key count at which level
// triggers a compaction into level+1.
func levelThreshold(level int) int {
	threshold := LevelBaseSize
	for i := 0; i < level; i++ {
		threshold *= 10
	}
	return threshold
}

// compact merges every SST at level, and if the merged key count reaches
// levelThreshold(level), materializes a new SST at level+1, deletes the
// participating files, and recurses into level+1. It is a no-op if level
// has no files or hasn't reached threshold.
func compact(dataDir string, level int, logger logging.Logger, reg *metrics.Registry) error {
	start := time.Now()

	levels, err := loadLevels(dataDir)
	if err != nil {
		return err
	}
	if level >= len(levels) || len(levels[level]) == 0 {
		return nil
	}

	merged := make(map[string]record.Record)
	participating := make([]string, 0, len(levels[level]))
	for _, path := range levels[level] { // already newest-first
		sst, err := OpenSST(path)
		if err != nil {
			return fmt.Errorf("lsm: compact: open %s: %w", path, err)
		}
		for _, e := range sst.AllEntries() {
			if existing, ok := merged[e.Key]; ok {
				// existing came from a newer file (visited earlier); it is
				// the left operand, the older incoming entry the right.
				merged[e.Key] = record.Merge(existing, e.Fields)
			} else {
				merged[e.Key] = e.Fields
			}
		}
		sst.Close()
		participating = append(participating, path)
	}

	if len(merged) < levelThreshold(level) {
		return nil
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	entries := make([]KeyedEntry, len(keys))
	for i, k := range keys {
		entries[i] = KeyedEntry{Key: k, Fields: merged[k]}
	}

	nextDir := levelDir(dataDir, level+1)
	if err := os.MkdirAll(nextDir, 0755); err != nil {
		return fmt.Errorf("lsm: compact: mkdir %s: %w", nextDir, err)
	}
	newPath := filepath.Join(nextDir, sstFileName(time.Now().UnixNano()))
	if err := WriteSST(newPath, entries); err != nil {
		return fmt.Errorf("lsm: compact: write %s: %w", newPath, err)
	}

	for _, p := range participating {
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("lsm: compact: remove %s: %w", p, err)
		}
	}

	if reg != nil {
		reg.RecordCompaction(level, time.Since(start))
	}
	if logger != nil {
		logger.Info("compacted level",
			logging.LSMLevel(level),
			logging.Count(len(entries)),
			logging.Latency(time.Since(start)),
		)
	}

	return compact(dataDir, level+1, logger, reg)
}
