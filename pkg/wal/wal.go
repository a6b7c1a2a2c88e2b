// Package wal implements the write-ahead log: an append-only, mmap-backed
// text file of `{@<id> <fields>}` lines, plus the in-memory offset index
// that lets a point lookup avoid scanning the whole file.
package wal

import (
	"bytes"
	"fmt"
	"math"
	"sync"

	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/mmapfile"
	"github.com/dd0wney/redka/pkg/record"
)

// MaxSize is WAL_MAX_SIZE: the logical size at or above which the next
// append triggers a flush-and-truncate.
const MaxSize = 4 * (1 << 30)

// numSegments is the number of live physical writes an id may accumulate
// before consolidation.
const numSegments = 4

// sentinelOffset marks an unused index slot.
const sentinelOffset = math.MaxUint64

// segment is a (offset, length) pointer to one physical entry in the file.
type segment struct {
	offset uint64
	length uint64
}

var emptySegment = segment{offset: sentinelOffset, length: sentinelOffset}

// FlushFunc hands a fully-merged batch of (id, record) pairs to the LSM
// engine when the WAL rolls over. It is injected rather than imported
// directly, since the LSM engine in turn depends on nothing from wal.
type FlushFunc func(batch map[string]record.Record) error

// WAL is a single append-only log file plus its in-memory offset index.
// The mutex exists for defensive API safety; per §5 of the design the whole
// engine runs on a single executor thread, so it is never contended.
type WAL struct {
	mu    sync.Mutex
	file  *mmapfile.File
	tail  int64
	index map[string][numSegments]segment

	flush   FlushFunc
	logger  logging.Logger
	metrics *metrics.Registry
}

// Open opens (or creates) the WAL file at path and replays it to rebuild
// the in-memory index.
func Open(path string, flush FlushFunc, logger logging.Logger, reg *metrics.Registry) (*WAL, error) {
	f, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	w := &WAL{
		file:    f,
		index:   make(map[string][numSegments]segment),
		flush:   flush,
		logger:  logger,
		metrics: reg,
	}
	w.recover()

	w.logger.Info("wal opened", logging.Path(path), logging.Count(len(w.index)))
	return w, nil
}

// recover replays entries from offset 0 until it hits a line that fails to
// parse (including the zero-padding beyond the true tail), rebuilding tail
// and index. This is the "reloading the WAL index by scanning existing WAL
// lines" recovery path from §7.
func (w *WAL) recover() {
	data := w.file.Data()
	var tail int64
	for tail < int64(len(data)) {
		rest := data[tail:]
		nl := bytes.IndexByte(rest, '\n')
		if nl < 0 {
			break
		}
		line := rest[:nl]
		if len(line) == 0 {
			break
		}
		id, _, ok := record.ParseKeyed(line)
		if !ok {
			break
		}
		length := int64(nl) + 1
		w.pushSegment(id, uint64(tail), uint64(length))
		tail += length
	}
	w.tail = tail
}

// pushSegment records a physical write for id during recovery. A log
// written by this engine is always already consolidated to at most 4 live
// segments per id, so the "slide the window" branch below is unreachable in
// practice; it exists only so recovery degrades gracefully instead of
// panicking on an index that turns out fuller than expected.
func (w *WAL) pushSegment(id string, offset, length uint64) {
	segs := w.index[id]
	if _, ok := w.index[id]; !ok {
		segs = newSegmentSet(emptySegment)
	}
	for i := 0; i < numSegments; i++ {
		if segs[i] == emptySegment {
			segs[i] = segment{offset: offset, length: length}
			w.index[id] = segs
			return
		}
	}
	copy(segs[:], segs[1:])
	segs[numSegments-1] = segment{offset: offset, length: length}
	w.index[id] = segs
}

func newSegmentSet(first segment) [numSegments]segment {
	set := [numSegments]segment{emptySegment, emptySegment, emptySegment, emptySegment}
	set[0] = first
	return set
}

// full reports whether every slot for id is occupied.
func full(segs [numSegments]segment) bool {
	for _, s := range segs {
		if s == emptySegment {
			return false
		}
	}
	return true
}

// Append writes a new entry for id, consolidating first if the id's index
// is already full, and rolling the whole WAL over to the LSM engine first
// if the file has already grown past MaxSize.
func (w *WAL) Append(id string, fields record.Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.tail >= MaxSize {
		if err := w.truncateAndFlushLocked(); err != nil {
			return err
		}
	}

	segs, ok := w.index[id]
	if ok && full(segs) {
		return w.consolidateLocked(id, segs, fields)
	}

	line := []byte(record.FormatKeyed(id, fields) + "\n")
	offset, err := w.appendLineLocked(line)
	if err != nil {
		return err
	}

	if !ok {
		segs = newSegmentSet(segment{offset: uint64(offset), length: uint64(len(line))})
	} else {
		for i := 0; i < numSegments; i++ {
			if segs[i] == emptySegment {
				segs[i] = segment{offset: uint64(offset), length: uint64(len(line))}
				break
			}
		}
	}
	w.index[id] = segs

	w.metrics.RecordWALAppend(len(line), w.tail)
	return nil
}

// consolidateLocked merges the 4 live segments for id with the incoming
// write, per §4.2: the incoming write is the right operand of the fold, so
// it wins any field-version tie against the existing entries.
func (w *WAL) consolidateLocked(id string, segs [numSegments]segment, incoming record.Record) error {
	merged := record.New()
	for _, s := range segs {
		merged = record.Merge(merged, w.readSegment(s))
	}
	merged = record.Merge(merged, incoming)

	line := []byte(record.FormatKeyed(id, merged) + "\n")
	offset, err := w.appendLineLocked(line)
	if err != nil {
		return err
	}

	w.index[id] = newSegmentSet(segment{offset: uint64(offset), length: uint64(len(line))})

	w.metrics.RecordWALConsolidation()
	w.metrics.RecordWALAppend(len(line), w.tail)
	w.logger.Debug("wal consolidated", logging.RecordID(id))
	return nil
}

// appendLineLocked grows the mapping in doubling steps past the initial
// preallocation so line fits at the current logical tail, writes it,
// advances the tail, and syncs.
func (w *WAL) appendLineLocked(line []byte) (offset int64, err error) {
	offset = w.tail
	needed := offset + int64(len(line))

	if needed > w.file.Size() {
		newCap := w.file.Size()
		if newCap == 0 {
			newCap = 4096
		}
		for newCap < needed {
			newCap *= 2
		}
		if err := w.file.Resize(newCap); err != nil {
			return 0, fmt.Errorf("wal: grow: %w", err)
		}
	}

	if err := w.file.WriteAt(line, offset); err != nil {
		return 0, fmt.Errorf("wal: write: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return 0, fmt.Errorf("wal: sync: %w", err)
	}

	w.tail = needed
	return offset, nil
}

// readSegment parses the record fields at the given physical segment.
func (w *WAL) readSegment(s segment) record.Record {
	if s == emptySegment {
		return record.New()
	}
	data := w.file.Data()[s.offset : s.offset+s.length]
	_, fields, ok := record.ParseKeyed(bytes.TrimRight(data, "\n"))
	if !ok {
		return record.New()
	}
	return fields
}

// ReadByID gathers every live segment for id and left-folds them with
// merge, oldest first, so the newest physical write wins ties.
func (w *WAL) ReadByID(id string) record.Record {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.readByIDLocked(id)
}

func (w *WAL) readByIDLocked(id string) record.Record {
	segs, ok := w.index[id]
	if !ok {
		return record.New()
	}

	out := record.New()
	for _, s := range segs {
		if s == emptySegment {
			continue
		}
		out = record.Merge(out, w.readSegment(s))
	}
	return out
}

// TruncateAndFlush forces an immediate rollover regardless of size; the
// normal path is the implicit check at the top of Append.
func (w *WAL) TruncateAndFlush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.truncateAndFlushLocked()
}

func (w *WAL) truncateAndFlushLocked() error {
	batch := make(map[string]record.Record, len(w.index))
	for id := range w.index {
		batch[id] = w.readByIDLocked(id)
	}

	if len(batch) > 0 {
		if err := w.flush(batch); err != nil {
			return fmt.Errorf("wal: flush to lsm: %w", err)
		}
	}

	if err := w.file.Truncate(); err != nil {
		return fmt.Errorf("wal: truncate: %w", err)
	}
	w.tail = 0
	w.index = make(map[string][numSegments]segment)

	w.metrics.RecordWALFlush()
	w.logger.Info("wal flushed to lsm", logging.Count(len(batch)))
	return nil
}

// Close unmaps and closes the underlying mapped file. It does not sync;
// every append has already been synced.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
