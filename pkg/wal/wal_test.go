package wal

import (
	"path/filepath"
	"testing"

	"github.com/dd0wney/redka/pkg/logging"
	"github.com/dd0wney/redka/pkg/metrics"
	"github.com/dd0wney/redka/pkg/record"
)

func newTestWAL(t *testing.T, flush FlushFunc) *WAL {
	t.Helper()
	if flush == nil {
		flush = func(map[string]record.Record) error { return nil }
	}
	dir := t.TempDir()
	w, err := Open(filepath.Join(dir, "wal.log"), flush, logging.NewDefaultLogger(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func TestAppendAndReadByID(t *testing.T) {
	w := newTestWAL(t, nil)

	if err := w.Append("U", record.Parse([]byte(`name:"Alice"`))); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := w.ReadByID("U")
	if got["name"].Value != "Alice" {
		t.Fatalf("unexpected record: %+v", got)
	}
}

func TestReadByIDUnknownIsEmpty(t *testing.T) {
	w := newTestWAL(t, nil)
	got := w.ReadByID("nope")
	if len(got) != 0 {
		t.Fatalf("expected empty record, got %+v", got)
	}
}

// TestConsolidationOnFifthWrite exercises end-to-end scenario 4: five
// updates to the same id, after which the index collapses to one segment
// and the read still reflects all five fields.
func TestConsolidationOnFifthWrite(t *testing.T) {
	w := newTestWAL(t, nil)

	writes := []record.Record{
		record.Parse([]byte(`f1:"1"`)),
		record.Parse([]byte(`f2:"2"`)),
		record.Parse([]byte(`f3:"3"`)),
		record.Parse([]byte(`f4:"4"`)),
		record.Parse([]byte(`f5:"5"`)),
	}
	for _, fields := range writes {
		if err := w.Append("U", fields); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	segs := w.index["U"]
	live := 0
	for _, s := range segs {
		if s != emptySegment {
			live++
		}
	}
	if live != 1 {
		t.Fatalf("expected exactly 1 live segment after consolidation, got %d", live)
	}

	got := w.ReadByID("U")
	for i := 1; i <= 5; i++ {
		name := string(rune('0' + i))
		field := "f" + name
		expected := name
		if got[field].Value != expected {
			t.Fatalf("field %s: expected %q, got %+v", field, expected, got[field])
		}
	}
}

func TestAppendNeverExceedsFourLiveSegmentsBeforeConsolidation(t *testing.T) {
	w := newTestWAL(t, nil)

	for i := 0; i < 4; i++ {
		if err := w.Append("U", record.Parse([]byte(`x:"v"`))); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
		segs := w.index["U"]
		live := 0
		for _, s := range segs {
			if s != emptySegment {
				live++
			}
		}
		if live != i+1 {
			t.Fatalf("after %d writes expected %d live segments, got %d", i+1, i+1, live)
		}
	}
}

func TestConsolidationTieBreakFavorsIncomingWrite(t *testing.T) {
	w := newTestWAL(t, nil)

	// Four writes at implicit version 1, then a fifth also at version 1:
	// the consolidation fold must let the fifth (incoming, right operand)
	// win the tie.
	for i := 0; i < 4; i++ {
		if err := w.Append("U", record.Parse([]byte(`x:"old"`))); err != nil {
			t.Fatalf("append: %v", err)
		}
	}
	if err := w.Append("U", record.Parse([]byte(`x:"new"`))); err != nil {
		t.Fatalf("append: %v", err)
	}

	got := w.ReadByID("U")
	if got["x"].Value != "new" {
		t.Fatalf("expected consolidation tie to favor incoming write, got %+v", got)
	}
}

func TestTruncateAndFlushHandsBatchToLSMAndClearsIndex(t *testing.T) {
	var flushed map[string]record.Record
	w := newTestWAL(t, func(batch map[string]record.Record) error {
		flushed = batch
		return nil
	})

	if err := w.Append("A", record.Parse([]byte(`x:"1"`))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Append("B", record.Parse([]byte(`y:"2"`))); err != nil {
		t.Fatalf("append: %v", err)
	}

	if err := w.TruncateAndFlush(); err != nil {
		t.Fatalf("truncate and flush: %v", err)
	}

	if len(flushed) != 2 {
		t.Fatalf("expected 2 ids in flushed batch, got %d", len(flushed))
	}
	if flushed["A"]["x"].Value != "1" || flushed["B"]["y"].Value != "2" {
		t.Fatalf("unexpected flushed batch: %+v", flushed)
	}

	if len(w.index) != 0 {
		t.Fatalf("expected index cleared after flush, got %d entries", len(w.index))
	}
	if w.tail != 0 {
		t.Fatalf("expected tail reset to 0, got %d", w.tail)
	}
	if w.ReadByID("A")["x"].Value != "" {
		t.Fatalf("expected A to be gone from the WAL after flush")
	}
}

func TestReopenRecoversIndexFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "wal.log")
	noopFlush := func(map[string]record.Record) error { return nil }

	w, err := Open(path, noopFlush, logging.NewDefaultLogger(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := w.Append("U", record.Parse([]byte(`name:"Alice"`))); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	w2, err := Open(path, noopFlush, logging.NewDefaultLogger(), metrics.NewRegistry())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer w2.Close()

	got := w2.ReadByID("U")
	if got["name"].Value != "Alice" {
		t.Fatalf("expected recovered record, got %+v", got)
	}
}
