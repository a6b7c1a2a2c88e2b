package lsm

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dd0wney/redka/pkg/record"
)

func TestWriteAndOpenSSTRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.sst")

	entries := []KeyedEntry{
		{Key: "a", Fields: record.Parse([]byte(`name:"Alice"`))},
		{Key: "b", Fields: record.Parse([]byte(`name:"Bob" age@2:30`))},
		{Key: "c", Fields: record.New()},
	}
	if err := WriteSST(path, entries); err != nil {
		t.Fatalf("write: %v", err)
	}

	sst, err := OpenSST(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer sst.Close()

	got, ok := sst.Get("b")
	if !ok {
		t.Fatalf("expected key b to be found")
	}
	if got["name"].Value != "Bob" || got["age"].Version != 2 {
		t.Fatalf("unexpected fields: %+v", got)
	}

	if _, ok := sst.Get("missing"); ok {
		t.Fatalf("expected missing key to not be found")
	}

	all := sst.AllEntries()
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}
	for i, want := range []string{"a", "b", "c"} {
		if all[i].Key != want {
			t.Fatalf("expected ascending key order, entry %d = %q", i, all[i].Key)
		}
	}
}

func TestWriteSSTRejectsUnsortedKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.sst")

	entries := []KeyedEntry{
		{Key: "b", Fields: record.New()},
		{Key: "a", Fields: record.New()},
	}
	if err := WriteSST(path, entries); err == nil {
		t.Fatalf("expected error for out-of-order keys")
	}
}

func TestOpenSSTRejectsEmptyFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "0.sst")

	entries := []KeyedEntry{{Key: "a", Fields: record.New()}}
	if err := WriteSST(path, entries); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Corrupt the header to claim zero entries.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	data[0], data[1], data[2], data[3] = 0, 0, 0, 0
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := OpenSST(path); err == nil {
		t.Fatalf("expected error opening SST with entry_count 0")
	}
}
