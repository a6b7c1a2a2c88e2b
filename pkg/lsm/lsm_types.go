// Package lsm implements the on-disk log-structured merge tree: SST binary
// format, per-level directory layout, size-tiered leveled compaction, and
// point lookups across the whole level set.
package lsm

// LevelBaseSize is the LEVEL_BASE_SIZE constant: compaction from level l to
// l+1 triggers once level l holds at least LevelBaseSize * 10^l distinct
// keys.
const LevelBaseSize = 10

// sstHeader is the fixed-size file header, written and read with
// encoding/binary so no Go struct padding leaks into the on-disk layout.
type sstHeader struct {
	EntryCount  uint32
	IndexOffset uint64
}

const sstHeaderSize = 4 + 8

// sstIndexEntry is one footer entry. The key itself is not stored in the
// footer; key_length says how many bytes at the start of the referenced
// payload (after its own 4-byte total_len prefix) belong to the key. The
// reader recovers the actual key bytes once, at load time, and keeps them
// in memory for binary search.
type sstIndexEntry struct {
	KeyLength  uint32
	DataOffset uint64
	DataLength uint32
}

const sstIndexEntrySize = 4 + 8 + 4

// indexRecord is the in-memory, load-time expansion of an sstIndexEntry: the
// key bytes plus the payload window they were read from.
type indexRecord struct {
	Key        []byte
	DataOffset uint64
	DataLength uint32
}
