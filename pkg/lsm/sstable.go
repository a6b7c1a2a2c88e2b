package lsm

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/dd0wney/redka/pkg/mmapfile"
	"github.com/dd0wney/redka/pkg/pools"
	"github.com/dd0wney/redka/pkg/record"
)

// KeyedEntry is one (key, fields) pair as written to or read from an SST.
type KeyedEntry struct {
	Key    string
	Fields record.Record
}

// WriteSST writes entries, which must already be sorted ascending and
// unique by key, as a single immutable SST file at path.
func WriteSST(path string, entries []KeyedEntry) error {
	for i := 1; i < len(entries); i++ {
		if entries[i].Key <= entries[i-1].Key {
			return fmt.Errorf("lsm: WriteSST requires strictly increasing keys, got %q after %q", entries[i].Key, entries[i-1].Key)
		}
	}

	payloads := make([][]byte, len(entries))
	dataOffsets := make([]uint64, len(entries))
	dataLengths := make([]uint32, len(entries))

	size := int64(sstHeaderSize)
	for i, e := range entries {
		keyBytes := []byte(e.Key)
		fieldsBytes := []byte(record.SerializeFields(e.Fields))
		totalLen := uint32(len(keyBytes) + len(fieldsBytes))

		buf := pools.GetBytes(4 + len(keyBytes) + len(fieldsBytes))
		buf = binary.LittleEndian.AppendUint32(buf, totalLen)
		buf = append(buf, keyBytes...)
		buf = append(buf, fieldsBytes...)

		payloads[i] = buf
		dataOffsets[i] = uint64(size)
		dataLengths[i] = uint32(len(buf))
		size += int64(len(buf))
	}

	indexOffset := uint64(size)
	size += int64(len(entries)) * sstIndexEntrySize

	f, err := mmapfile.Open(path)
	if err != nil {
		return fmt.Errorf("lsm: open %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Resize(size); err != nil {
		return fmt.Errorf("lsm: resize %s: %w", path, err)
	}

	header := sstHeader{EntryCount: uint32(len(entries)), IndexOffset: indexOffset}
	headerBuf := make([]byte, 0, sstHeaderSize)
	headerBuf = binary.LittleEndian.AppendUint32(headerBuf, header.EntryCount)
	headerBuf = binary.LittleEndian.AppendUint64(headerBuf, header.IndexOffset)
	if err := f.WriteAt(headerBuf, 0); err != nil {
		return fmt.Errorf("lsm: write header: %w", err)
	}

	for i, buf := range payloads {
		if err := f.WriteAt(buf, int64(dataOffsets[i])); err != nil {
			return fmt.Errorf("lsm: write payload %d: %w", i, err)
		}
		pools.PutBytes(buf)
	}

	footer := make([]byte, 0, len(entries)*sstIndexEntrySize)
	for i, e := range entries {
		footer = binary.LittleEndian.AppendUint32(footer, uint32(len(e.Key)))
		footer = binary.LittleEndian.AppendUint64(footer, dataOffsets[i])
		footer = binary.LittleEndian.AppendUint32(footer, dataLengths[i])
	}
	if err := f.WriteAt(footer, int64(indexOffset)); err != nil {
		return fmt.Errorf("lsm: write index footer: %w", err)
	}

	return f.Sync()
}

// SSTable is a memory-mapped, read-only view over an immutable SST file,
// with its key index fully materialized in memory.
type SSTable struct {
	Path  string
	file  *mmapfile.File
	index []indexRecord
}

// OpenSST maps path and loads its index. Malformed structural fields
// (bad index bounds, zero entry count) cause OpenSST to fail outright;
// malformed individual entries are skipped, per §4.3.1's "defensive read"
// rule.
func OpenSST(path string) (*SSTable, error) {
	f, err := mmapfile.Open(path)
	if err != nil {
		return nil, fmt.Errorf("lsm: open %s: %w", path, err)
	}

	data := f.Data()
	if int64(len(data)) < sstHeaderSize {
		f.Close()
		return nil, fmt.Errorf("lsm: %s: file too small for header", path)
	}

	entryCount := binary.LittleEndian.Uint32(data[0:4])
	indexOffset := binary.LittleEndian.Uint64(data[4:12])

	if entryCount == 0 {
		f.Close()
		return nil, fmt.Errorf("lsm: %s: entry_count is 0", path)
	}
	footerSize := uint64(entryCount) * sstIndexEntrySize
	if indexOffset+footerSize > uint64(len(data)) {
		f.Close()
		return nil, fmt.Errorf("lsm: %s: index footer out of bounds", path)
	}

	index := make([]indexRecord, 0, entryCount)
	for i := uint32(0); i < entryCount; i++ {
		off := indexOffset + uint64(i)*sstIndexEntrySize
		entry := sstIndexEntry{
			KeyLength:  binary.LittleEndian.Uint32(data[off : off+4]),
			DataOffset: binary.LittleEndian.Uint64(data[off+4 : off+12]),
			DataLength: binary.LittleEndian.Uint32(data[off+12 : off+16]),
		}

		if entry.DataOffset+uint64(entry.DataLength) > uint64(len(data)) {
			continue
		}
		if entry.DataLength < 4+entry.KeyLength {
			continue
		}
		keyStart := entry.DataOffset + 4
		key := make([]byte, entry.KeyLength)
		copy(key, data[keyStart:keyStart+uint64(entry.KeyLength)])

		index = append(index, indexRecord{
			Key:        key,
			DataOffset: entry.DataOffset,
			DataLength: entry.DataLength,
		})
	}

	return &SSTable{Path: path, file: f, index: index}, nil
}

// Close unmaps the file.
func (s *SSTable) Close() error {
	return s.file.Close()
}

// Get performs a binary search over the in-memory index and, on a hit,
// parses and returns the fields for key.
func (s *SSTable) Get(key string) (record.Record, bool) {
	keyBytes := []byte(key)
	i := sort.Search(len(s.index), func(i int) bool {
		return bytes.Compare(s.index[i].Key, keyBytes) >= 0
	})
	if i >= len(s.index) || !bytes.Equal(s.index[i].Key, keyBytes) {
		return nil, false
	}
	return s.decode(s.index[i]), true
}

// AllEntries returns every entry in the file in on-disk (ascending key)
// order, for compaction's merge pass.
func (s *SSTable) AllEntries() []KeyedEntry {
	out := make([]KeyedEntry, 0, len(s.index))
	for _, rec := range s.index {
		out = append(out, KeyedEntry{Key: string(rec.Key), Fields: s.decode(rec)})
	}
	return out
}

func (s *SSTable) decode(rec indexRecord) record.Record {
	data := s.file.Data()
	block := data[rec.DataOffset : rec.DataOffset+uint64(rec.DataLength)]
	totalLen := binary.LittleEndian.Uint32(block[0:4])
	keyLen := len(rec.Key)
	if int(totalLen) < keyLen || 4+int(totalLen) > len(block) {
		return record.New()
	}
	fieldsBlob := block[4+keyLen : 4+totalLen]
	return record.Parse(fieldsBlob)
}
