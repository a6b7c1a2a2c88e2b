// Package mmapfile provides a writable memory-mapped file, the storage
// primitive underneath both the write-ahead log and the SST reader/writer.
// Growth is explicit: callers resize the mapping themselves rather than
// relying on demand paging past the current file length.
package mmapfile

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// initialSize is the size a freshly created file is preallocated to, and the
// size a truncated file is reset to.
const initialSize = 4096

// File is a memory-mapped file opened for reading and writing. It is not
// safe for concurrent use; callers serialize access (the WAL and LSM engine
// each own their files from a single goroutine).
type File struct {
	f    *os.File
	data []byte
}

// Open opens path for read-write mmap access, creating it (and
// preallocating it to the initial size) if it does not exist.
func Open(path string) (*File, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, fmt.Errorf("mmapfile: open %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: stat %s: %w", path, err)
	}

	size := info.Size()
	if size == 0 {
		size = initialSize
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("mmapfile: preallocate %s: %w", path, err)
		}
	}

	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("mmapfile: mmap %s: %w", path, err)
	}

	return &File{f: f, data: data}, nil
}

// Data returns the mapped region. It is valid only until the next call to
// Resize or Truncate, both of which remap the file.
func (m *File) Data() []byte {
	return m.data
}

// Size returns the current mapped length.
func (m *File) Size() int64 {
	return int64(len(m.data))
}

// Resize unmaps the file, extends or shrinks the backing file to newSize
// with ftruncate, and remaps it. The contents of the previously mapped
// region up to min(old, new) size are preserved by the file system.
func (m *File) Resize(newSize int64) error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	m.data = nil

	if err := m.f.Truncate(newSize); err != nil {
		return fmt.Errorf("mmapfile: truncate: %w", err)
	}

	data, err := unix.Mmap(int(m.f.Fd()), 0, int(newSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: remap: %w", err)
	}
	m.data = data
	return nil
}

// Append grows the mapping by len(p) and copies p into the newly available
// tail, returning the offset it was written at. The caller is responsible
// for calling Sync afterward if durability is required before the next
// operation.
func (m *File) Append(p []byte) (offset int64, err error) {
	offset = m.Size()
	if err := m.Resize(offset + int64(len(p))); err != nil {
		return 0, err
	}
	copy(m.data[offset:], p)
	return offset, nil
}

// WriteAt copies p into the mapping at off, which must lie within the
// current mapped length. It does not grow the mapping; callers needing more
// room must Resize first.
func (m *File) WriteAt(p []byte, off int64) error {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return fmt.Errorf("mmapfile: write at %d, len %d exceeds mapped size %d", off, len(p), len(m.data))
	}
	copy(m.data[off:], p)
	return nil
}

// Sync flushes the mapped pages to disk with msync(MS_SYNC).
func (m *File) Sync() error {
	if len(m.data) == 0 {
		return nil
	}
	if err := unix.Msync(m.data, unix.MS_SYNC); err != nil {
		return fmt.Errorf("mmapfile: msync: %w", err)
	}
	return nil
}

// Truncate discards all contents and resets the file to the initial
// preallocated size, matching the original engine's log-rotation behavior.
func (m *File) Truncate() error {
	if err := unix.Munmap(m.data); err != nil {
		return fmt.Errorf("mmapfile: munmap: %w", err)
	}
	m.data = nil

	if err := m.f.Truncate(0); err != nil {
		return fmt.Errorf("mmapfile: truncate to 0: %w", err)
	}
	if err := m.f.Truncate(initialSize); err != nil {
		return fmt.Errorf("mmapfile: reallocate: %w", err)
	}

	data, err := unix.Mmap(int(m.f.Fd()), 0, initialSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return fmt.Errorf("mmapfile: remap after truncate: %w", err)
	}
	m.data = data
	return nil
}

// Close unmaps and closes the underlying file.
func (m *File) Close() error {
	if m.data != nil {
		if err := unix.Munmap(m.data); err != nil {
			return fmt.Errorf("mmapfile: munmap on close: %w", err)
		}
		m.data = nil
	}
	return m.f.Close()
}
