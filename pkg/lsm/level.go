package lsm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

func levelDir(dataDir string, level int) string {
	return filepath.Join(dataDir, fmt.Sprintf("L%d", level))
}

// sstFileName renders a monotonic-nanosecond timestamp so that
// lexicographic filename order equals temporal order.
func sstFileName(nanos int64) string {
	return fmt.Sprintf("%020d.sst", nanos)
}

// loadLevels rescans dataDir/L0, L1, ... and returns, per level, the SST
// file paths sorted newest-first (reverse lexicographic). The level count
// grows dynamically: the scan stops at the first level directory that does
// not exist.
func loadLevels(dataDir string) ([][]string, error) {
	var levels [][]string
	for level := 0; ; level++ {
		dir := levelDir(dataDir, level)
		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("lsm: read %s: %w", dir, err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), ".sst") {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)
		for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
			names[i], names[j] = names[j], names[i]
		}

		paths := make([]string, len(names))
		for i, n := range names {
			paths[i] = filepath.Join(dir, n)
		}
		levels = append(levels, paths)
	}
	return levels, nil
}
