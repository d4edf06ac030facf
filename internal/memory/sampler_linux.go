package memory

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// MemoryInUse returns the resident set size from /proc/self/statm.
func (Sampler) MemoryInUse() (uint64, error) {
	return readRSSFrom("/proc/self/statm", uint64(os.Getpagesize()))
}

// readRSSFrom is the testable version of MemoryInUse.
//
// statm holds page counts: size resident shared text lib data dt.
func readRSSFrom(path string, pageSize uint64) (uint64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading %s: %w", path, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) < 2 {
		return 0, fmt.Errorf("parsing %s: want at least 2 fields, got %d", path, len(fields))
	}
	pages, err := strconv.ParseUint(fields[1], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parsing %s resident pages: %w", path, err)
	}
	return pages * pageSize, nil
}
