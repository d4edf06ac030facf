package dirzip_test

import (
	"testing"

	"dirzip/internal/dirzip"
)

func TestFlowPolicy_EntryFlushThreshold(t *testing.T) {
	p := dirzip.DefaultFlowPolicy()

	tests := []struct {
		name     string
		fileSize int64
		want     int64
	}{
		{"empty file", 0, 512 << 10},
		{"small file", 10 << 20, 512 << 10},
		{"at threshold", 500_000_000, 512 << 10},
		{"just above threshold", 500_000_001, 4 << 20},
		{"huge file", 5 << 30, 4 << 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := p.EntryFlushThreshold(tt.fileSize); got != tt.want {
				t.Errorf("EntryFlushThreshold(%d) = %d, want %d", tt.fileSize, got, tt.want)
			}
		})
	}
}

func TestFlowPolicy_ShouldFlushEntry(t *testing.T) {
	p := dirzip.DefaultFlowPolicy()

	if p.ShouldFlushEntry(512<<10-1, 1000) {
		t.Error("ShouldFlushEntry() = true below the small-file threshold")
	}
	if !p.ShouldFlushEntry(512<<10, 1000) {
		t.Error("ShouldFlushEntry() = false at the small-file threshold")
	}
	if p.ShouldFlushEntry(1<<20, 600_000_000) {
		t.Error("ShouldFlushEntry() = true for a large file below 4 MiB")
	}
	if !p.ShouldFlushEntry(4<<20, 600_000_000) {
		t.Error("ShouldFlushEntry() = false for a large file at 4 MiB")
	}
}

func TestFlowPolicy_ShouldFlushSink(t *testing.T) {
	p := dirzip.DefaultFlowPolicy()

	if p.ShouldFlushSink(20<<20 - 1) {
		t.Error("ShouldFlushSink() = true below 20 MiB")
	}
	if !p.ShouldFlushSink(20 << 20) {
		t.Error("ShouldFlushSink() = false at 20 MiB")
	}
}

func TestFlowPolicy_ShouldFlushSinkAfterFile(t *testing.T) {
	tests := []struct {
		name  string
		every int
		files int
		want  bool
	}{
		{"no files yet", 20, 0, false},
		{"first file", 20, 1, false},
		{"twentieth file", 20, 20, true},
		{"twenty-first file", 20, 21, false},
		{"fortieth file", 20, 40, true},
		{"cadence disabled", 0, 20, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := dirzip.DefaultFlowPolicy()
			p.SinkFlushFiles = tt.every
			if got := p.ShouldFlushSinkAfterFile(tt.files); got != tt.want {
				t.Errorf("ShouldFlushSinkAfterFile(%d) = %v, want %v", tt.files, got, tt.want)
			}
		})
	}
}

func TestFlowPolicy_WithDefaults(t *testing.T) {
	p := dirzip.FlowPolicy{EntryFlushBytes: 1024}.WithDefaults()

	if p.EntryFlushBytes != 1024 {
		t.Errorf("EntryFlushBytes = %d, want 1024", p.EntryFlushBytes)
	}
	if p.LargeEntryFlushBytes != dirzip.DefaultLargeEntryFlushBytes {
		t.Errorf("LargeEntryFlushBytes = %d, want %d", p.LargeEntryFlushBytes, dirzip.DefaultLargeEntryFlushBytes)
	}
	if p.LargeFileThreshold != dirzip.DefaultLargeFileThreshold {
		t.Errorf("LargeFileThreshold = %d, want %d", p.LargeFileThreshold, dirzip.DefaultLargeFileThreshold)
	}
	if p.SinkFlushBytes != dirzip.DefaultSinkFlushBytes {
		t.Errorf("SinkFlushBytes = %d, want %d", p.SinkFlushBytes, dirzip.DefaultSinkFlushBytes)
	}
	if p.SinkFlushFiles != 0 || p.Yield != 0 {
		t.Errorf("SinkFlushFiles = %d, Yield = %v; zero values should be kept", p.SinkFlushFiles, p.Yield)
	}
}
