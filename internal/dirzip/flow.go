package dirzip

import "time"

// Flow control defaults.
const (
	DefaultEntryFlushBytes      int64 = 512 << 10
	DefaultLargeEntryFlushBytes int64 = 4 << 20
	DefaultLargeFileThreshold   int64 = 500_000_000
	DefaultSinkFlushBytes       int64 = 20 << 20
	DefaultSinkFlushFiles             = 20
	DefaultYield                      = time.Millisecond
)

// FlowPolicy decides when buffered output is flushed. Every decision is a
// pure function of the counters passed in; the streaming loop owns the
// counters.
type FlowPolicy struct {
	// EntryFlushBytes is the entry flush threshold for files up to
	// LargeFileThreshold bytes.
	EntryFlushBytes int64
	// LargeEntryFlushBytes is the entry flush threshold for files larger
	// than LargeFileThreshold.
	LargeEntryFlushBytes int64
	LargeFileThreshold   int64

	// SinkFlushBytes is the source volume after which the sink itself is
	// flushed, checked whenever an entry flush happens.
	SinkFlushBytes int64
	// SinkFlushFiles flushes the sink every this many completed files.
	// Zero disables the file cadence.
	SinkFlushFiles int

	// Yield is how long to pause after a volume-triggered sink flush so
	// the destination can drain.
	Yield time.Duration
}

// DefaultFlowPolicy returns the policy tuned for HTTP delivery.
func DefaultFlowPolicy() FlowPolicy {
	return FlowPolicy{
		EntryFlushBytes:      DefaultEntryFlushBytes,
		LargeEntryFlushBytes: DefaultLargeEntryFlushBytes,
		LargeFileThreshold:   DefaultLargeFileThreshold,
		SinkFlushBytes:       DefaultSinkFlushBytes,
		SinkFlushFiles:       DefaultSinkFlushFiles,
		Yield:                DefaultYield,
	}
}

// WithDefaults fills zero byte thresholds from DefaultFlowPolicy.
func (p FlowPolicy) WithDefaults() FlowPolicy {
	d := DefaultFlowPolicy()
	if p.EntryFlushBytes <= 0 {
		p.EntryFlushBytes = d.EntryFlushBytes
	}
	if p.LargeEntryFlushBytes <= 0 {
		p.LargeEntryFlushBytes = d.LargeEntryFlushBytes
	}
	if p.LargeFileThreshold <= 0 {
		p.LargeFileThreshold = d.LargeFileThreshold
	}
	if p.SinkFlushBytes <= 0 {
		p.SinkFlushBytes = d.SinkFlushBytes
	}
	return p
}

// EntryFlushThreshold returns the unflushed-byte threshold for a file of
// the given size.
func (p FlowPolicy) EntryFlushThreshold(fileSize int64) int64 {
	if fileSize > p.LargeFileThreshold {
		return p.LargeEntryFlushBytes
	}
	return p.EntryFlushBytes
}

// ShouldFlushEntry reports whether the entry buffer should be flushed.
func (p FlowPolicy) ShouldFlushEntry(unflushed, fileSize int64) bool {
	return unflushed >= p.EntryFlushThreshold(fileSize)
}

// ShouldFlushSink reports whether enough bytes went by since the last
// sink flush.
func (p FlowPolicy) ShouldFlushSink(sinceSinkFlush int64) bool {
	return sinceSinkFlush >= p.SinkFlushBytes
}

// ShouldFlushSinkAfterFile reports whether completing the filesProcessed-th
// file triggers a sink flush.
func (p FlowPolicy) ShouldFlushSinkAfterFile(filesProcessed int) bool {
	return p.SinkFlushFiles > 0 && filesProcessed > 0 && filesProcessed%p.SinkFlushFiles == 0
}
