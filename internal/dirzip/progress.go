package dirzip

import "time"

// Progress holds the counters the streaming loop consults for flow control
// and resource sampling. It belongs to a single transfer.
type Progress struct {
	SinceEntryFlush    int64
	SinceSinkFlush     int64
	SinceResourceCheck int64
	LastResourceCheck  time.Time
	FilesProcessed     int
}

// add records n source bytes fed to the encoder.
func (p *Progress) add(n int64) {
	p.SinceEntryFlush += n
	p.SinceSinkFlush += n
	p.SinceResourceCheck += n
}

// Stats summarizes one encode pass.
type Stats struct {
	Files          int
	BytesRead      int64 // source bytes
	BytesWritten   int64 // archive bytes accepted by the sink
	EntryFlushes   int
	SinkFlushes    int
	ResourceChecks int
	Reclaims       int
}
