package dirzip

import (
	"context"
	"io"
)

// Sink accepts the encoded archive stream.
//
// Flush pushes whatever the sink buffers towards its destination. Sinks
// without buffering implement it as a no-op.
type Sink interface {
	io.Writer
	Flush(ctx context.Context) error
}

// LengthReporter is implemented by sinks that know how many bytes they
// have accepted.
type LengthReporter interface {
	Len() int64
}

// CountingSink discards every byte and records how many it was given.
// Running the encoder against it yields the exact archive length without
// doing any output I/O.
type CountingSink struct {
	n int64
}

var (
	_ Sink           = (*CountingSink)(nil)
	_ LengthReporter = (*CountingSink)(nil)
)

func (c *CountingSink) Write(p []byte) (int, error) {
	c.n += int64(len(p))
	return len(p), nil
}

func (c *CountingSink) Flush(context.Context) error { return nil }

// Len returns the number of bytes written so far.
func (c *CountingSink) Len() int64 { return c.n }

// WriterSink adapts an io.Writer to a Sink. If the writer has a
// Flush() error method it is used for Flush, otherwise Flush is a no-op.
type WriterSink struct {
	w     io.Writer
	flush func() error
	n     int64
}

var (
	_ Sink           = (*WriterSink)(nil)
	_ LengthReporter = (*WriterSink)(nil)
)

// NewWriterSink wraps w.
func NewWriterSink(w io.Writer) *WriterSink {
	s := &WriterSink{w: w}
	if f, ok := w.(interface{ Flush() error }); ok {
		s.flush = f.Flush
	}
	return s
}

// NewFlushingSink wraps w and calls flush on every sink-level flush.
func NewFlushingSink(w io.Writer, flush func() error) *WriterSink {
	return &WriterSink{w: w, flush: flush}
}

func (s *WriterSink) Write(p []byte) (int, error) {
	n, err := s.w.Write(p)
	s.n += int64(n)
	return n, err
}

func (s *WriterSink) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.flush == nil {
		return nil
	}
	return s.flush()
}

// Len returns the number of bytes the underlying writer accepted.
func (s *WriterSink) Len() int64 { return s.n }

// guardedSink forwards writes to a Sink while the context of the
// encoder operation in progress is live, and counts what got through.
type guardedSink struct {
	sink    Sink
	ctx     context.Context // operation in progress; set by Encoder.bind
	written int64
}

func (g *guardedSink) Write(p []byte) (int, error) {
	if g.ctx != nil {
		if err := g.ctx.Err(); err != nil {
			return 0, err
		}
	}
	n, err := g.sink.Write(p)
	g.written += int64(n)
	return n, err
}
