package dirzip

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"time"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/zip"
)

// Encoder invariant violations. These are programmer errors: the encoder
// is left unusable and the transfer must be abandoned.
var (
	ErrInvalidEntryName = errors.New("invalid entry name")
	ErrDuplicateEntry   = errors.New("duplicate entry name")
	ErrEntryOpen        = errors.New("an entry is still open")
	ErrEntryClosed      = errors.New("entry already closed")
	ErrEncoderFinalized = errors.New("encoder already finalized")
)

// Compression selects how an entry's bytes are stored.
type Compression uint16

const (
	// Deflate compresses at the fastest deflate level.
	Deflate Compression = Compression(zip.Deflate)
	// Store keeps bytes as they are.
	Store Compression = Compression(zip.Store)
)

// EntryHeader describes an archive member to begin.
type EntryHeader struct {
	Name     string // relative, slash separated; must satisfy fs.ValidPath
	Method   Compression
	Modified time.Time
	Mode     fs.FileMode
}

// Encoder writes a ZIP archive incrementally to a Sink.
//
// Entry lengths are never declared up front: every member carries a data
// descriptor after its data, and the central directory is written by
// Finalize. Exactly one entry may be open at a time. An Encoder must not be
// shared between goroutines.
type Encoder struct {
	sink      *guardedSink
	zw        *zip.Writer
	deflater  *flate.Writer
	names     map[string]struct{}
	open      *EntryWriter
	finalized bool
}

// NewEncoder creates an Encoder that emits to sink.
func NewEncoder(sink Sink) *Encoder {
	g := &guardedSink{sink: sink}
	e := &Encoder{
		sink:  g,
		zw:    zip.NewWriter(g),
		names: make(map[string]struct{}),
	}
	e.zw.RegisterCompressor(zip.Deflate, e.compressor)
	return e
}

// compressor hands the zip writer a single deflater, reset per entry.
func (e *Encoder) compressor(w io.Writer) (io.WriteCloser, error) {
	if e.deflater == nil {
		fw, err := flate.NewWriter(w, flate.BestSpeed)
		if err != nil {
			return nil, fmt.Errorf("creating deflater: %w", err)
		}
		e.deflater = fw
		return fw, nil
	}
	e.deflater.Reset(w)
	return e.deflater, nil
}

// bind makes ctx the context of the operation in progress and reports
// whether it is already done.
func (e *Encoder) bind(ctx context.Context) error {
	e.sink.ctx = ctx
	return ctx.Err()
}

// Written returns the number of archive bytes the sink has accepted.
func (e *Encoder) Written() int64 {
	return e.sink.written
}

// Begin starts a new entry. The previous entry must have been closed.
func (e *Encoder) Begin(ctx context.Context, h EntryHeader) (*EntryWriter, error) {
	if err := e.bind(ctx); err != nil {
		return nil, err
	}
	if e.finalized {
		return nil, ErrEncoderFinalized
	}
	if e.open != nil {
		return nil, fmt.Errorf("beginning %q: %w", h.Name, ErrEntryOpen)
	}
	if h.Name == "." || !fs.ValidPath(h.Name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidEntryName, h.Name)
	}
	if _, dup := e.names[h.Name]; dup {
		return nil, fmt.Errorf("%w: %q", ErrDuplicateEntry, h.Name)
	}

	method := h.Method
	if method != Store {
		method = Deflate
	}
	fh := &zip.FileHeader{
		Name:     h.Name,
		Method:   uint16(method),
		Modified: h.Modified,
	}
	if h.Mode != 0 {
		fh.SetMode(h.Mode)
	}

	w, err := e.zw.CreateHeader(fh)
	if err != nil {
		return nil, fmt.Errorf("writing header for %q: %w", h.Name, err)
	}

	e.names[h.Name] = struct{}{}
	e.open = &EntryWriter{enc: e, name: h.Name, method: method, w: w}
	return e.open, nil
}

// Finalize writes the central directory and end records and flushes them
// to the sink. The encoder cannot be used afterwards.
func (e *Encoder) Finalize(ctx context.Context) error {
	if err := e.bind(ctx); err != nil {
		return err
	}
	if e.finalized {
		return ErrEncoderFinalized
	}
	if e.open != nil {
		return fmt.Errorf("finalizing with %q: %w", e.open.name, ErrEntryOpen)
	}
	e.finalized = true
	if err := e.zw.Close(); err != nil {
		return fmt.Errorf("writing central directory: %w", err)
	}
	return nil
}

// EntryWriter writes the content of one archive member.
type EntryWriter struct {
	enc     *Encoder
	name    string
	method  Compression
	w       io.Writer
	written int64
	closed  bool
}

// Name returns the entry name.
func (w *EntryWriter) Name() string { return w.name }

// Write compresses p into the entry.
func (w *EntryWriter) Write(ctx context.Context, p []byte) (int, error) {
	if err := w.enc.bind(ctx); err != nil {
		return 0, err
	}
	if w.closed {
		return 0, fmt.Errorf("writing %q: %w", w.name, ErrEntryClosed)
	}
	n, err := w.w.Write(p)
	w.written += int64(n)
	if err != nil {
		return n, fmt.Errorf("writing %q: %w", w.name, err)
	}
	return n, nil
}

// Flush emits all compressed data buffered for the entry and pushes the
// encoder's own buffer into the sink. It does not flush the sink.
func (w *EntryWriter) Flush(ctx context.Context) error {
	if err := w.enc.bind(ctx); err != nil {
		return err
	}
	if w.closed {
		return fmt.Errorf("flushing %q: %w", w.name, ErrEntryClosed)
	}
	if w.method == Deflate && w.enc.deflater != nil {
		if err := w.enc.deflater.Flush(); err != nil {
			return fmt.Errorf("flushing %q: %w", w.name, err)
		}
	}
	if err := w.enc.zw.Flush(); err != nil {
		return fmt.Errorf("flushing %q: %w", w.name, err)
	}
	return nil
}

// Close ends the entry. Its data descriptor is emitted before the next
// entry's header or by Finalize. Closing after fewer bytes than the source
// file holds is allowed; the descriptor records what was written.
func (w *EntryWriter) Close(ctx context.Context) error {
	if err := w.enc.bind(ctx); err != nil {
		return err
	}
	if w.closed {
		return fmt.Errorf("closing %q: %w", w.name, ErrEntryClosed)
	}
	w.closed = true
	w.enc.open = nil
	return nil
}
