package export

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"golang.org/x/term"
)

// ErrTerminal is returned when stdout is a terminal and the archive would
// be printed to it.
var ErrTerminal = errors.New("refusing to write a binary archive to a terminal")

// StdoutDestination streams the archive to a file descriptor, normally
// os.Stdout. Nothing written can be taken back, so Finish only flushes.
type StdoutDestination struct {
	f   *os.File
	buf *bufio.Writer
}

var _ Destination = (*StdoutDestination)(nil)

// NewStdoutDestination wraps f. It fails with ErrTerminal when f is a
// terminal unless force is set.
func NewStdoutDestination(f *os.File, force bool) (*StdoutDestination, error) {
	if !force && term.IsTerminal(int(f.Fd())) {
		return nil, ErrTerminal
	}
	return &StdoutDestination{f: f, buf: bufio.NewWriterSize(f, bufferSize)}, nil
}

func (d *StdoutDestination) Declare(int64) error { return nil }

func (d *StdoutDestination) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

func (d *StdoutDestination) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.buf.Flush()
}

func (d *StdoutDestination) Finish(transferErr error) error {
	if transferErr != nil {
		return nil
	}
	if err := d.buf.Flush(); err != nil {
		return fmt.Errorf("flushing stdout: %w", err)
	}
	return nil
}

func (d *StdoutDestination) String() string { return "stdout" }
