package export

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// bufferSize is the write buffer of file and stdout destinations. The
// archive sink flush pushes it out.
const bufferSize = 1 << 20

// FileDestination writes the archive to a temp file next to the target
// path and renames it into place on success, so the target never holds a
// partial archive.
type FileDestination struct {
	path     string
	tmp      *os.File
	buf      *bufio.Writer
	declared int64
}

var _ Destination = (*FileDestination)(nil)

// NewFileDestination creates the temp file for path. The parent directory
// must exist.
func NewFileDestination(path string) (*FileDestination, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*.zip")
	if err != nil {
		return nil, fmt.Errorf("creating temp file: %w", err)
	}
	return &FileDestination{
		path:     path,
		tmp:      tmp,
		buf:      bufio.NewWriterSize(tmp, bufferSize),
		declared: -1,
	}, nil
}

func (d *FileDestination) Declare(length int64) error {
	d.declared = length
	return nil
}

func (d *FileDestination) Write(p []byte) (int, error) {
	return d.buf.Write(p)
}

func (d *FileDestination) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.buf.Flush()
}

// Finish renames the temp file into place, or removes it if the transfer
// failed.
func (d *FileDestination) Finish(transferErr error) error {
	tmpPath := d.tmp.Name()
	if transferErr != nil {
		d.tmp.Close()
		os.Remove(tmpPath)
		return nil
	}

	if err := d.commit(); err != nil {
		d.tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := os.Rename(tmpPath, d.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

func (d *FileDestination) commit() error {
	if err := d.buf.Flush(); err != nil {
		return fmt.Errorf("flushing archive: %w", err)
	}
	if d.declared >= 0 {
		info, err := d.tmp.Stat()
		if err != nil {
			return fmt.Errorf("stat temp file: %w", err)
		}
		if info.Size() != d.declared {
			return fmt.Errorf("size mismatch: declared %d bytes, wrote %d", d.declared, info.Size())
		}
	}
	if err := d.tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := d.tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	return nil
}

func (d *FileDestination) String() string { return d.path }
