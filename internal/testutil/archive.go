package testutil

import (
	"archive/zip"
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"
)

// ArchiveFile is one member of a decoded archive.
type ArchiveFile struct {
	Name     string
	Content  []byte
	Method   uint16
	Flags    uint16
	Modified time.Time
}

// ReadArchive decodes data with the standard library zip reader, reading
// and CRC-checking every member.
func ReadArchive(t *testing.T, data []byte) []ArchiveFile {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("opening archive: %v", err)
	}
	files := make([]ArchiveFile, 0, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("opening member %s: %v", f.Name, err)
		}
		content, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("reading member %s: %v", f.Name, err)
		}
		files = append(files, ArchiveFile{
			Name:     f.Name,
			Content:  content,
			Method:   f.Method,
			Flags:    f.Flags,
			Modified: f.Modified,
		})
	}
	return files
}

// ArchiveContents decodes data into a name to content map.
func ArchiveContents(t *testing.T, data []byte) map[string]string {
	t.Helper()
	out := make(map[string]string)
	for _, f := range ReadArchive(t, data) {
		out[f.Name] = string(f.Content)
	}
	return out
}

// BufferDestination collects a transfer's output in memory and records
// how it was driven.
type BufferDestination struct {
	mu       sync.Mutex
	buf      bytes.Buffer
	declared []int64
	flushes  int

	// OnWrite, if set, is called after each write with the total number of
	// bytes received.
	OnWrite    func(total int64)
	DeclareErr error
	WriteErr   error
}

func (d *BufferDestination) Declare(length int64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.declared = append(d.declared, length)
	return d.DeclareErr
}

func (d *BufferDestination) Write(p []byte) (int, error) {
	d.mu.Lock()
	if d.WriteErr != nil {
		d.mu.Unlock()
		return 0, d.WriteErr
	}
	n, _ := d.buf.Write(p)
	total := int64(d.buf.Len())
	hook := d.OnWrite
	d.mu.Unlock()

	if hook != nil {
		hook(total)
	}
	return n, nil
}

func (d *BufferDestination) Flush(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.flushes++
	return ctx.Err()
}

// Bytes returns a copy of everything written.
func (d *BufferDestination) Bytes() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return bytes.Clone(d.buf.Bytes())
}

// Len returns the number of bytes written.
func (d *BufferDestination) Len() int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return int64(d.buf.Len())
}

// Declared returns every length passed to Declare.
func (d *BufferDestination) Declared() []int64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]int64(nil), d.declared...)
}

// Flushes returns how many times the sink was flushed.
func (d *BufferDestination) Flushes() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.flushes
}
