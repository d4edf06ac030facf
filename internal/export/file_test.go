package export

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestFileDestination(t *testing.T) {
	ctx := context.Background()

	t.Run("renames into place on success", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.zip")
		d, err := NewFileDestination(path)
		if err != nil {
			t.Fatalf("NewFileDestination() error = %v", err)
		}

		if err := d.Declare(11); err != nil {
			t.Fatalf("Declare() error = %v", err)
		}
		d.Write([]byte("hello "))
		if err := d.Flush(ctx); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		d.Write([]byte("world"))
		if err := d.Finish(nil); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}

		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatalf("reading export: %v", err)
		}
		if string(data) != "hello world" {
			t.Errorf("content = %q", data)
		}
		assertOnlyFile(t, dir, "out.zip")
	})

	t.Run("discards on transfer failure", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.zip")
		d, err := NewFileDestination(path)
		if err != nil {
			t.Fatalf("NewFileDestination() error = %v", err)
		}
		d.Write([]byte("partial"))

		if err := d.Finish(errors.New("boom")); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("target exists after failed transfer: %v", err)
		}
		assertOnlyFile(t, dir, "")
	})

	t.Run("rejects a length mismatch", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "out.zip")
		d, err := NewFileDestination(path)
		if err != nil {
			t.Fatalf("NewFileDestination() error = %v", err)
		}
		d.Declare(100)
		d.Write([]byte("short"))

		if err := d.Finish(nil); err == nil {
			t.Error("Finish() expected size mismatch error")
		}
		assertOnlyFile(t, dir, "")
	})

	t.Run("flush honours cancellation", func(t *testing.T) {
		d, err := NewFileDestination(filepath.Join(t.TempDir(), "out.zip"))
		if err != nil {
			t.Fatalf("NewFileDestination() error = %v", err)
		}
		defer d.Finish(errors.New("done"))

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if err := d.Flush(cctx); !errors.Is(err, context.Canceled) {
			t.Errorf("Flush() error = %v, want context.Canceled", err)
		}
	})

	t.Run("missing directory", func(t *testing.T) {
		if _, err := NewFileDestination(filepath.Join(t.TempDir(), "no", "out.zip")); err == nil {
			t.Error("NewFileDestination() expected error")
		}
	})
}

func TestStdoutDestination(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	d, err := NewStdoutDestination(w, false)
	if err != nil {
		t.Fatalf("NewStdoutDestination() on a pipe error = %v", err)
	}
	d.Declare(-1)
	d.Write([]byte("PK"))
	if err := d.Finish(nil); err != nil {
		t.Fatalf("Finish() error = %v", err)
	}
	w.Close()

	buf := make([]byte, 8)
	n, _ := r.Read(buf)
	if string(buf[:n]) != "PK" {
		t.Errorf("read %q, want PK", buf[:n])
	}
}

// assertOnlyFile checks dir holds exactly want, or nothing when want is empty.
func assertOnlyFile(t *testing.T, dir, want string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	if want == "" {
		if len(names) != 0 {
			t.Errorf("leftover files: %v", names)
		}
		return
	}
	if len(names) != 1 || names[0] != want {
		t.Errorf("files = %v, want [%s]", names, want)
	}
}
