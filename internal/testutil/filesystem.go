package testutil

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"

	"dirzip/internal/dirzip"
	zfs "dirzip/internal/fs"
)

// TrackingFS wraps a billy filesystem and records file opens and closes,
// so tests can check that every handle is released. Opens and reads can
// be made to fail per file.
type TrackingFS struct {
	billy.Filesystem

	mu       sync.Mutex
	open     int
	opened   []string
	failOpen map[string]error
	failRead map[string]error
	onOpen   func(name string)
}

// NewTrackingFS wraps fsys.
func NewTrackingFS(fsys billy.Filesystem) *TrackingFS {
	return &TrackingFS{
		Filesystem: fsys,
		failOpen:   make(map[string]error),
		failRead:   make(map[string]error),
	}
}

// NewMemFS creates an in-memory filesystem holding files, keyed by
// slash-separated relative path.
func NewMemFS(t *testing.T, files map[string]string) *TrackingFS {
	t.Helper()
	fsys := memfs.New()
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := util.WriteFile(fsys, name, []byte(files[name]), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
	return NewTrackingFS(fsys)
}

// FailOpen makes opening name fail with err.
func (f *TrackingFS) FailOpen(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failOpen[name] = err
}

// FailRead makes every read of name fail with err.
func (f *TrackingFS) FailRead(name string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failRead[name] = err
}

// OnOpen calls fn after each successful open.
func (f *TrackingFS) OnOpen(fn func(name string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onOpen = fn
}

// OpenHandles returns the number of files opened and not yet closed.
func (f *TrackingFS) OpenHandles() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

// Opened returns the slash-separated names opened so far, in order.
func (f *TrackingFS) Opened() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.opened...)
}

func (f *TrackingFS) Open(filename string) (billy.File, error) {
	name := filepath.ToSlash(filename)

	f.mu.Lock()
	if err, ok := f.failOpen[name]; ok {
		f.mu.Unlock()
		return nil, err
	}
	readErr := f.failRead[name]
	f.mu.Unlock()

	file, err := f.Filesystem.Open(filename)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.open++
	f.opened = append(f.opened, name)
	hook := f.onOpen
	f.mu.Unlock()

	if hook != nil {
		hook(name)
	}
	return &trackedFile{File: file, fs: f, readErr: readErr}, nil
}

type trackedFile struct {
	billy.File
	fs      *TrackingFS
	readErr error
	closed  bool
}

func (t *trackedFile) Read(p []byte) (int, error) {
	if t.readErr != nil {
		return 0, t.readErr
	}
	return t.File.Read(p)
}

func (t *trackedFile) Close() error {
	if !t.closed {
		t.closed = true
		t.fs.mu.Lock()
		t.fs.open--
		t.fs.mu.Unlock()
	}
	return t.File.Close()
}

// StaticTreeSource serves the same filesystem for every root.
type StaticTreeSource struct {
	FS     billy.Filesystem
	Ignore []string
	Err    error
}

var _ dirzip.TreeSource = (*StaticTreeSource)(nil)

func (s *StaticTreeSource) OpenTree(string) (dirzip.Enumerator, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	return zfs.NewTree(s.FS, s.Ignore), nil
}

// WriteTree creates files under root on the real filesystem, keyed by
// slash-separated relative path.
func WriteTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatalf("creating dir for %s: %v", name, err)
		}
		if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
			t.Fatalf("writing %s: %v", name, err)
		}
	}
}
