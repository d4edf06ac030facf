package dirzip

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"iter"
	"time"
)

// FileEntry describes one regular file found under a tree root.
// Name is relative to the root, slash separated, and always satisfies
// fs.ValidPath. Entries are produced by an Enumerator and consumed once.
type FileEntry struct {
	Name    string
	Size    int64
	Mode    fs.FileMode
	ModTime time.Time

	open func() (io.ReadCloser, error)
}

// NewFileEntry creates a FileEntry whose content is read through open.
// This is primarily for use by Enumerator implementations.
func NewFileEntry(name string, size int64, mode fs.FileMode, modTime time.Time, open func() (io.ReadCloser, error)) FileEntry {
	return FileEntry{
		Name:    name,
		Size:    size,
		Mode:    mode,
		ModTime: modTime,
		open:    open,
	}
}

// Open opens the entry's content for reading. The caller must close it.
func (e FileEntry) Open() (io.ReadCloser, error) {
	if e.open == nil {
		return nil, errors.New("file entry has no source")
	}
	return e.open()
}

// Enumerator produces the regular files of a tree.
//
// Files walks the tree lazily: the working set is bounded by one directory
// listing, never the whole tree. Each call starts a fresh walk and the
// order is deterministic for an unchanged tree. A walk failure (for example
// the root disappearing) is yielded as a non-nil error, after which the
// sequence ends. Entries never name a path outside the root.
type Enumerator interface {
	Files(ctx context.Context) iter.Seq2[FileEntry, error]
}

// TreeSource opens an Enumerator for a resolved, access-checked directory.
type TreeSource interface {
	OpenTree(root string) (Enumerator, error)
}
