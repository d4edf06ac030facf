package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"dirzip/internal/dirzip"
)

// errStopWalk ends a walk early when the consumer stops ranging.
var errStopWalk = errors.New("walk stopped")

// Tree enumerates the regular files of a billy filesystem, rooted at its
// top directory. Symlinks and non-regular files are skipped without error.
type Tree struct {
	fs     billy.Filesystem
	ignore []string
}

var _ dirzip.Enumerator = (*Tree)(nil)

// NewTree creates a Tree over fsys. ignore holds extra patterns applied on
// top of the tree's own .zipignore file.
func NewTree(fsys billy.Filesystem, ignore []string) *Tree {
	return &Tree{fs: fsys, ignore: ignore}
}

// Files walks the tree, visiting each directory's children in lexical
// order. The .zipignore file is read once per walk.
func (t *Tree) Files(ctx context.Context) iter.Seq2[dirzip.FileEntry, error] {
	return func(yield func(dirzip.FileEntry, error) bool) {
		matcher, err := t.matcher()
		if err != nil {
			yield(dirzip.FileEntry{}, err)
			return
		}

		err = util.Walk(t.fs, ".", func(p string, info os.FileInfo, err error) error {
			if err != nil {
				return err
			}
			if err := ctx.Err(); err != nil {
				return err
			}
			if p == "." {
				return nil
			}

			name := filepath.ToSlash(p)
			if matcher.Match(name) {
				if info.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			// Lstat never reports a symlink as a directory, so links to
			// directories are not descended into either.
			if info.IsDir() || !info.Mode().IsRegular() {
				return nil
			}

			entry := dirzip.NewFileEntry(name, info.Size(), info.Mode(), info.ModTime(), t.opener(p))
			if !yield(entry, nil) {
				return errStopWalk
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStopWalk) {
			yield(dirzip.FileEntry{}, fmt.Errorf("walking tree: %w", err))
		}
	}
}

func (t *Tree) opener(p string) func() (io.ReadCloser, error) {
	return func() (io.ReadCloser, error) {
		return t.fs.Open(p)
	}
}

func (t *Tree) matcher() (*IgnoreMatcher, error) {
	patterns, err := ParseIgnoreFile(t.fs, IgnoreFileName)
	if err != nil {
		return nil, err
	}
	// Defaults go last so no negation can bring them back.
	all := make([]string, 0, len(t.ignore)+len(patterns)+len(defaultIgnorePatterns))
	all = append(all, t.ignore...)
	all = append(all, patterns...)
	all = append(all, defaultIgnorePatterns...)
	return NewIgnoreMatcher(all), nil
}
