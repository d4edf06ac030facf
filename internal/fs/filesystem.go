package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"

	"dirzip/internal/dirzip"
)

// ErrFolderNotFound is returned by ResolveFolder for any name that does not
// resolve to a directory inside the base. The cause is deliberately not
// distinguished.
var ErrFolderNotFound = errors.New("folder not found or access denied")

// OSFilesystemManager serves trees from the real filesystem. Every tree is
// opened through a bound billy filesystem that refuses paths leaving the
// tree root.
type OSFilesystemManager struct {
	ignore []string
}

var _ dirzip.TreeSource = (*OSFilesystemManager)(nil)

// NewOSFilesystemManager creates a filesystem manager. ignore patterns are
// applied to every tree in addition to its .zipignore file.
func NewOSFilesystemManager(ignore []string) *OSFilesystemManager {
	return &OSFilesystemManager{ignore: ignore}
}

// OpenTree opens the directory root for enumeration.
func (m *OSFilesystemManager) OpenTree(root string) (dirzip.Enumerator, error) {
	dir, err := m.ResolveDir(root)
	if err != nil {
		return nil, err
	}
	return NewTree(osfs.New(dir, osfs.WithBoundOS()), m.ignore), nil
}

// ResolveDir turns rawPath into an absolute, symlink-free directory path.
func (m *OSFilesystemManager) ResolveDir(rawPath string) (string, error) {
	absPath, err := filepath.Abs(rawPath)
	if err != nil {
		return "", fmt.Errorf("resolving absolute path: %w", err)
	}
	realPath, err := filepath.EvalSymlinks(absPath)
	if err != nil {
		return "", fmt.Errorf("resolving symlinks: %w", err)
	}
	info, err := os.Stat(realPath)
	if err != nil {
		return "", fmt.Errorf("stat path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("path is not a directory: %s", realPath)
	}
	return realPath, nil
}

// ResolveFolder maps a single folder name to a directory strictly inside
// base. The name must be one path element. Symlinks are evaluated before
// the containment check, so a link pointing out of base is refused.
func (m *OSFilesystemManager) ResolveFolder(base, name string) (string, error) {
	if name == "" || name == "." || name == ".." ||
		strings.ContainsAny(name, `/\`+"\x00") || filepath.IsAbs(name) || filepath.VolumeName(name) != "" {
		return "", ErrFolderNotFound
	}

	baseDir, err := m.ResolveDir(base)
	if err != nil {
		return "", fmt.Errorf("resolving base directory: %w", err)
	}

	realPath, err := filepath.EvalSymlinks(filepath.Join(baseDir, name))
	if err != nil {
		return "", ErrFolderNotFound
	}
	rel, err := filepath.Rel(baseDir, realPath)
	if err != nil || rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", ErrFolderNotFound
	}

	info, err := os.Stat(realPath)
	if err != nil || !info.IsDir() {
		return "", ErrFolderNotFound
	}
	return realPath, nil
}
