package fs

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/go-git/go-billy/v5"
)

// IgnoreFileName is the per-tree ignore file read from the tree root.
const IgnoreFileName = ".zipignore"

// defaultIgnorePatterns are always applied regardless of config or .zipignore.
var defaultIgnorePatterns = []string{IgnoreFileName}

type ignorePattern struct {
	glob     string
	fullPath bool // match the whole name, not just its base
	negate   bool // "!pat" re-includes what an earlier pattern ignored
}

// IgnoreMatcher decides which archive names are left out of a tree.
// A pattern containing '/' is matched against the whole slash-separated
// name, any other pattern against the base name. Later patterns override
// earlier ones, so "!keep.log" after "*.log" keeps keep.log.
type IgnoreMatcher struct {
	patterns []ignorePattern
}

// NewIgnoreMatcher parses raw patterns. Blank lines and lines starting with
// '#' are skipped. A trailing '/' is dropped, so "build/" and "build" both
// ignore a directory named build. Malformed globs are dropped here rather
// than failing every match.
func NewIgnoreMatcher(rawPatterns []string) *IgnoreMatcher {
	m := &IgnoreMatcher{}
	for _, raw := range rawPatterns {
		raw = strings.TrimSpace(raw)
		if raw == "" || strings.HasPrefix(raw, "#") {
			continue
		}
		p := ignorePattern{}
		if rest, ok := strings.CutPrefix(raw, "!"); ok {
			p.negate = true
			raw = rest
		}
		raw = strings.TrimSuffix(raw, "/")
		if raw == "" {
			continue
		}
		if _, err := path.Match(raw, ""); err != nil {
			continue
		}
		p.glob = raw
		p.fullPath = strings.Contains(raw, "/")
		m.patterns = append(m.patterns, p)
	}
	return m
}

// Match reports whether the slash-separated relative name is ignored.
func (m *IgnoreMatcher) Match(name string) bool {
	if m == nil {
		return false
	}
	base := path.Base(name)

	ignored := false
	for _, p := range m.patterns {
		if p.negate != ignored {
			// Cannot change the outcome.
			continue
		}
		target := base
		if p.fullPath {
			target = name
		}
		if ok, _ := path.Match(p.glob, target); ok {
			ignored = !p.negate
		}
	}
	return ignored
}

// ParseIgnoreFile reads an ignore file from fsys and returns the raw
// pattern strings. Returns nil and no error if the file does not exist.
func ParseIgnoreFile(fsys billy.Filesystem, name string) ([]string, error) {
	f, err := fsys.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("opening ignore file: %w", err)
	}
	defer f.Close()

	var patterns []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		patterns = append(patterns, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading ignore file: %w", err)
	}
	return patterns, nil
}
