// Package export provides the destinations `dirzip pack` writes archives
// to: a local file, stdout or an S3 object, optionally age-encrypted.
package export

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"dirzip/internal/dirzip"
)

// Destination receives one archive. Finish must be called exactly once
// after the transfer returns, with the transfer's error. A nil error
// commits the export; a non-nil one discards whatever was written where
// the destination allows it.
type Destination interface {
	dirzip.Destination
	Finish(transferErr error) error
	String() string
}

// TargetKind names the kind of place a pack target refers to.
type TargetKind string

const (
	TargetStdout TargetKind = "stdout"
	TargetFile   TargetKind = "file"
	TargetS3     TargetKind = "s3"
)

// Target is a parsed --to argument.
type Target struct {
	Kind   TargetKind
	Path   string // TargetFile
	Bucket string // TargetS3
	Key    string // TargetS3
}

func (t Target) String() string {
	switch t.Kind {
	case TargetFile:
		return t.Path
	case TargetS3:
		return "s3://" + t.Bucket + "/" + t.Key
	default:
		return "-"
	}
}

// ParseTarget parses "-" (stdout), "s3://bucket/key" or a file path.
func ParseTarget(raw string) (Target, error) {
	switch {
	case raw == "" || raw == "-":
		return Target{Kind: TargetStdout}, nil
	case strings.HasPrefix(raw, "s3://"):
		u, err := url.Parse(raw)
		if err != nil {
			return Target{}, fmt.Errorf("parsing s3 target: %w", err)
		}
		key := strings.TrimPrefix(u.Path, "/")
		if u.Host == "" {
			return Target{}, errors.New("s3 target has no bucket")
		}
		if key == "" || strings.HasSuffix(key, "/") {
			return Target{}, fmt.Errorf("s3 target %q has no object key", raw)
		}
		return Target{Kind: TargetS3, Bucket: u.Host, Key: key}, nil
	case strings.Contains(raw, "://"):
		return Target{}, fmt.Errorf("unsupported target scheme in %q", raw)
	default:
		return Target{Kind: TargetFile, Path: raw}, nil
	}
}
