package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"dirzip/internal/dirzip"
)

// responseDestination streams a transfer into an HTTP response. Headers
// are committed by Declare; after that the status can no longer change.
type responseDestination struct {
	w        http.ResponseWriter
	rc       *http.ResponseController
	filename string
	started  bool
}

var _ dirzip.Destination = (*responseDestination)(nil)

func newResponseDestination(w http.ResponseWriter, folder string) *responseDestination {
	return &responseDestination{
		w:        w,
		rc:       http.NewResponseController(w),
		filename: folder + ".zip",
	}
}

func (d *responseDestination) Declare(length int64) error {
	if d.started {
		return errors.New("response already started")
	}
	h := d.w.Header()
	h.Set("Content-Type", "application/zip")
	h.Set("Content-Disposition", contentDisposition(d.filename))
	h.Set("Cache-Control", "no-cache, no-store")
	h.Set("Pragma", "no-cache")
	if length >= 0 {
		h.Set("Content-Length", strconv.FormatInt(length, 10))
	}
	d.w.WriteHeader(http.StatusOK)
	d.started = true
	return nil
}

func (d *responseDestination) Write(p []byte) (int, error) {
	if !d.started {
		return 0, errors.New("write before length was declared")
	}
	return d.w.Write(p)
}

func (d *responseDestination) Flush(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := d.rc.Flush(); err != nil && !errors.Is(err, http.ErrNotSupported) {
		return fmt.Errorf("flushing response: %w", err)
	}
	return nil
}

// contentDisposition builds an attachment header with a quoted ASCII
// filename, plus an RFC 5987 filename* when the name is not plain ASCII.
func contentDisposition(filename string) string {
	var quoted strings.Builder
	ascii := true
	for _, r := range filename {
		switch {
		case r == '"' || r == '\\':
			quoted.WriteByte('\\')
			quoted.WriteRune(r)
		case r < 0x20 || r == 0x7f:
			quoted.WriteByte('_')
		case r > 0x7e:
			ascii = false
			quoted.WriteByte('_')
		default:
			quoted.WriteRune(r)
		}
	}
	v := `attachment; filename="` + quoted.String() + `"`
	if !ascii {
		v += "; filename*=UTF-8''" + url.PathEscape(filename)
	}
	return v
}
