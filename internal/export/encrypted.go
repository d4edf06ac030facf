package export

import (
	"context"
	"fmt"
	"io"

	"dirzip/internal/encryption"
)

// EncryptedDestination encrypts the archive before handing it to another
// destination. The ciphertext length differs from the archive length, so
// no length is declared downstream.
type EncryptedDestination struct {
	inner Destination
	enc   encryption.Encryptor
	w     io.WriteCloser
}

var _ Destination = (*EncryptedDestination)(nil)

// NewEncryptedDestination wraps inner.
func NewEncryptedDestination(inner Destination, enc encryption.Encryptor) *EncryptedDestination {
	return &EncryptedDestination{inner: inner, enc: enc}
}

func (d *EncryptedDestination) Declare(int64) error {
	if err := d.inner.Declare(-1); err != nil {
		return err
	}
	w, err := d.enc.EncryptWriter(d.inner)
	if err != nil {
		return fmt.Errorf("starting encryption: %w", err)
	}
	d.w = w
	return nil
}

func (d *EncryptedDestination) Write(p []byte) (int, error) {
	if d.w == nil {
		return 0, fmt.Errorf("write before encryption started")
	}
	return d.w.Write(p)
}

// Flush flushes the inner destination. Up to one encryption chunk may
// stay buffered until Finish.
func (d *EncryptedDestination) Flush(ctx context.Context) error {
	return d.inner.Flush(ctx)
}

func (d *EncryptedDestination) Finish(transferErr error) error {
	if transferErr == nil && d.w != nil {
		if err := d.w.Close(); err != nil {
			transferErr = fmt.Errorf("finalizing encryption: %w", err)
			d.inner.Finish(transferErr)
			return transferErr
		}
	}
	return d.inner.Finish(transferErr)
}

func (d *EncryptedDestination) String() string {
	return d.inner.String() + " (age)"
}
