package export

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"dirzip/internal/encryption"
)

// memDestination collects bytes in memory.
type memDestination struct {
	bytes.Buffer
	declared int64
	finished bool
	err      error
}

func (m *memDestination) Declare(n int64) error       { m.declared = n; return nil }
func (m *memDestination) Flush(context.Context) error { return nil }
func (m *memDestination) Finish(err error) error      { m.finished, m.err = true, err; return nil }
func (m *memDestination) String() string              { return "memory" }

func TestEncryptedDestination(t *testing.T) {
	t.Run("encrypts and hides the length", func(t *testing.T) {
		inner := &memDestination{}
		enc := encryption.NewTestEncryptor()
		d := NewEncryptedDestination(inner, enc)

		if err := d.Declare(5); err != nil {
			t.Fatalf("Declare() error = %v", err)
		}
		if inner.declared != -1 {
			t.Errorf("inner declared %d, want -1", inner.declared)
		}
		d.Write([]byte("PK\x03\x04!"))
		if err := d.Flush(context.Background()); err != nil {
			t.Fatalf("Flush() error = %v", err)
		}
		if err := d.Finish(nil); err != nil {
			t.Fatalf("Finish() error = %v", err)
		}
		if !inner.finished || inner.err != nil {
			t.Errorf("inner finished=%v err=%v", inner.finished, inner.err)
		}

		dc, _ := enc.Unlock("")
		var plain bytes.Buffer
		if err := dc.Decrypt(bytes.NewReader(inner.Bytes()), &plain); err != nil {
			t.Fatalf("Decrypt() error = %v", err)
		}
		if plain.String() != "PK\x03\x04!" {
			t.Errorf("decrypted = %q", plain.String())
		}
	})

	t.Run("passes the transfer error through", func(t *testing.T) {
		inner := &memDestination{}
		d := NewEncryptedDestination(inner, encryption.NewTestEncryptor())
		d.Declare(-1)

		cause := errors.New("cancelled")
		d.Finish(cause)
		if !errors.Is(inner.err, cause) {
			t.Errorf("inner err = %v, want %v", inner.err, cause)
		}
	})

	t.Run("names the inner destination", func(t *testing.T) {
		d := NewEncryptedDestination(&memDestination{}, encryption.NewTestEncryptor())
		if d.String() != "memory (age)" {
			t.Errorf("String() = %q", d.String())
		}
	})
}
