package encryption

import (
	"bytes"
	"errors"
	"fmt"
	"io"
)

// testHeader is prepended by TestEncryptor so output differs from the
// plaintext while staying deterministic.
var testHeader = []byte("DZENC\x00\x00\x00")

// TestEncryptor is a deterministic stand-in for tests. It prepends a fixed
// 8-byte header and passes the data through unchanged.
type TestEncryptor struct {
	setupCalled bool
}

var _ Encryptor = (*TestEncryptor)(nil)

// NewTestEncryptor creates a new TestEncryptor.
func NewTestEncryptor() *TestEncryptor {
	return &TestEncryptor{}
}

func (e *TestEncryptor) Setup(passphrase string) error {
	e.setupCalled = true
	return nil
}

func (e *TestEncryptor) EncryptWriter(w io.Writer) (io.WriteCloser, error) {
	return &headerWriter{w: w}, nil
}

func (e *TestEncryptor) Unlock(passphrase string) (DecryptionContext, error) {
	return &TestDecryptionContext{}, nil
}

func (e *TestEncryptor) IsConfigured() bool {
	return true
}

// headerWriter writes testHeader before the first byte, or at Close for
// empty input.
type headerWriter struct {
	w       io.Writer
	started bool
}

func (h *headerWriter) start() error {
	if h.started {
		return nil
	}
	h.started = true
	if _, err := h.w.Write(testHeader); err != nil {
		return fmt.Errorf("writing test header: %w", err)
	}
	return nil
}

func (h *headerWriter) Write(p []byte) (int, error) {
	if err := h.start(); err != nil {
		return 0, err
	}
	return h.w.Write(p)
}

func (h *headerWriter) Close() error {
	return h.start()
}

// TestDecryptionContext strips the test header added by TestEncryptor.
type TestDecryptionContext struct{}

var _ DecryptionContext = (*TestDecryptionContext)(nil)

func (c *TestDecryptionContext) Decrypt(r io.Reader, w io.Writer) error {
	header := make([]byte, len(testHeader))
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading test header: %w", err)
	}
	if !bytes.Equal(header, testHeader) {
		return errors.New("invalid test encryption header")
	}
	if _, err := io.Copy(w, r); err != nil {
		return fmt.Errorf("copying data: %w", err)
	}
	return nil
}
