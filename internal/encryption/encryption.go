// Package encryption wraps exported archives with age encryption.
package encryption

import (
	"errors"
	"fmt"
	"io"

	"dirzip/internal/config"
)

// Encryptor encrypts exported archives for the configured public key.
// Encryption needs only the public key; decryption needs the passphrase
// that protects the private key.
type Encryptor interface {
	// Setup performs one-time key generation. It stores the public key in
	// plaintext and the private key encrypted with passphrase.
	Setup(passphrase string) error

	// EncryptWriter returns a writer that encrypts everything written to it
	// into w. The ciphertext is complete only once the writer is closed;
	// closing it does not close w.
	EncryptWriter(w io.Writer) (io.WriteCloser, error)

	// Unlock decrypts the private key with passphrase.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist at configured paths.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory. The key is
// never written to disk.
type DecryptionContext interface {
	// Decrypt decrypts data read from r and writes plaintext to w.
	Decrypt(r io.Reader, w io.Writer) error
}

// NewEncryptorFromConfig selects the encryptor named by cfg.Type. An age
// encryptor needs both key paths even before keys exist, so that
// `keys init` knows where to write them.
func NewEncryptorFromConfig(cfg config.EncryptionConfig) (Encryptor, error) {
	switch cfg.Type {
	case "age", "":
		if cfg.PublicKeyPath == "" || cfg.PrivateKeyPath == "" {
			return nil, errors.New("age encryption needs public_key_path and private_key_path")
		}
		return NewAgeEncryptor(cfg), nil
	case "test":
		return NewTestEncryptor(), nil
	default:
		return nil, fmt.Errorf("unknown encryption type: %q", cfg.Type)
	}
}
