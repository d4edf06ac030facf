package encryption

import (
	"bytes"
	"fmt"
	"testing"

	"dirzip/internal/config"
)

func TestTestEncryptor_Setup(t *testing.T) {
	t.Parallel()
	e := NewTestEncryptor()
	if err := e.Setup("any-passphrase"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.setupCalled {
		t.Error("Setup() did not record that it was called")
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false, want true")
	}
}

func TestTestEncryptor_EncryptDecrypt(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input []byte
	}{
		{name: "simple text", input: []byte("hello world")},
		{name: "empty", input: []byte{}},
		{name: "large data", input: bytes.Repeat([]byte("abcdef"), 10000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			e := NewTestEncryptor()

			encrypted := encrypt(t, e, tt.input)
			if !bytes.HasPrefix(encrypted, testHeader) {
				t.Error("encrypted output does not start with test header")
			}
			if len(encrypted) != len(testHeader)+len(tt.input) {
				t.Errorf("encrypted length = %d, want %d", len(encrypted), len(testHeader)+len(tt.input))
			}

			dc, err := e.Unlock("any-passphrase")
			if err != nil {
				t.Fatalf("Unlock() error = %v", err)
			}
			var decrypted bytes.Buffer
			if err := dc.Decrypt(bytes.NewReader(encrypted), &decrypted); err != nil {
				t.Fatalf("Decrypt() error = %v", err)
			}
			if !bytes.Equal(decrypted.Bytes(), tt.input) {
				t.Errorf("round-trip failed: got %q, want %q", decrypted.Bytes(), tt.input)
			}
		})
	}
}

func TestTestDecryptionContext_RejectsForeignData(t *testing.T) {
	t.Parallel()
	var out bytes.Buffer
	err := (&TestDecryptionContext{}).Decrypt(bytes.NewReader([]byte("PK\x03\x04 not ours")), &out)
	if err == nil {
		t.Error("Decrypt() should reject data without the test header")
	}
}

func TestNewEncryptorFromConfig(t *testing.T) {
	keys := config.EncryptionConfig{PublicKeyPath: "k.pub", PrivateKeyPath: "k.key"}
	tests := []struct {
		name    string
		cfg     config.EncryptionConfig
		want    string
		wantErr bool
	}{
		{name: "default type", cfg: keys, want: "*encryption.AgeEncryptor"},
		{name: "age", cfg: config.EncryptionConfig{Type: "age", PublicKeyPath: "k.pub", PrivateKeyPath: "k.key"}, want: "*encryption.AgeEncryptor"},
		{name: "age without key paths", cfg: config.EncryptionConfig{Type: "age"}, wantErr: true},
		{name: "test", cfg: config.EncryptionConfig{Type: "test"}, want: "*encryption.TestEncryptor"},
		{name: "unknown", cfg: config.EncryptionConfig{Type: "rot13"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewEncryptorFromConfig(tt.cfg)
			if tt.wantErr {
				if err == nil {
					t.Error("NewEncryptorFromConfig() expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("NewEncryptorFromConfig() error = %v", err)
			}
			if gotType := fmt.Sprintf("%T", got); gotType != tt.want {
				t.Errorf("NewEncryptorFromConfig() = %s, want %s", gotType, tt.want)
			}
		})
	}
}
