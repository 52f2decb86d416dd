package encryption_test

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/elajah-datadog/dogflare/internal/config"
	"github.com/elajah-datadog/dogflare/internal/encryption"
)

func newAgeEncryptor(t *testing.T) *encryption.AgeEncryptor {
	t.Helper()

	dir := t.TempDir()
	return encryption.NewAgeEncryptor(config.EncryptionConfig{
		Type:           "age",
		PublicKeyPath:  filepath.Join(dir, "mirror.pub"),
		PrivateKeyPath: filepath.Join(dir, "mirror.key"),
	})
}

func TestAgeEncryptor_Setup(t *testing.T) {
	dir := t.TempDir()
	pubPath := filepath.Join(dir, "keys", "mirror.pub")
	privPath := filepath.Join(dir, "keys", "mirror.key")
	e := encryption.NewAgeEncryptor(config.EncryptionConfig{
		PublicKeyPath:  pubPath,
		PrivateKeyPath: privPath,
	})

	if e.IsConfigured() {
		t.Error("IsConfigured() = true before Setup")
	}

	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}
	if !e.IsConfigured() {
		t.Error("IsConfigured() = false after Setup")
	}

	pub, err := os.ReadFile(pubPath)
	if err != nil {
		t.Fatalf("reading public key: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(string(pub)), "age1") {
		t.Errorf("public key = %q, want an age recipient", pub)
	}

	// The private key is passphrase-encrypted, never plaintext on disk.
	priv, err := os.ReadFile(privPath)
	if err != nil {
		t.Fatalf("reading private key: %v", err)
	}
	if strings.Contains(string(priv), "AGE-SECRET-KEY-") {
		t.Error("private key stored in plaintext")
	}

	info, err := os.Stat(privPath)
	if err != nil {
		t.Fatalf("stat private key: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0600 {
		t.Errorf("private key mode = %o, want 0600", perm)
	}
}

func TestAgeEncryptor_RoundTrip(t *testing.T) {
	e := newAgeEncryptor(t)
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	plaintext := []byte("attachment content worth protecting")

	var ciphertext bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Contains(ciphertext.Bytes(), plaintext) {
		t.Error("ciphertext contains the plaintext")
	}

	dc, err := e.Unlock("correct horse")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}

	var recovered bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(ciphertext.Bytes()), &recovered); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if recovered.String() != string(plaintext) {
		t.Errorf("decrypted = %q, want %q", recovered.String(), plaintext)
	}
}

func TestAgeEncryptor_UnlockWrongPassphrase(t *testing.T) {
	e := newAgeEncryptor(t)
	if err := e.Setup("correct horse"); err != nil {
		t.Fatalf("Setup() error = %v", err)
	}

	if _, err := e.Unlock("battery staple"); err == nil {
		t.Error("Unlock() = nil error with the wrong passphrase")
	}
}

func TestAgeEncryptor_EncryptWithoutKeys(t *testing.T) {
	e := newAgeEncryptor(t)

	var out bytes.Buffer
	if err := e.Encrypt(strings.NewReader("data"), &out); err == nil {
		t.Error("Encrypt() = nil error without a configured public key")
	}
}

func TestTestEncryptor(t *testing.T) {
	e := encryption.NewTestEncryptor()

	plaintext := []byte("plain bytes")
	var ciphertext bytes.Buffer
	if err := e.Encrypt(bytes.NewReader(plaintext), &ciphertext); err != nil {
		t.Fatalf("Encrypt() error = %v", err)
	}
	if bytes.Equal(ciphertext.Bytes(), plaintext) {
		t.Error("test ciphertext equals plaintext")
	}

	dc, err := e.Unlock("")
	if err != nil {
		t.Fatalf("Unlock() error = %v", err)
	}
	var recovered bytes.Buffer
	if err := dc.Decrypt(bytes.NewReader(ciphertext.Bytes()), &recovered); err != nil {
		t.Fatalf("Decrypt() error = %v", err)
	}
	if recovered.String() != string(plaintext) {
		t.Errorf("decrypted = %q, want %q", recovered.String(), plaintext)
	}

	var bad bytes.Buffer
	if err := dc.Decrypt(strings.NewReader("not encrypted at all"), &bad); err == nil {
		t.Error("Decrypt() = nil error for data without the header")
	}
}
