package mirror

import (
	"fmt"
	"io"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// EncryptingMirror wraps another mirror and encrypts content on the way in.
// Content keys stay the plaintext digest, so dedup and the workspace index
// are unaffected; only the stored bytes differ. Size checks are delegated
// to the inner mirror with the ciphertext length, which is unknown up
// front, so Put streams through a pipe and passes -1.
type EncryptingMirror struct {
	inner     core.Mirror
	encryptor core.Encryptor
}

var _ core.Mirror = (*EncryptingMirror)(nil)

// NewEncryptingMirror wraps inner so that all content is encrypted with
// encryptor before storage.
func NewEncryptingMirror(inner core.Mirror, encryptor core.Encryptor) *EncryptingMirror {
	return &EncryptingMirror{inner: inner, encryptor: encryptor}
}

func (m *EncryptingMirror) Put(hash string, r io.Reader, size int64) error {
	exists, err := m.inner.Has(hash)
	if err != nil {
		return err
	}
	if exists {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		return nil
	}

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(m.encryptor.Encrypt(r, pw))
	}()

	if err := m.inner.Put(hash, pr, -1); err != nil {
		pr.CloseWithError(err)
		return err
	}
	return nil
}

func (m *EncryptingMirror) Has(hash string) (bool, error) {
	return m.inner.Has(hash)
}

// Get returns the stored ciphertext. Decryption needs an unlocked private
// key; callers decrypt via core.DecryptionContext.
func (m *EncryptingMirror) Get(hash string, w io.Writer) error {
	return m.inner.Get(hash, w)
}

func (m *EncryptingMirror) Validate() error {
	if !m.encryptor.IsConfigured() {
		return fmt.Errorf("mirror encryption enabled but keys are not set up (run `dogflare mirror init`)")
	}
	return m.inner.Validate()
}
