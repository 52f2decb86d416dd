package core

import "io"

// Mirror is an optional off-box copy of every synced attachment, stored
// content-addressed by digest. Mirror failures never abort a sync; they are
// logged and counted.
type Mirror interface {
	// Put stores content under its digest. The operation is idempotent:
	// storing the same digest multiple times is safe. size is the number of
	// bytes that will be read from r; pass -1 when unknown.
	Put(hash string, r io.Reader, size int64) error

	// Has reports whether content with the given digest is mirrored.
	Has(hash string) (bool, error)

	// Get retrieves mirrored content by digest and writes it to w.
	Get(hash string, w io.Writer) error

	// Validate verifies that the mirror is reachable and properly
	// configured.
	Validate() error
}

// Encryptor handles encryption of mirrored content. Encryption uses the
// public key only; decryption requires a passphrase to unlock the private
// key, producing a DecryptionContext for the session.
type Encryptor interface {
	// Setup performs one-time key generation: stores the public key in
	// plaintext and encrypts the private key with the passphrase.
	Setup(passphrase string) error

	// Encrypt encrypts data read from r and writes ciphertext to w.
	// Uses the public key only; no passphrase required.
	Encrypt(r io.Reader, w io.Writer) error

	// Unlock decrypts the private key using the passphrase and returns a
	// DecryptionContext valid for the session.
	Unlock(passphrase string) (DecryptionContext, error)

	// IsConfigured returns true if both key files exist.
	IsConfigured() bool
}

// DecryptionContext holds an unlocked private key in memory for the duration
// of a session. The unlocked key is never written to disk.
type DecryptionContext interface {
	Decrypt(r io.Reader, w io.Writer) error
}
