package core

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
)

// Hasher computes a SHA-256 digest incrementally. Feed it bytes through
// Write (it satisfies io.Writer, so it composes with io.MultiWriter and
// io.TeeReader) and read the final digest with HexSum.
type Hasher struct {
	h hash.Hash
}

// NewHasher returns a Hasher with empty digest state.
func NewHasher() *Hasher {
	return &Hasher{h: sha256.New()}
}

// Write updates the digest state with p. It never returns an error.
func (h *Hasher) Write(p []byte) (int, error) {
	return h.h.Write(p)
}

// HexSum returns the digest of all bytes written so far as a lowercase
// hex string. The hasher remains usable for further writes.
func (h *Hasher) HexSum() string {
	return hex.EncodeToString(h.h.Sum(nil))
}
