package mirror

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// MemoryMirror is an in-memory implementation of core.Mirror. Use in tests.
type MemoryMirror struct {
	name    string
	mu      sync.Mutex
	content map[string][]byte
}

var _ core.Mirror = (*MemoryMirror)(nil)

// NewMemoryMirror creates an empty MemoryMirror.
func NewMemoryMirror(name string) *MemoryMirror {
	return &MemoryMirror{
		name:    name,
		content: make(map[string][]byte),
	}
}

func (m *MemoryMirror) Put(hash string, r io.Reader, size int64) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("failed to read content: %w", err)
	}
	if size >= 0 && int64(len(data)) != size {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, len(data))
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.content[hash]; !exists {
		m.content[hash] = data
	}
	return nil
}

func (m *MemoryMirror) Has(hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.content[hash]
	return ok, nil
}

func (m *MemoryMirror) Get(hash string, w io.Writer) error {
	m.mu.Lock()
	data, ok := m.content[hash]
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("content not found: %s", hash)
	}

	if _, err := io.Copy(w, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write content: %w", err)
	}
	return nil
}

func (m *MemoryMirror) Validate() error { return nil }
