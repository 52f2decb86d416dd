package mirror

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// FileSystemMirror stores mirrored attachment content as files named by
// digest:
//
//	<root>/
//	  content/
//	    <hash>
type FileSystemMirror struct {
	name       string
	root       string
	contentDir string
}

var _ core.Mirror = (*FileSystemMirror)(nil)

// NewFileSystemMirror creates a filesystem mirror rooted at the given path.
func NewFileSystemMirror(name, root string) (*FileSystemMirror, error) {
	contentDir := filepath.Join(root, "content")
	if err := os.MkdirAll(contentDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create content directory: %w", err)
	}

	return &FileSystemMirror{
		name:       name,
		root:       root,
		contentDir: contentDir,
	}, nil
}

// Put stores content identified by its digest. Storing the same digest
// multiple times is safe.
func (m *FileSystemMirror) Put(hash string, r io.Reader, size int64) error {
	destPath := filepath.Join(m.contentDir, hash)

	// If content already exists, skip (idempotent).
	if _, err := os.Stat(destPath); err == nil {
		written, err := io.Copy(io.Discard, r)
		if err != nil {
			return fmt.Errorf("failed to read content: %w", err)
		}
		if size >= 0 && written != size {
			return fmt.Errorf("size mismatch: expected %d bytes, got %d", size, written)
		}
		return nil
	}

	return writeFileAtomic(destPath, r, size)
}

// Has reports whether content with the given digest is mirrored.
func (m *FileSystemMirror) Has(hash string) (bool, error) {
	_, err := os.Stat(filepath.Join(m.contentDir, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("checking mirrored content: %w", err)
	}
	return true, nil
}

// Get retrieves mirrored content by digest and writes it to w.
func (m *FileSystemMirror) Get(hash string, w io.Writer) error {
	f, err := os.Open(filepath.Join(m.contentDir, hash))
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("content not found: %s", hash)
		}
		return fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("failed to read file: %w", err)
	}
	return nil
}

// Validate verifies that the mirror directories are accessible.
func (m *FileSystemMirror) Validate() error {
	for _, dir := range []string{m.root, m.contentDir} {
		info, err := os.Stat(dir)
		if err != nil {
			return fmt.Errorf("mirror directory not accessible: %w", err)
		}
		if !info.IsDir() {
			return fmt.Errorf("mirror path is not a directory: %s", dir)
		}
	}
	return nil
}

// writeFileAtomic writes data from r to destPath using a temp file and
// rename, cleaning up the temp file on failure. A negative expectedSize
// skips the size check (used when content is encrypted in transit and the
// ciphertext length is unknown up front).
func writeFileAtomic(destPath string, r io.Reader, expectedSize int64) error {
	dir := filepath.Dir(destPath)
	tmpFile, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	written, err := io.Copy(tmpFile, r)
	if err != nil {
		tmpFile.Close()
		return fmt.Errorf("failed to write data: %w", err)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}

	if expectedSize >= 0 && written != expectedSize {
		return fmt.Errorf("size mismatch: expected %d bytes, got %d", expectedSize, written)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	success = true
	return nil
}
