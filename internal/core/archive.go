package core

import (
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ArchiveEntry is the narrow view of one archive member the expander needs.
// RelativePath always uses forward slashes.
type ArchiveEntry struct {
	RelativePath string
	IsDir        bool
	Open         func() (io.ReadCloser, error)
}

// ArchiveReader enumerates the entries of an open archive.
type ArchiveReader interface {
	Entries() []ArchiveEntry
	Close() error
}

// ArchiveOpener opens an archive file for reading. The zip implementation
// lives in internal/archive; the expander depends only on this capability.
type ArchiveOpener func(path string) (ArchiveReader, error)

// Expander extracts container archives into collision-free folders.
type Expander struct {
	open ArchiveOpener
}

// NewExpander creates an Expander using the given opener.
func NewExpander(open ArchiveOpener) *Expander {
	return &Expander{open: open}
}

// Expand extracts archivePath into a new folder under destFolder and deletes
// the archive on success. The folder is named after the archive's single
// top-level directory when it has one (with that shared leading segment
// stripped from every entry), otherwise after the archive's base filename
// without extension. An existing folder of the same name is never touched;
// a numeric suffix ("name(1)", "name(2)", ...) is appended until a free name
// is found.
//
// On failure the archive stays on disk and partially extracted files are
// left in place; a retried sync sees a folder-name collision instead.
func (e *Expander) Expand(archivePath, destFolder string) (string, error) {
	r, err := e.open(archivePath)
	if err != nil {
		return "", fmt.Errorf("opening archive %s: %w", archivePath, err)
	}
	defer r.Close()

	entries := r.Entries()
	for _, entry := range entries {
		p := strings.Trim(entry.RelativePath, "/")
		if p == "" {
			continue
		}
		if !filepath.IsLocal(filepath.FromSlash(p)) {
			return "", fmt.Errorf("archive entry escapes destination: %s", entry.RelativePath)
		}
	}

	root, rooted := singleRoot(entries)
	if !rooted {
		base := filepath.Base(archivePath)
		root = strings.TrimSuffix(base, filepath.Ext(base))
	}

	target, err := reserveFolder(destFolder, root)
	if err != nil {
		return "", err
	}

	for _, entry := range entries {
		rel := entry.RelativePath
		if rooted {
			rel = strings.TrimPrefix(strings.TrimPrefix(rel, root), "/")
		}
		if rel == "" {
			continue
		}
		dest := filepath.Join(target, filepath.FromSlash(rel))
		if entry.IsDir {
			if err := os.MkdirAll(dest, 0755); err != nil {
				return "", fmt.Errorf("creating directory %s: %w", dest, err)
			}
			continue
		}
		if err := extractFile(entry, dest); err != nil {
			return "", err
		}
	}

	if err := os.Remove(archivePath); err != nil {
		return "", fmt.Errorf("removing expanded archive: %w", err)
	}
	return target, nil
}

// singleRoot reports whether every entry lives under one shared leading
// directory segment, and returns that segment. A lone file with no directory
// component does not count as a root: stripping it would leave nothing to
// extract.
func singleRoot(entries []ArchiveEntry) (string, bool) {
	root := ""
	sawDir := false
	for _, entry := range entries {
		p := strings.Trim(entry.RelativePath, "/")
		if p == "" {
			continue
		}
		first, _, found := strings.Cut(p, "/")
		if found || entry.IsDir {
			sawDir = true
		}
		if root == "" {
			root = first
		} else if first != root {
			return "", false
		}
	}
	if root == "" || !sawDir {
		return "", false
	}
	return root, true
}

// reserveFolder creates a new folder named name under parent, appending
// "(1)", "(2)", ... while the name is taken. Existing folders are never
// overwritten.
func reserveFolder(parent, name string) (string, error) {
	candidate := filepath.Join(parent, name)
	for n := 1; ; n++ {
		err := os.Mkdir(candidate, 0755)
		if err == nil {
			return candidate, nil
		}
		if !os.IsExist(err) {
			return "", fmt.Errorf("creating extraction folder: %w", err)
		}
		candidate = filepath.Join(parent, fmt.Sprintf("%s(%d)", name, n))
	}
}

func extractFile(entry ArchiveEntry, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("creating parent directory for %s: %w", entry.RelativePath, err)
	}

	src, err := entry.Open()
	if err != nil {
		return fmt.Errorf("opening archive entry %s: %w", entry.RelativePath, err)
	}
	defer src.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	_, err = io.Copy(f, src)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("extracting %s: %w", entry.RelativePath, err)
	}
	return nil
}

// IsArchive reports whether p has the container extension the expander
// recognizes.
func IsArchive(p string) bool {
	return strings.EqualFold(path.Ext(p), ".zip")
}
