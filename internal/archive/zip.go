// Package archive provides the zip implementation of the core's archive
// abstraction.
package archive

import (
	"archive/zip"
	"fmt"
	"strings"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// zipReader adapts archive/zip to core.ArchiveReader.
type zipReader struct {
	rc      *zip.ReadCloser
	entries []core.ArchiveEntry
}

var _ core.ArchiveReader = (*zipReader)(nil)

// OpenZip opens a zip file as a core.ArchiveReader. It satisfies
// core.ArchiveOpener.
func OpenZip(path string) (core.ArchiveReader, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		// ErrInsecurePath still hands back an open reader.
		if rc != nil {
			rc.Close()
		}
		return nil, fmt.Errorf("opening zip: %w", err)
	}

	entries := make([]core.ArchiveEntry, 0, len(rc.File))
	for _, f := range rc.File {
		entries = append(entries, core.ArchiveEntry{
			RelativePath: f.Name,
			IsDir:        f.FileInfo().IsDir() || strings.HasSuffix(f.Name, "/"),
			Open:         f.Open,
		})
	}

	return &zipReader{rc: rc, entries: entries}, nil
}

func (r *zipReader) Entries() []core.ArchiveEntry { return r.entries }

func (r *zipReader) Close() error { return r.rc.Close() }
