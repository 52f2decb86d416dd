package core

import (
	"context"
	"fmt"
	"io"
	"os"
)

// Fetcher opens an authenticated GET to a remote resource and returns its
// body as a stream. Implementations must return an error for any non-success
// HTTP status. The ticketing client provides the production implementation
// since attachment URLs require its credentials.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

// DownloadStatus discriminates the outcome of a download.
type DownloadStatus int

const (
	// DownloadSaved means the file was written to its destination path.
	DownloadSaved DownloadStatus = iota
	// DownloadDuplicate means identical content already exists in the
	// workspace; nothing was written. This is a control signal, not an error.
	DownloadDuplicate
	// DownloadFailed means a network or I/O failure; any partial file was
	// removed.
	DownloadFailed
)

// DownloadResult reports the outcome of a single download.
// Path and Hash are set only when Status is DownloadSaved.
// Err is set only when Status is DownloadFailed.
type DownloadResult struct {
	Status DownloadStatus
	Path   string
	Hash   string
	Err    error
}

// Downloader retrieves remote resources, hashing them as they stream to disk
// and discarding any whose content digest is already known.
type Downloader struct {
	fetcher Fetcher
}

// NewDownloader creates a Downloader that fetches through the given Fetcher.
func NewDownloader(fetcher Fetcher) *Downloader {
	return &Downloader{fetcher: fetcher}
}

// Download streams the resource at url to destPath while computing its
// SHA-256 digest. The body is written to a temporary sibling
// (destPath + ".temp") first; the temp file is renamed into place only when
// the digest is not in known. If the digest is already known the temp file
// is deleted and the result is DownloadDuplicate. Any failure deletes the
// temp file before reporting DownloadFailed.
//
// The duplicate check happens here, before any archive handling downstream,
// so a duplicate archive is never expanded twice.
func (d *Downloader) Download(ctx context.Context, url, destPath string, known *HashSet) DownloadResult {
	body, err := d.fetcher.Fetch(ctx, url)
	if err != nil {
		return DownloadResult{Status: DownloadFailed, Err: fmt.Errorf("fetching %s: %w", url, err)}
	}
	defer body.Close()

	tempPath := destPath + ".temp"
	f, err := os.Create(tempPath)
	if err != nil {
		return DownloadResult{Status: DownloadFailed, Err: fmt.Errorf("creating temp file: %w", err)}
	}

	hasher := NewHasher()
	_, err = io.Copy(io.MultiWriter(f, hasher), body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tempPath)
		return DownloadResult{Status: DownloadFailed, Err: fmt.Errorf("streaming %s: %w", url, err)}
	}

	digest := hasher.HexSum()
	if known.Contains(digest) {
		if err := os.Remove(tempPath); err != nil {
			return DownloadResult{Status: DownloadFailed, Err: fmt.Errorf("removing duplicate temp file: %w", err)}
		}
		return DownloadResult{Status: DownloadDuplicate}
	}

	if err := os.Rename(tempPath, destPath); err != nil {
		os.Remove(tempPath)
		return DownloadResult{Status: DownloadFailed, Err: fmt.Errorf("finalizing download: %w", err)}
	}

	return DownloadResult{Status: DownloadSaved, Path: destPath, Hash: digest}
}
