package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/elajah-datadog/dogflare/internal/core"
	"github.com/elajah-datadog/dogflare/internal/testutil"
)

func TestDownloader_Download(t *testing.T) {
	t.Run("saves new content and reports its digest", func(t *testing.T) {
		fetcher := testutil.NewMockFetcher()
		body := []byte("flare bytes")
		fetcher.AddResource("https://example.test/a.bin", body)

		dest := filepath.Join(t.TempDir(), "a.bin")
		d := core.NewDownloader(fetcher)

		result := d.Download(context.Background(), "https://example.test/a.bin", dest, core.NewHashSet())
		if result.Status != core.DownloadSaved {
			t.Fatalf("Download() status = %v, err = %v, want DownloadSaved", result.Status, result.Err)
		}
		if result.Path != dest {
			t.Errorf("Download() path = %s, want %s", result.Path, dest)
		}
		if want := testutil.SHA256Hex(body); result.Hash != want {
			t.Errorf("Download() hash = %s, want %s", result.Hash, want)
		}

		got, err := os.ReadFile(dest)
		if err != nil {
			t.Fatalf("reading destination: %v", err)
		}
		if string(got) != string(body) {
			t.Errorf("destination content = %q, want %q", got, body)
		}
		if _, err := os.Stat(dest + ".temp"); !os.IsNotExist(err) {
			t.Error("temp file was not cleaned up")
		}
	})

	t.Run("discards known content as duplicate", func(t *testing.T) {
		fetcher := testutil.NewMockFetcher()
		body := []byte("already stored")
		fetcher.AddResource("https://example.test/dup.bin", body)

		dest := filepath.Join(t.TempDir(), "dup.bin")
		d := core.NewDownloader(fetcher)
		known := core.NewHashSet(testutil.SHA256Hex(body))

		result := d.Download(context.Background(), "https://example.test/dup.bin", dest, known)
		if result.Status != core.DownloadDuplicate {
			t.Fatalf("Download() status = %v, want DownloadDuplicate", result.Status)
		}

		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("duplicate content was written to destination")
		}
		if _, err := os.Stat(dest + ".temp"); !os.IsNotExist(err) {
			t.Error("temp file was not cleaned up")
		}
	})

	t.Run("fetch failure reports failed without touching disk", func(t *testing.T) {
		fetcher := testutil.NewMockFetcher()
		fetcher.FailResource("https://example.test/gone.bin", errors.New("status 404"))

		dest := filepath.Join(t.TempDir(), "gone.bin")
		d := core.NewDownloader(fetcher)

		result := d.Download(context.Background(), "https://example.test/gone.bin", dest, core.NewHashSet())
		if result.Status != core.DownloadFailed {
			t.Fatalf("Download() status = %v, want DownloadFailed", result.Status)
		}
		if result.Err == nil {
			t.Error("Download() failed result carries no error")
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("destination exists after failed fetch")
		}
	})

	t.Run("mid-stream failure removes the temp file", func(t *testing.T) {
		fetcher := testutil.NewMockFetcher()
		fetcher.AddResource("https://example.test/cut.bin", []byte("this body will be truncated"))
		fetcher.FailAfter = 4

		dest := filepath.Join(t.TempDir(), "cut.bin")
		d := core.NewDownloader(fetcher)

		result := d.Download(context.Background(), "https://example.test/cut.bin", dest, core.NewHashSet())
		if result.Status != core.DownloadFailed {
			t.Fatalf("Download() status = %v, want DownloadFailed", result.Status)
		}
		if _, err := os.Stat(dest + ".temp"); !os.IsNotExist(err) {
			t.Error("temp file left behind after stream failure")
		}
		if _, err := os.Stat(dest); !os.IsNotExist(err) {
			t.Error("destination exists after stream failure")
		}
	})
}
