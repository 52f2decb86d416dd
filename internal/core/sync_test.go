package core_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/elajah-datadog/dogflare/internal/archive"
	"github.com/elajah-datadog/dogflare/internal/core"
	"github.com/elajah-datadog/dogflare/internal/mirror"
	"github.com/elajah-datadog/dogflare/internal/store"
	"github.com/elajah-datadog/dogflare/internal/testutil"
)

type syncFixture struct {
	ticketing *testutil.MockTicketingClient
	fetcher   *testutil.MockFetcher
	store     *store.MemoryStore
	root      string
	service   *core.SyncService
}

func newSyncFixture(t *testing.T, m core.Mirror) *syncFixture {
	t.Helper()

	ticketing := testutil.NewMockTicketingClient()
	fetcher := testutil.NewMockFetcher()
	st := store.NewMemoryStore()
	root := t.TempDir()
	logger := core.NewNopLogger()
	reconciler := core.NewReconciler(st, root, logger)

	return &syncFixture{
		ticketing: ticketing,
		fetcher:   fetcher,
		store:     st,
		root:      root,
		service:   core.NewSyncService(ticketing, core.NewDownloader(fetcher), core.NewExpander(nil), reconciler, st, m, logger),
	}
}

func (f *syncFixture) addAttachment(ticketID, fileName string, createdAt time.Time, body []byte) {
	url := "https://example.test/" + ticketID + "/" + fileName
	f.fetcher.AddResource(url, body)
	f.ticketing.AddAttachment(ticketID, core.AttachmentMeta{
		ID:        ticketID + "-" + fileName,
		URL:       url,
		FileName:  fileName,
		CreatedAt: createdAt,
	})
}

func TestSyncService_Sync(t *testing.T) {
	createdAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	t.Run("saves attachments under the dated ticket folder", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.addAttachment("100", "agent.log", createdAt, []byte("log line"))

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 1 {
			t.Errorf("Stats.Added = %d, want 1", report.Stats.Added)
		}
		if len(report.Add.Added) != 1 || report.Add.Added[0] != "100" {
			t.Errorf("Add.Added = %v, want [100]", report.Add.Added)
		}

		wantPath := filepath.Join(f.root, "tickets", "100", "2024-01-15", "agent.log")
		got, err := os.ReadFile(wantPath)
		if err != nil {
			t.Fatalf("reading saved attachment: %v", err)
		}
		if string(got) != "log line" {
			t.Errorf("saved content = %q, want %q", got, "log line")
		}

		entry, ok, _ := f.store.Get("100")
		if !ok {
			t.Fatal("ticket missing from index after sync")
		}
		if len(entry.Attachments) != 1 {
			t.Fatalf("index has %d attachments, want 1", len(entry.Attachments))
		}
		rec := entry.Attachments[0]
		if rec.FileName != "agent.log" || rec.Hash != testutil.SHA256Hex([]byte("log line")) {
			t.Errorf("indexed record = %+v", rec)
		}
	})

	t.Run("identical content across tickets is downloaded once", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		body := []byte("same bytes everywhere")
		f.addAttachment("100", "a.log", createdAt, body)
		f.addAttachment("200", "b.log", createdAt, body)

		report, err := f.service.Sync(context.Background(), []string{"100", "200"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 1 {
			t.Errorf("Stats.Added = %d, want 1", report.Stats.Added)
		}
		if report.Stats.Duplicates != 1 {
			t.Errorf("Stats.Duplicates = %d, want 1", report.Stats.Duplicates)
		}
		if _, err := os.Stat(filepath.Join(f.root, "tickets", "200", "2024-01-15", "b.log")); !os.IsNotExist(err) {
			t.Error("duplicate content was written for the second ticket")
		}
		if _, ok, _ := f.store.Get("200"); ok {
			t.Error("ticket with only duplicate content got an index entry")
		}
	})

	t.Run("re-sync adds nothing", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.addAttachment("100", "agent.log", createdAt, []byte("log line"))

		if _, err := f.service.Sync(context.Background(), []string{"100"}); err != nil {
			t.Fatalf("first Sync() error = %v", err)
		}
		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("second Sync() error = %v", err)
		}
		if report.Stats.Added != 0 {
			t.Errorf("Stats.Added = %d, want 0", report.Stats.Added)
		}
		if report.Stats.Duplicates != 1 {
			t.Errorf("Stats.Duplicates = %d, want 1", report.Stats.Duplicates)
		}
		if len(report.Add.Added) != 0 {
			t.Errorf("Add.Added = %v, want empty", report.Add.Added)
		}
	})

	t.Run("one failing download does not abort the batch", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.addAttachment("100", "good.log", createdAt, []byte("fine"))
		brokenURL := "https://example.test/100/broken.log"
		f.fetcher.FailResource(brokenURL, errors.New("status 500"))
		f.ticketing.AddAttachment("100", core.AttachmentMeta{
			ID:        "100-broken",
			URL:       brokenURL,
			FileName:  "broken.log",
			CreatedAt: createdAt,
		})

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 1 || report.Stats.Failures != 1 {
			t.Errorf("Stats = %+v, want Added=1 Failures=1", report.Stats)
		}
		entry, ok, _ := f.store.Get("100")
		if !ok || len(entry.Attachments) != 1 {
			t.Fatalf("index entry = %+v ok=%v, want one saved attachment", entry, ok)
		}
	})

	t.Run("listing failure counts once and skips the ticket", func(t *testing.T) {
		f := newSyncFixture(t, nil)
		f.ticketing.FailListAttachments(errors.New("status 503"))

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Failures != 1 {
			t.Errorf("Stats.Failures = %d, want 1", report.Stats.Failures)
		}
		if _, ok, _ := f.store.Get("100"); ok {
			t.Error("ticket indexed despite listing failure")
		}
	})

	t.Run("ticket without attachments gets no index entry", func(t *testing.T) {
		f := newSyncFixture(t, nil)

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 0 || report.Stats.Failures != 0 {
			t.Errorf("Stats = %+v, want all zero", report.Stats)
		}
		if _, ok, _ := f.store.Get("100"); ok {
			t.Error("empty ticket got an index entry")
		}
	})

	t.Run("new content is mirrored by digest", func(t *testing.T) {
		m := mirror.NewMemoryMirror("test")
		f := newSyncFixture(t, m)
		body := []byte("mirror me")
		f.addAttachment("100", "agent.log", createdAt, body)

		if _, err := f.service.Sync(context.Background(), []string{"100"}); err != nil {
			t.Fatalf("Sync() error = %v", err)
		}

		ok, err := m.Has(testutil.SHA256Hex(body))
		if err != nil {
			t.Fatalf("Has() error = %v", err)
		}
		if !ok {
			t.Error("saved content missing from mirror")
		}
	})
}

func TestSyncService_SyncArchives(t *testing.T) {
	createdAt := time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

	newFixture := func(t *testing.T) *syncFixture {
		f := newSyncFixture(t, nil)
		// Swap in a real zip-backed expander.
		st := f.store
		logger := core.NewNopLogger()
		reconciler := core.NewReconciler(st, f.root, logger)
		f.service = core.NewSyncService(f.ticketing, core.NewDownloader(f.fetcher), core.NewExpander(archive.OpenZip), reconciler, st, nil, logger)
		return f
	}

	t.Run("expands a downloaded zip next to its record", func(t *testing.T) {
		f := newFixture(t)

		zipPath := filepath.Join(t.TempDir(), "flare.zip")
		testutil.WriteZip(t, zipPath, map[string]string{"flare/agent.log": "zipped line"})
		zipBytes, err := os.ReadFile(zipPath)
		if err != nil {
			t.Fatalf("reading fixture zip: %v", err)
		}
		f.addAttachment("100", "flare.zip", createdAt, zipBytes)

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 1 {
			t.Errorf("Stats.Added = %d, want 1", report.Stats.Added)
		}

		dateDir := filepath.Join(f.root, "tickets", "100", "2024-01-15")
		got, err := os.ReadFile(filepath.Join(dateDir, "flare", "agent.log"))
		if err != nil {
			t.Fatalf("reading expanded file: %v", err)
		}
		if string(got) != "zipped line" {
			t.Errorf("expanded content = %q, want %q", got, "zipped line")
		}
		if _, err := os.Stat(filepath.Join(dateDir, "flare.zip")); !os.IsNotExist(err) {
			t.Error("archive still on disk after expansion")
		}

		// The index records the archive itself, not the expanded files.
		entry, _, _ := f.store.Get("100")
		if len(entry.Attachments) != 1 || entry.Attachments[0].FileName != "flare.zip" {
			t.Errorf("index entry = %+v, want the archive record", entry)
		}
	})

	t.Run("failed expansion keeps the archive and the record", func(t *testing.T) {
		f := newFixture(t)
		f.addAttachment("100", "broken.zip", createdAt, []byte("not a zip"))

		report, err := f.service.Sync(context.Background(), []string{"100"})
		if err != nil {
			t.Fatalf("Sync() error = %v", err)
		}
		if report.Stats.Added != 1 {
			t.Errorf("Stats.Added = %d, want 1", report.Stats.Added)
		}

		archivePath := filepath.Join(f.root, "tickets", "100", "2024-01-15", "broken.zip")
		if _, err := os.Stat(archivePath); err != nil {
			t.Errorf("archive missing after failed expansion: %v", err)
		}
		if _, ok, _ := f.store.Get("100"); !ok {
			t.Error("record dropped because expansion failed")
		}
	})
}
