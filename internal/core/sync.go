package core

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// SyncStats counts per-attachment outcomes across one sync call.
type SyncStats struct {
	Added      int
	Duplicates int
	Failures   int
}

// SyncReport is the outcome of one sync call. Synced holds only tickets with
// at least one newly persisted attachment.
type SyncReport struct {
	Synced map[string][]AttachmentRecord
	Add    AddResult
	Stats  SyncStats
}

// SyncService drives attachment synchronization: it asks the ticketing
// client for attachment metadata, downloads each attachment through the
// hash-gated downloader, expands archives, optionally mirrors new content,
// and hands the successes to the Reconciler.
type SyncService struct {
	ticketing  TicketingClient
	downloader *Downloader
	expander   *Expander
	reconciler *Reconciler
	store      Store
	mirror     Mirror // nil when no mirror is configured
	logger     Logger
}

// NewSyncService creates a SyncService with the provided dependencies.
// mirror may be nil.
func NewSyncService(ticketing TicketingClient, downloader *Downloader, expander *Expander, reconciler *Reconciler, store Store, mirror Mirror, logger Logger) *SyncService {
	return &SyncService{
		ticketing:  ticketing,
		downloader: downloader,
		expander:   expander,
		reconciler: reconciler,
		store:      store,
		mirror:     mirror,
		logger:     logger,
	}
}

// Sync synchronizes the attachments of the given tickets, in order. Tickets
// and attachments are processed strictly one at a time: the known-hash set
// is read-then-inserted by every download, so no second download may start
// until the previous one resolves.
//
// A single attachment failure never aborts its ticket or the batch; only a
// failure to read or persist the index escalates to an error.
func (s *SyncService) Sync(ctx context.Context, ticketIDs []string) (*SyncReport, error) {
	known, err := KnownHashes(s.store)
	if err != nil {
		return nil, fmt.Errorf("seeding known hashes: %w", err)
	}

	report := &SyncReport{Synced: make(map[string][]AttachmentRecord)}

	for _, ticketID := range ticketIDs {
		records, err := s.syncTicket(ctx, ticketID, known, &report.Stats)
		if err != nil {
			return nil, err
		}
		if len(records) > 0 {
			report.Synced[ticketID] = records
		}
	}

	addResult, err := s.reconciler.Add(report.Synced)
	if err != nil {
		return nil, fmt.Errorf("updating workspace index: %w", err)
	}
	report.Add = addResult

	return report, nil
}

// syncTicket downloads every attachment of one ticket. The returned slice
// holds only attachments that were newly saved.
func (s *SyncService) syncTicket(ctx context.Context, ticketID string, known *HashSet, stats *SyncStats) ([]AttachmentRecord, error) {
	metas, err := s.ticketing.ListAttachments(ctx, ticketID)
	if err != nil {
		stats.Failures++
		s.logger.Error("listing attachments failed", "ticket", ticketID, "error", err)
		return nil, nil
	}
	if len(metas) == 0 {
		s.logger.Info("ticket has no attachments", "ticket", ticketID)
		return nil, nil
	}

	var records []AttachmentRecord

	for _, meta := range metas {
		dateDir := filepath.Join(s.reconciler.TicketDir(ticketID), meta.CreatedAt.Format("2006-01-02"))
		if err := os.MkdirAll(dateDir, 0755); err != nil {
			stats.Failures++
			s.logger.Error("creating date folder failed", "ticket", ticketID, "folder", dateDir, "error", err)
			continue
		}

		destPath := filepath.Join(dateDir, meta.FileName)
		result := s.downloader.Download(ctx, meta.URL, destPath, known)

		switch result.Status {
		case DownloadSaved:
			s.mirrorContent(result.Hash, result.Path)
			if IsArchive(result.Path) {
				if _, err := s.expander.Expand(result.Path, dateDir); err != nil {
					// The bytes exist; the record still counts as saved.
					s.logger.Error("archive expansion failed, archive kept on disk", "ticket", ticketID, "file", meta.FileName, "error", err)
				}
			}
			known.Add(result.Hash)
			records = append(records, AttachmentRecord{
				URL:       meta.URL,
				CreatedAt: meta.CreatedAt,
				FileName:  meta.FileName,
				Hash:      result.Hash,
			})
			stats.Added++
			s.logger.Info("attachment saved", "ticket", ticketID, "file", meta.FileName, "hash", result.Hash)

		case DownloadDuplicate:
			stats.Duplicates++
			s.logger.Warn("skipping duplicate content", "ticket", ticketID, "file", meta.FileName)

		case DownloadFailed:
			stats.Failures++
			s.logger.Error("download failed", "ticket", ticketID, "file", meta.FileName, "error", result.Err)
		}
	}

	return records, nil
}

// mirrorContent uploads a freshly saved file to the mirror, keyed by its
// digest. Runs before archive expansion since expansion deletes the archive.
// Best-effort: failures are logged, never propagated.
func (s *SyncService) mirrorContent(hash, path string) {
	if s.mirror == nil {
		return
	}

	f, err := os.Open(path)
	if err != nil {
		s.logger.Error("opening file for mirror failed", "path", path, "error", err)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		s.logger.Error("stat for mirror failed", "path", path, "error", err)
		return
	}

	if err := s.mirror.Put(hash, f, info.Size()); err != nil {
		s.logger.Error("mirroring content failed", "hash", hash, "error", err)
		return
	}
	s.logger.Debug("content mirrored", "hash", hash)
}
