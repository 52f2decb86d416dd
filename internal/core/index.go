package core

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// AttachmentRecord is one downloaded file as recorded in the workspace index.
// Hash is empty until the download completes; a persisted record always has
// a non-empty Hash, unique across the entire index.
type AttachmentRecord struct {
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	FileName  string    `json:"fileName"`
	Hash      string    `json:"hash"`
}

// TicketEntry is one ticket's local state. An entry exists in the index only
// if at least one attachment for that ticket was successfully persisted.
type TicketEntry struct {
	Attachments []AttachmentRecord `json:"attachments"`
}

// Store is the persisted workspace index: a mapping from ticket id to
// TicketEntry, flushed synchronously on every mutation. It is the single
// source of truth for what has been downloaded.
type Store interface {
	// Get returns the entry for a ticket id. ok is false if the id is absent.
	Get(ticketID string) (entry TicketEntry, ok bool, err error)

	// Set inserts or replaces the entry for a ticket id.
	Set(ticketID string, entry TicketEntry) error

	// Delete removes the entry for a ticket id. Deleting an absent id is a
	// no-op.
	Delete(ticketID string) error

	// Keys returns every ticket id in the index, sorted.
	Keys() ([]string, error)

	// Reset replaces the whole index with an empty mapping.
	Reset() error
}

// TicketStatus pairs a ticket id with its current status at the service.
type TicketStatus struct {
	ID     string
	Status string
}

// AddResult reports the outcome of Reconciler.Add.
type AddResult struct {
	Added          []string
	AlreadyPresent []string
}

// RemoveResult reports the outcome of Reconciler.Remove. FailedDeletions
// maps ticket ids whose index entry was removed but whose on-disk folder
// could not be deleted to the deletion error.
type RemoveResult struct {
	Removed         []string
	NotFound        []string
	FailedDeletions map[string]error
}

// closedStatuses are the service statuses that mark a ticket as finished.
// Matching is case-insensitive.
var closedStatuses = map[string]bool{
	"solved": true,
	"closed": true,
}

// Reconciler owns all mutations of the workspace index and keeps the on-disk
// ticket folders in lockstep with it. Index and filesystem may transiently
// diverge when a folder deletion fails; the index is still updated and the
// failure reported separately.
type Reconciler struct {
	store  Store
	root   string // downloads root; ticket folders live at <root>/tickets/<id>
	logger Logger
}

// NewReconciler creates a Reconciler over the given store. root is the
// downloads root directory.
func NewReconciler(store Store, root string, logger Logger) *Reconciler {
	return &Reconciler{store: store, root: root, logger: logger}
}

// TicketDir returns the on-disk folder for a ticket id.
func (r *Reconciler) TicketDir(ticketID string) string {
	return filepath.Join(r.root, "tickets", ticketID)
}

// Add merges newly synced attachments into the index. A ticket id not yet in
// the index is inserted with its attachments; an id already present is left
// untouched (an existing ticket is immutable once created) and reported as
// already-present. Ticket ids with no attachments are skipped: empty entries
// are never retained.
//
// A store write failure is returned immediately: silent failure here would
// desynchronize memory and persisted state.
func (r *Reconciler) Add(newEntries map[string][]AttachmentRecord) (AddResult, error) {
	var result AddResult

	ids := make([]string, 0, len(newEntries))
	for id := range newEntries {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		records := newEntries[id]
		if len(records) == 0 {
			continue
		}
		_, ok, err := r.store.Get(id)
		if err != nil {
			return result, fmt.Errorf("reading index entry %s: %w", id, err)
		}
		if ok {
			result.AlreadyPresent = append(result.AlreadyPresent, id)
			r.logger.Warn("ticket already in index, keeping existing entry", "ticket", id)
			continue
		}
		if err := r.store.Set(id, TicketEntry{Attachments: records}); err != nil {
			return result, fmt.Errorf("persisting index entry %s: %w", id, err)
		}
		result.Added = append(result.Added, id)
		r.logger.Info("ticket added to index", "ticket", id, "attachments", len(records))
	}

	return result, nil
}

// Remove deletes the given ticket ids from the index and recursively deletes
// their on-disk folder trees. A missing folder is a no-op; any other deletion
// error is recorded per-id without aborting the rest of the batch. Ids absent
// from the index are reported as not-found and touch nothing on disk.
func (r *Reconciler) Remove(ticketIDs []string) (RemoveResult, error) {
	result := RemoveResult{FailedDeletions: make(map[string]error)}

	for _, id := range ticketIDs {
		_, ok, err := r.store.Get(id)
		if err != nil {
			return result, fmt.Errorf("reading index entry %s: %w", id, err)
		}
		if !ok {
			result.NotFound = append(result.NotFound, id)
			continue
		}

		if err := r.store.Delete(id); err != nil {
			return result, fmt.Errorf("deleting index entry %s: %w", id, err)
		}
		result.Removed = append(result.Removed, id)

		// RemoveAll tolerates a missing tree.
		if err := os.RemoveAll(r.TicketDir(id)); err != nil {
			result.FailedDeletions[id] = err
			r.logger.Error("folder deletion failed", "ticket", id, "error", err)
			continue
		}
		r.logger.Info("ticket removed", "ticket", id)
	}

	return result, nil
}

// ScrubByStatus removes every ticket whose status marks it solved or closed.
// Statuses are matched case-insensitively. If nothing matches it is a no-op.
func (r *Reconciler) ScrubByStatus(statuses []TicketStatus) (RemoveResult, error) {
	var ids []string
	for _, s := range statuses {
		if closedStatuses[strings.ToLower(s.Status)] {
			ids = append(ids, s.ID)
		}
	}
	if len(ids) == 0 {
		r.logger.Info("no solved or closed tickets to scrub")
		return RemoveResult{FailedDeletions: make(map[string]error)}, nil
	}
	return r.Remove(ids)
}

// Reset clears the whole index. On-disk folders are left alone.
func (r *Reconciler) Reset() error {
	if err := r.store.Reset(); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	return nil
}

// KnownHashes collects every content digest currently in the index into a
// HashSet. The orchestrator seeds its per-run set from this at the start of
// each sync pass.
func KnownHashes(store Store) (*HashSet, error) {
	ids, err := store.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing index keys: %w", err)
	}

	set := NewHashSet()
	for _, id := range ids {
		entry, ok, err := store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("reading index entry %s: %w", id, err)
		}
		if !ok {
			continue
		}
		for _, a := range entry.Attachments {
			if a.Hash != "" {
				set.Add(a.Hash)
			}
		}
	}
	return set, nil
}
