package app

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/elajah-datadog/dogflare/internal/archive"
	"github.com/elajah-datadog/dogflare/internal/config"
	"github.com/elajah-datadog/dogflare/internal/core"
	"github.com/elajah-datadog/dogflare/internal/encryption"
	"github.com/elajah-datadog/dogflare/internal/mirror"
	"github.com/elajah-datadog/dogflare/internal/store"
	"github.com/elajah-datadog/dogflare/internal/zendesk"
)

// App is the application layer between the CLI and the core services.
// It constructs all dependencies from config, exposes high-level operations,
// and manages store and log-file lifecycle on Close.
type App struct {
	cfg        *config.Config
	store      *store.SQLiteStore
	client     *zendesk.Client
	reconciler *core.Reconciler
	service    *core.SyncService
	mirror     core.Mirror
	encryptor  core.Encryptor
	logger     core.Logger
	clock      core.Clock

	run      *core.SyncRun
	mutating bool
	logFile  *os.File
}

// TicketListing pairs a ticket id with its indexed entry for `dogflare list`.
type TicketListing struct {
	TicketID string
	Entry    core.TicketEntry
}

// NewApp creates a fully wired App from the given config. operation
// identifies the CLI command being run (e.g. "Sync", "Remove"). The caller
// must call Close when done.
func NewApp(cfg *config.Config, operation string) (*App, error) {
	if cfg.DownloadsRoot == "" {
		return nil, fmt.Errorf("downloads_root not configured")
	}

	idgen := core.UUIDGenerator{}
	runID := idgen.New()

	logger, logFile, err := newLogger(cfg.LogDir, runID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	log := &slogAdapter{l: logger}

	st, err := store.NewStoreFromConfig(cfg.Database)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("opening workspace database: %w", err)
	}

	client, err := zendesk.NewClient(cfg.Zendesk)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating ticketing client: %w", err)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	mir, err := mirror.NewMirrorFromConfig(cfg.Mirror, enc)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating mirror: %w", err)
	}

	reconciler := core.NewReconciler(st, cfg.DownloadsRoot, log)
	service := core.NewSyncService(
		client,
		core.NewDownloader(client),
		core.NewExpander(archive.OpenZip),
		reconciler,
		st,
		mir,
		log,
	)

	clock := core.RealClock{}
	run := &core.SyncRun{
		ID:        runID,
		Operation: operation,
		StartedAt: clock.Now(),
	}

	return &App{
		cfg:        cfg,
		store:      st,
		client:     client,
		reconciler: reconciler,
		service:    service,
		mirror:     mir,
		encryptor:  enc,
		logger:     log,
		clock:      clock,
		run:        run,
		logFile:    logFile,
	}, nil
}

// Sync synchronizes the attachments of the given tickets.
func (a *App) Sync(ctx context.Context, ticketIDs []string) (*core.SyncReport, error) {
	a.mutating = true

	report, err := a.service.Sync(ctx, ticketIDs)
	if err != nil {
		a.run.Failures++
		return nil, err
	}

	a.run.Added += report.Stats.Added
	a.run.Duplicates += report.Stats.Duplicates
	a.run.Failures += report.Stats.Failures
	return report, nil
}

// SyncAssignee resolves an assignee email to their open tickets and syncs
// them. An empty email falls back to the configured Zendesk account email.
func (a *App) SyncAssignee(ctx context.Context, email string) (*core.SyncReport, error) {
	if email == "" {
		email = a.cfg.Zendesk.Email
	}

	assigneeID, found, err := a.client.SearchAssigneeID(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("resolving assignee: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no user found for %s", email)
	}

	ticketIDs, err := a.client.ListOpenTicketIDs(ctx, assigneeID)
	if err != nil {
		return nil, fmt.Errorf("listing open tickets: %w", err)
	}
	if len(ticketIDs) == 0 {
		a.logger.Info("assignee has no open tickets", "assignee", email)
		return &core.SyncReport{Synced: map[string][]core.AttachmentRecord{}}, nil
	}

	return a.Sync(ctx, ticketIDs)
}

// SyncAssigneeOrTickets normalizes the CLI's two entry points: explicit
// ticket ids win; otherwise the assignee's open tickets are synced.
func (a *App) SyncAssigneeOrTickets(ctx context.Context, assignee string, ticketIDs []string) (*core.SyncReport, error) {
	if len(ticketIDs) > 0 {
		return a.Sync(ctx, ticketIDs)
	}
	return a.SyncAssignee(ctx, assignee)
}

// Remove deletes the given tickets from the index and their folders from
// disk.
func (a *App) Remove(ticketIDs []string) (core.RemoveResult, error) {
	a.mutating = true
	return a.reconciler.Remove(ticketIDs)
}

// Scrub fetches the current status of every indexed ticket and removes the
// solved and closed ones.
func (a *App) Scrub(ctx context.Context) (core.RemoveResult, error) {
	ids, err := a.store.Keys()
	if err != nil {
		return core.RemoveResult{}, fmt.Errorf("listing indexed tickets: %w", err)
	}
	if len(ids) == 0 {
		a.logger.Info("workspace index is empty, nothing to scrub")
		return core.RemoveResult{FailedDeletions: map[string]error{}}, nil
	}

	statuses, err := a.client.FetchTicketStatuses(ctx, ids)
	if err != nil {
		return core.RemoveResult{}, fmt.Errorf("fetching ticket statuses: %w", err)
	}

	a.mutating = true
	return a.reconciler.ScrubByStatus(statuses)
}

// List returns every indexed ticket with its attachments, sorted by id.
func (a *App) List() ([]TicketListing, error) {
	ids, err := a.store.Keys()
	if err != nil {
		return nil, fmt.Errorf("listing indexed tickets: %w", err)
	}
	sort.Strings(ids)

	listings := make([]TicketListing, 0, len(ids))
	for _, id := range ids {
		entry, ok, err := a.store.Get(id)
		if err != nil {
			return nil, fmt.Errorf("reading ticket %s: %w", id, err)
		}
		if !ok {
			continue
		}
		listings = append(listings, TicketListing{TicketID: id, Entry: entry})
	}
	return listings, nil
}

// Reset clears the whole workspace index. Downloaded files stay on disk.
func (a *App) Reset() error {
	a.mutating = true
	return a.reconciler.Reset()
}

// History returns the most recent sync runs.
func (a *App) History(limit int) ([]*core.SyncRun, error) {
	return a.store.RecentRuns(limit)
}

// MirrorValidate verifies that the configured mirror is reachable.
func (a *App) MirrorValidate() error {
	if a.mirror == nil {
		return fmt.Errorf("no mirror configured")
	}
	return a.mirror.Validate()
}

// MirrorInit performs one-time key generation for mirror encryption.
func (a *App) MirrorInit(passphrase string) error {
	if a.encryptor.IsConfigured() {
		return fmt.Errorf("encryption keys already exist")
	}
	return a.encryptor.Setup(passphrase)
}

// Close records the run (for mutating commands) and closes all resources.
// History recording is best-effort; a failure there is logged, not returned.
func (a *App) Close() error {
	a.recordRunIfMutating()

	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing workspace database: %w", err)
	}

	if a.logFile != nil {
		a.logFile.Close()
	}

	return firstErr
}

// recordRunIfMutating stamps the finish time and stores the run when the
// command changed workspace state.
func (a *App) recordRunIfMutating() {
	if !a.mutating {
		return
	}
	a.run.FinishedAt = a.clock.Now()
	if err := a.store.RecordRun(a.run); err != nil {
		a.logger.Error("recording sync run failed", "error", err)
	}
}
