package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/elajah-datadog/dogflare/internal/core"
	"github.com/elajah-datadog/dogflare/internal/store/migrations"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteStore implements core.Store and core.History over a SQLite database.
// Ticket entries are stored as JSON values keyed by ticket id, keeping the
// index a simple key-value mapping while every mutation is flushed
// synchronously through the database.
//
// A single mutex serializes operations so no two read-modify-write cycles
// interleave.
type SQLiteStore struct {
	mu   sync.Mutex
	db   *sql.DB
	path string
}

var (
	_ core.Store   = (*SQLiteStore)(nil)
	_ core.History = (*SQLiteStore)(nil)
)

// NewSQLiteStore opens (and migrates) a workspace database.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating workspace database: %w", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite database connection with
// appropriate PRAGMAs. path can be a file path or ":memory:".
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

func (s *SQLiteStore) Get(ticketID string) (core.TicketEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var raw string
	err := s.db.QueryRow("SELECT entry FROM tickets WHERE ticket_id = ?", ticketID).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return core.TicketEntry{}, false, nil
		}
		return core.TicketEntry{}, false, fmt.Errorf("reading ticket %s: %w", ticketID, err)
	}

	var entry core.TicketEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return core.TicketEntry{}, false, fmt.Errorf("decoding ticket %s: %w", ticketID, err)
	}
	return entry, true, nil
}

func (s *SQLiteStore) Set(ticketID string, entry core.TicketEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding ticket %s: %w", ticketID, err)
	}

	_, err = s.db.Exec(
		"INSERT INTO tickets (ticket_id, entry) VALUES (?, ?) ON CONFLICT(ticket_id) DO UPDATE SET entry = excluded.entry",
		ticketID, string(raw),
	)
	if err != nil {
		return fmt.Errorf("writing ticket %s: %w", ticketID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM tickets WHERE ticket_id = ?", ticketID); err != nil {
		return fmt.Errorf("deleting ticket %s: %w", ticketID, err)
	}
	return nil
}

func (s *SQLiteStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query("SELECT ticket_id FROM tickets ORDER BY ticket_id")
	if err != nil {
		return nil, fmt.Errorf("listing tickets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning ticket id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tickets: %w", err)
	}
	return ids, nil
}

func (s *SQLiteStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("DELETE FROM tickets"); err != nil {
		return fmt.Errorf("resetting index: %w", err)
	}
	return nil
}

// RecordRun stores one sync run for the history listing.
func (s *SQLiteStore) RecordRun(run *core.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		"INSERT INTO sync_runs (id, operation, started_at, finished_at, added, duplicates, failures) VALUES (?, ?, ?, ?, ?, ?, ?)",
		run.ID, run.Operation, run.StartedAt, run.FinishedAt, run.Added, run.Duplicates, run.Failures,
	)
	if err != nil {
		return fmt.Errorf("recording sync run: %w", err)
	}
	return nil
}

// RecentRuns returns up to limit runs, most recent first.
func (s *SQLiteStore) RecentRuns(limit int) ([]*core.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.Query(
		"SELECT id, operation, started_at, finished_at, added, duplicates, failures FROM sync_runs ORDER BY started_at DESC LIMIT ?",
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*core.SyncRun
	for rows.Next() {
		var run core.SyncRun
		if err := rows.Scan(&run.ID, &run.Operation, &run.StartedAt, &run.FinishedAt, &run.Added, &run.Duplicates, &run.Failures); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		runs = append(runs, &run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}
	return runs, nil
}

// CheckMigrations verifies the schema is at the latest version.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.CheckStatus(s.db)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
