package store

import (
	"sort"
	"sync"

	"github.com/elajah-datadog/dogflare/internal/core"
)

// MemoryStore is an in-memory implementation of core.Store and core.History.
// Use in tests; nothing survives the process.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]core.TicketEntry
	runs    []*core.SyncRun
}

var (
	_ core.Store   = (*MemoryStore)(nil)
	_ core.History = (*MemoryStore)(nil)
)

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]core.TicketEntry)}
}

func (s *MemoryStore) Get(ticketID string) (core.TicketEntry, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[ticketID]
	return entry, ok, nil
}

func (s *MemoryStore) Set(ticketID string, entry core.TicketEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[ticketID] = entry
	return nil
}

func (s *MemoryStore) Delete(ticketID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, ticketID)
	return nil
}

func (s *MemoryStore) Keys() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.entries))
	for id := range s.entries {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *MemoryStore) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]core.TicketEntry)
	return nil
}

func (s *MemoryStore) RecordRun(run *core.SyncRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs = append(s.runs, run)
	return nil
}

func (s *MemoryStore) RecentRuns(limit int) ([]*core.SyncRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	runs := make([]*core.SyncRun, 0, limit)
	for i := len(s.runs) - 1; i >= 0 && len(runs) < limit; i-- {
		runs = append(runs, s.runs[i])
	}
	return runs, nil
}
