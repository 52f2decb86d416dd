package testutil

import (
	"testing"

	"github.com/elajah-datadog/dogflare/internal/store"
)

// NewTestStore creates an in-memory SQLite workspace store with the schema
// applied. The store is automatically closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	st, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open workspace store: %v", err)
	}

	t.Cleanup(func() {
		st.Close()
	})

	return st
}
