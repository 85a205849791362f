package testsupport

import (
	"context"
	"testing"

	"comicreel/internal/history"
)

// MustOpenHistory opens a history store for tests and registers cleanup.
func MustOpenHistory(t testing.TB, dbPath string) *history.Store {
	t.Helper()

	store, err := history.Open(dbPath)
	if err != nil {
		t.Fatalf("history.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// AddRecord inserts a conversion record and fails the test on error.
func AddRecord(t testing.TB, store *history.Store, rec history.Record) int64 {
	t.Helper()

	id, err := store.Add(context.Background(), rec)
	if err != nil {
		t.Fatalf("store.Add: %v", err)
	}
	return id
}
