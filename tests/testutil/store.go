// Package testutil holds helpers shared by package tests.
package testutil

import (
	"context"
	"testing"

	"github.com/nhle/redtime/internal/model"
	"github.com/nhle/redtime/internal/store"
)

// NewTestStore creates an in-memory journal with all migrations applied.
// It is closed when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// MustRecord journals m and returns its id, failing the test on error.
func MustRecord(t *testing.T, s store.Store, m model.Mutation) string {
	t.Helper()

	id, err := s.RecordMutation(context.Background(), m)
	if err != nil {
		t.Fatalf("recording %s %s: %v", m.Operation, m.Resource, err)
	}
	return id
}
