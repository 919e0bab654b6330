package testsupport

import (
	"context"
	"testing"

	"membooth/internal/config"
	"membooth/internal/session"
)

// MustOpenStore opens a session.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *session.Store {
	t.Helper()

	store, err := session.Open(cfg)
	if err != nil {
		t.Fatalf("session.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewSession creates a session for tests using the provided store.
func NewSession(t testing.TB, store *session.Store, mementoType session.MementoType) *session.Session {
	t.Helper()

	sess, err := store.NewSession(context.Background(), mementoType)
	if err != nil {
		t.Fatalf("store.NewSession: %v", err)
	}
	return sess
}
