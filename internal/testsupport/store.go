package testsupport

import (
	"testing"

	"genguard/internal/config"
	"genguard/internal/historystore"
)

// MustOpenStore opens the history store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *historystore.Store {
	t.Helper()

	store, err := historystore.Open(cfg)
	if err != nil {
		t.Fatalf("historystore.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
