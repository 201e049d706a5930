package testsupport

import (
	"testing"

	"easel/internal/config"
	"easel/internal/logging"
	"easel/internal/queue"
)

// MustOpenStore opens a queue.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("open queue store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close queue store: %v", err)
		}
	})
	return store
}
