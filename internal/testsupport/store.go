package testsupport

import (
	"testing"

	"murmur/internal/config"
	"murmur/internal/store"
)

// MustOpenKV opens a SQLite key-value store for tests and registers cleanup.
func MustOpenKV(t testing.TB, cfg *config.Config) *store.SQLite {
	t.Helper()

	kv, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		kv.Close()
	})
	return kv
}
