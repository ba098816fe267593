package config

import (
	"context"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Backend != BackendSQLite {
		t.Fatalf("default backend = %v, want sqlite", cfg.Backend)
	}
	if cfg.Concurrency <= 0 {
		t.Fatalf("default concurrency = %d, want > 0", cfg.Concurrency)
	}
}

func TestNewWiresBadgerBackend(t *testing.T) {
	r, err := New(
		WithBackend(BackendBadger),
		WithDBPath(filepath.Join(t.TempDir(), "badger")),
		WithTempDir(t.TempDir()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()

	if _, err := r.GetStats(context.Background()); err != nil {
		t.Fatalf("GetStats: %v", err)
	}
}

func TestNewWiresSQLiteBackend(t *testing.T) {
	r, err := New(
		WithBackend(BackendSQLite),
		WithDBPath(filepath.Join(t.TempDir(), "fp.db")),
		WithTempDir(t.TempDir()),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer r.Close()
}
