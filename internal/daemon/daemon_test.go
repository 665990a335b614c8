package daemon

import (
	"context"
	"testing"

	"murmur/internal/logging"
	"murmur/internal/testsupport"
)

func TestNewBuildsServiceGraph(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	status := d.Status(context.Background())
	if status.Running {
		t.Fatal("daemon must not run before Start")
	}
	if status.QueuedItems != 0 || status.PendingNotes != 0 {
		t.Fatalf("expected empty state, got %+v", status)
	}
	if status.HasCredential {
		t.Fatal("expected no credential on a fresh store")
	}
	if status.DatabasePath != cfg.DatabasePath() {
		t.Fatalf("unexpected database path %q", status.DatabasePath)
	}
}

func TestStartStopLifecycle(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	d, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer d.Close()

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Status(context.Background()).Running {
		t.Fatal("expected Running after Start")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}

	d.Stop()
	if d.Status(context.Background()).Running {
		t.Fatal("expected stopped after Stop")
	}
	// Stopping twice is harmless.
	d.Stop()
}

func TestSecondInstanceBlockedByLock(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New first: %v", err)
	}
	defer first.Close()
	if err := first.Start(context.Background()); err != nil {
		t.Fatalf("Start first: %v", err)
	}

	second, err := New(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("New second: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		t.Fatal("expected lock contention error for second instance")
	}
}
