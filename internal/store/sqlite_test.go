package store_test

import (
	"bytes"
	"context"
	"slices"
	"testing"

	"murmur/internal/store"
	"murmur/internal/testsupport"
)

func TestSQLiteRoundTrip(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := kv.Set(ctx, "alpha", []byte("one")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := kv.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !bytes.Equal(got, []byte("one")) {
		t.Fatalf("expected %q, got %q", "one", got)
	}

	if err := kv.Set(ctx, "alpha", []byte("two")); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	got, err = kv.Get(ctx, "alpha")
	if err != nil {
		t.Fatalf("Get after overwrite: %v", err)
	}
	if !bytes.Equal(got, []byte("two")) {
		t.Fatalf("expected overwrite to %q, got %q", "two", got)
	}
}

func TestSQLiteMissingKeyIsNil(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))

	got, err := kv.Get(context.Background(), "missing")
	if err != nil {
		t.Fatalf("Get missing key returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil value for missing key, got %q", got)
	}
}

func TestSQLiteRemove(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()

	if err := kv.Set(ctx, "gone", []byte("soon")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := kv.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	got, err := kv.Get(ctx, "gone")
	if err != nil || got != nil {
		t.Fatalf("expected removed key to read (nil, nil), got %q err=%v", got, err)
	}

	// Removing an absent key is a no-op, not an error.
	if err := kv.Remove(ctx, "gone"); err != nil {
		t.Fatalf("Remove absent key: %v", err)
	}
}

func TestSQLiteKeys(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	ctx := context.Background()

	for _, key := range []string{"b", "a", "c"} {
		if err := kv.Set(ctx, key, []byte(key)); err != nil {
			t.Fatalf("Set %q: %v", key, err)
		}
	}
	keys, err := kv.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys: %v", err)
	}
	if !slices.Equal(keys, []string{"a", "b", "c"}) {
		t.Fatalf("expected sorted keys, got %v", keys)
	}
}

func TestSQLiteEstimateUsage(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	cfg.Storage.BudgetBytes = 1 << 20
	kv := testsupport.MustOpenKV(t, cfg)
	ctx := context.Background()

	if err := kv.Set(ctx, "blob", bytes.Repeat([]byte{0xAB}, 32*1024)); err != nil {
		t.Fatalf("Set: %v", err)
	}

	usage, err := kv.EstimateUsage(ctx)
	if err != nil {
		t.Fatalf("EstimateUsage: %v", err)
	}
	if usage.UsedBytes <= 0 {
		t.Fatalf("expected positive usage, got %d", usage.UsedBytes)
	}
	if usage.UsedBytes+usage.AvailableBytes < cfg.Storage.BudgetBytes && usage.AvailableBytes != 0 {
		t.Fatalf("usage does not cover budget: used=%d available=%d budget=%d",
			usage.UsedBytes, usage.AvailableBytes, cfg.Storage.BudgetBytes)
	}
}

func TestSQLitePersistsAcrossReopen(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	ctx := context.Background()

	first, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Set(ctx, "durable", []byte("value")); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()

	got, err := second.Get(ctx, "durable")
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if string(got) != "value" {
		t.Fatalf("expected value to survive reopen, got %q", got)
	}
}
