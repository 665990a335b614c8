package diaglog_test

import (
	"context"
	"fmt"
	"testing"

	"murmur/internal/diaglog"
	"murmur/internal/logging"
	"murmur/internal/testsupport"
)

func TestSinkAppendAndClear(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	sink := diaglog.NewSink(kv, logging.NewNop(), 10)
	ctx := context.Background()

	sink.Append(ctx, "syncqueue", "item dropped")
	sink.Append(ctx, "quota", "cleanup ran")

	entries, err := sink.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Component != "syncqueue" || entries[1].Component != "quota" {
		t.Fatalf("unexpected entry order: %+v", entries)
	}

	if err := sink.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	entries, err = sink.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries after clear: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected empty log after clear, got %d entries", len(entries))
	}
}

func TestSinkCapsEntries(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	sink := diaglog.NewSink(kv, logging.NewNop(), 3)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		sink.Append(ctx, "test", fmt.Sprintf("entry %d", i))
	}

	entries, err := sink.Entries(ctx)
	if err != nil {
		t.Fatalf("Entries: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected cap of 3 entries, got %d", len(entries))
	}
	if entries[0].Message != "entry 2" {
		t.Fatalf("expected oldest retained entry to be 'entry 2', got %q", entries[0].Message)
	}
}
