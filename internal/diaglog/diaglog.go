// Package diaglog keeps a small capped ring of diagnostic entries in the
// durable store. It is the lowest-value data in the system: the storage quota
// governor's cleanup cascade clears it first.
package diaglog

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"murmur/internal/logging"
	"murmur/internal/store"
)

// RecordKey is the store record holding the diagnostic entry ring.
const RecordKey = "diagnostics"

const defaultCap = 200

// Entry is one appended diagnostic event.
type Entry struct {
	At        time.Time `json:"at"`
	Component string    `json:"component"`
	Message   string    `json:"message"`
}

// Sink appends diagnostic entries to the durable store, dropping the oldest
// once the cap is reached.
type Sink struct {
	kv     store.KV
	logger *slog.Logger
	cap    int
}

// NewSink constructs a sink. A cap below one falls back to the default.
func NewSink(kv store.KV, logger *slog.Logger, capacity int) *Sink {
	if capacity < 1 {
		capacity = defaultCap
	}
	return &Sink{
		kv:     kv,
		logger: logging.NewComponentLogger(logger, "diaglog"),
		cap:    capacity,
	}
}

// Append records an entry. Persistence failures are logged and swallowed; the
// sink must never fail the operation that produced the diagnostic.
func (s *Sink) Append(ctx context.Context, component, message string) {
	entries, err := s.load(ctx)
	if err != nil {
		s.logger.Warn("diagnostic log unreadable, starting fresh", logging.Error(err))
		entries = nil
	}

	entries = append(entries, Entry{At: time.Now().UTC(), Component: component, Message: message})
	if len(entries) > s.cap {
		entries = entries[len(entries)-s.cap:]
	}

	if err := s.save(ctx, entries); err != nil {
		s.logger.Warn("failed to persist diagnostic entry", logging.Error(err))
	}
}

// Entries returns the retained entries, oldest first.
func (s *Sink) Entries(ctx context.Context) ([]Entry, error) {
	return s.load(ctx)
}

// Clear removes the whole diagnostic record.
func (s *Sink) Clear(ctx context.Context) error {
	return s.kv.Remove(ctx, RecordKey)
}

func (s *Sink) load(ctx context.Context) ([]Entry, error) {
	raw, err := s.kv.Get(ctx, RecordKey)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var entries []Entry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return nil, fmt.Errorf("decode diagnostics: %w", err)
	}
	return entries, nil
}

func (s *Sink) save(ctx context.Context, entries []Entry) error {
	raw, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("encode diagnostics: %w", err)
	}
	return s.kv.Set(ctx, RecordKey, raw)
}
