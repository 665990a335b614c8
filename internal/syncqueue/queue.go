package syncqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"murmur/internal/diaglog"
	"murmur/internal/logging"
	"murmur/internal/notes"
	"murmur/internal/notifications"
	"murmur/internal/services/inference"
	"murmur/internal/store"
)

// RecordKey is the store record holding the queue snapshot.
const RecordKey = "sync_queue"

const defaultMaxRetries = 3

// Executor is the subset of the inference client the queue drains through.
type Executor interface {
	Transcribe(ctx context.Context, audio []byte, language, credential string) (inference.Transcript, error)
	Rewrite(ctx context.Context, text, instruction, credential string) (string, error)
}

// CredentialSource yields the stored API credential, empty when unset.
type CredentialSource interface {
	Retrieve(ctx context.Context) (string, error)
}

// Queue persists deferred mutations and drains them through the executor.
type Queue struct {
	kv         store.KV
	notes      *notes.Store
	executor   Executor
	creds      CredentialSource
	online     func() bool
	notifier   notifications.Service
	diag       *diaglog.Sink
	logger     *slog.Logger
	maxRetries int

	mu        sync.Mutex
	bg        sync.WaitGroup
	draining  atomic.Bool
	observers []chan struct{}
}

// Option adjusts queue construction.
type Option func(*Queue)

// WithMaxRetries overrides the per-item drain-failure ceiling.
func WithMaxRetries(retries int) Option {
	return func(q *Queue) {
		if retries > 0 {
			q.maxRetries = retries
		}
	}
}

// New constructs a sync queue. The online func gates the optimistic
// post-enqueue drain; pass nil to always attempt it.
func New(
	kv store.KV,
	noteStore *notes.Store,
	executor Executor,
	creds CredentialSource,
	online func() bool,
	notifier notifications.Service,
	diag *diaglog.Sink,
	logger *slog.Logger,
	opts ...Option,
) *Queue {
	q := &Queue{
		kv:         kv,
		notes:      noteStore,
		executor:   executor,
		creds:      creds,
		online:     online,
		notifier:   notifier,
		diag:       diag,
		logger:     logging.NewComponentLogger(logger, "syncqueue"),
		maxRetries: defaultMaxRetries,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Subscribe returns a channel that receives a signal whenever the queue
// changes shape (enqueue, remove, drop). Signals coalesce; consumers re-read
// the queue rather than counting them.
func (q *Queue) Subscribe() <-chan struct{} {
	ch := make(chan struct{}, 1)
	q.mu.Lock()
	q.observers = append(q.observers, ch)
	q.mu.Unlock()
	return ch
}

func (q *Queue) notifyObservers() {
	q.mu.Lock()
	observers := make([]chan struct{}, len(q.observers))
	copy(observers, q.observers)
	q.mu.Unlock()
	for _, ch := range observers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// EnqueueTranscription appends a deferred transcribe for the given note.
func (q *Queue) EnqueueTranscription(ctx context.Context, noteID, language string) (string, error) {
	payload, err := json.Marshal(TranscriptionPayload{NoteID: noteID, Language: language})
	if err != nil {
		return "", fmt.Errorf("encode transcription payload: %w", err)
	}
	return q.enqueue(ctx, KindTranscription, payload)
}

// EnqueueRewrite appends a deferred rewrite for the given note.
func (q *Queue) EnqueueRewrite(ctx context.Context, noteID, instruction string) (string, error) {
	payload, err := json.Marshal(RewritePayload{NoteID: noteID, Instruction: instruction})
	if err != nil {
		return "", fmt.Errorf("encode rewrite payload: %w", err)
	}
	return q.enqueue(ctx, KindRewrite, payload)
}

func (q *Queue) enqueue(ctx context.Context, kind ItemKind, payload json.RawMessage) (string, error) {
	q.mu.Lock()
	items, err := q.load(ctx)
	if err != nil {
		q.mu.Unlock()
		return "", err
	}
	item := Item{
		ID:         newItemID(kind, time.Now().UTC()),
		Kind:       kind,
		Payload:    payload,
		EnqueuedAt: time.Now().UTC(),
	}
	items = append(items, item)
	if err := q.save(ctx, items); err != nil {
		q.mu.Unlock()
		return "", err
	}
	q.mu.Unlock()

	q.logger.Info("mutation queued",
		logging.String(logging.FieldItemID, item.ID),
		logging.String(logging.FieldKind, string(kind)))
	q.notifyObservers()

	if q.online == nil || q.online() {
		q.bg.Add(1)
		go func() {
			defer q.bg.Done()
			q.Drain(context.WithoutCancel(ctx))
		}()
	}
	return item.ID, nil
}

// Wait blocks until any optimistic post-enqueue drains have finished. Owners
// call it before closing the underlying store.
func (q *Queue) Wait() {
	q.bg.Wait()
}

// Remove deletes an item by id. Removing an absent id is a no-op.
func (q *Queue) Remove(ctx context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.removeLocked(ctx, id)
}

func (q *Queue) removeLocked(ctx context.Context, id string) error {
	items, err := q.load(ctx)
	if err != nil {
		return err
	}
	kept := items[:0]
	for _, item := range items {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(items) {
		return nil
	}
	if err := q.save(ctx, kept); err != nil {
		return err
	}
	go q.notifyObservers()
	return nil
}

// Len reports the number of queued items.
func (q *Queue) Len(ctx context.Context) (int, error) {
	items, err := q.Items(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}

// Items returns the current queue contents in FIFO order.
func (q *Queue) Items(ctx context.Context) ([]Item, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.load(ctx)
}

// Clear drops every queued item.
func (q *Queue) Clear(ctx context.Context) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if err := q.kv.Remove(ctx, RecordKey); err != nil {
		return fmt.Errorf("clear queue: %w", err)
	}
	go q.notifyObservers()
	return nil
}

// Drain attempts every currently queued item once, in FIFO order over a
// snapshot taken at entry. Overlapping calls are silent no-ops.
func (q *Queue) Drain(ctx context.Context) {
	if !q.draining.CompareAndSwap(false, true) {
		return
	}
	defer q.draining.Store(false)

	snapshot, err := q.Items(ctx)
	if err != nil {
		q.logger.Warn("drain aborted, queue unreadable", logging.Error(err))
		return
	}
	if len(snapshot) == 0 {
		return
	}

	credential, err := q.creds.Retrieve(ctx)
	if err != nil {
		q.logger.Warn("drain aborted, credential unreadable", logging.Error(err))
		return
	}
	if strings.TrimSpace(credential) == "" {
		q.logger.Debug("drain skipped, no credential configured")
		return
	}

	q.logger.Info("draining queue", logging.Int("items", len(snapshot)))
	for _, item := range snapshot {
		if ctx.Err() != nil {
			return
		}
		if err := q.execute(ctx, item, credential); err != nil {
			q.recordFailure(ctx, item, err)
			continue
		}
		if err := q.Remove(ctx, item.ID); err != nil {
			q.logger.Warn("failed to remove completed item",
				logging.String(logging.FieldItemID, item.ID), logging.Error(err))
		}
	}
}

func (q *Queue) execute(ctx context.Context, item Item, credential string) error {
	switch item.Kind {
	case KindTranscription:
		return q.executeTranscription(ctx, item, credential)
	case KindRewrite:
		return q.executeRewrite(ctx, item, credential)
	default:
		return fmt.Errorf("unknown item kind %q", item.Kind)
	}
}

func (q *Queue) executeTranscription(ctx context.Context, item Item, credential string) error {
	var payload TranscriptionPayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return fmt.Errorf("decode transcription payload: %w", err)
	}
	note, err := q.notes.Get(ctx, payload.NoteID)
	if err != nil {
		return err
	}
	if note == nil {
		q.logger.Warn("queued transcription references deleted note",
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldNoteID, payload.NoteID))
		return nil
	}
	audio, err := q.notes.Audio(ctx, payload.NoteID)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		q.logger.Warn("queued transcription has no stored audio",
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldNoteID, payload.NoteID))
		return nil
	}

	transcript, err := q.executor.Transcribe(ctx, audio, payload.Language, credential)
	if err != nil {
		return err
	}
	note.Transcript = transcript.Text
	if transcript.Language != "" {
		note.Language = transcript.Language
	}
	return q.notes.Save(ctx, note)
}

func (q *Queue) executeRewrite(ctx context.Context, item Item, credential string) error {
	var payload RewritePayload
	if err := json.Unmarshal(item.Payload, &payload); err != nil {
		return fmt.Errorf("decode rewrite payload: %w", err)
	}
	note, err := q.notes.Get(ctx, payload.NoteID)
	if err != nil {
		return err
	}
	if note == nil {
		q.logger.Warn("queued rewrite references deleted note",
			logging.String(logging.FieldItemID, item.ID),
			logging.String(logging.FieldNoteID, payload.NoteID))
		return nil
	}
	text := note.Body
	if strings.TrimSpace(text) == "" {
		text = note.Transcript
	}

	rewritten, err := q.executor.Rewrite(ctx, text, payload.Instruction, credential)
	if err != nil {
		return err
	}
	note.Body = rewritten
	return q.notes.Save(ctx, note)
}

// recordFailure bumps the item's persisted retry count, dropping the item
// once it has failed maxRetries separate drain passes.
func (q *Queue) recordFailure(ctx context.Context, failed Item, cause error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	items, err := q.load(ctx)
	if err != nil {
		q.logger.Warn("failed to reload queue after item failure", logging.Error(err))
		return
	}

	for i := range items {
		if items[i].ID != failed.ID {
			continue
		}
		items[i].RetryCount++
		if items[i].RetryCount >= q.maxRetries {
			q.dropLocked(ctx, items, i, cause)
			return
		}
		q.logger.Warn("queued item failed, will retry next drain",
			logging.String(logging.FieldItemID, failed.ID),
			logging.Int("retry_count", items[i].RetryCount),
			logging.Error(cause))
		if err := q.save(ctx, items); err != nil {
			q.logger.Warn("failed to persist retry count", logging.Error(err))
		}
		return
	}
}

func (q *Queue) dropLocked(ctx context.Context, items []Item, idx int, cause error) {
	dropped := items[idx]
	items = append(items[:idx], items[idx+1:]...)
	if err := q.save(ctx, items); err != nil {
		q.logger.Warn("failed to persist queue after drop", logging.Error(err))
	}

	q.logger.Warn("dropping item after repeated failures",
		logging.String(logging.FieldItemID, dropped.ID),
		logging.String(logging.FieldKind, string(dropped.Kind)),
		logging.Int("retry_count", dropped.RetryCount),
		logging.Error(cause))
	q.diag.Append(ctx, "syncqueue",
		fmt.Sprintf("dropped %s item %s after %d failed drains: %v",
			dropped.Kind, dropped.ID, dropped.RetryCount, cause))
	if err := q.notifier.NotifyItemDropped(ctx, dropped.ID, string(dropped.Kind), cause.Error()); err != nil {
		q.logger.Debug("drop notification failed", logging.Error(err))
	}
	go q.notifyObservers()
}

func (q *Queue) load(ctx context.Context) ([]Item, error) {
	raw, err := q.kv.Get(ctx, RecordKey)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []Item
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return items, nil
}

func (q *Queue) save(ctx context.Context, items []Item) error {
	raw, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := q.kv.Set(ctx, RecordKey, raw); err != nil {
		return fmt.Errorf("save queue: %w", err)
	}
	return nil
}
