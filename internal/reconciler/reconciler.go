package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync/atomic"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"murmur/internal/logging"
	"murmur/internal/notes"
	"murmur/internal/notifications"
	"murmur/internal/services/inference"
	"murmur/internal/store"
)

// RecordKey is the store record holding the pending note id set.
const RecordKey = "pending_notes"

// Transcriber is the slice of the inference client a reconciliation pass uses.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte, language, credential string) (inference.Transcript, error)
	EnrichMetadata(ctx context.Context, transcript, credential string) (inference.NoteMetadata, error)
}

// CredentialSource yields the stored API credential, empty when unset.
type CredentialSource interface {
	Retrieve(ctx context.Context) (string, error)
}

// Reconciler drives pending notes through transcription and enrichment.
type Reconciler struct {
	kv       store.KV
	notes    *notes.Store
	client   Transcriber
	creds    CredentialSource
	online   func() bool
	notifier notifications.Service
	logger   *slog.Logger

	running atomic.Bool
}

// New constructs a reconciler. The online func gates reconciliation passes;
// pass nil to always attempt them.
func New(
	kv store.KV,
	noteStore *notes.Store,
	client Transcriber,
	creds CredentialSource,
	online func() bool,
	notifier notifications.Service,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		kv:       kv,
		notes:    noteStore,
		client:   client,
		creds:    creds,
		online:   online,
		notifier: notifier,
		logger:   logging.NewComponentLogger(logger, "reconciler"),
	}
}

// MarkPending records a note id as awaiting transcription. Marking an
// already-pending id is a no-op.
func (r *Reconciler) MarkPending(ctx context.Context, noteID string) error {
	ids, err := r.load(ctx)
	if err != nil {
		return err
	}
	if slices.Contains(ids, noteID) {
		return nil
	}
	return r.save(ctx, append(ids, noteID))
}

// PendingIDs returns the current marker set in marking order.
func (r *Reconciler) PendingIDs(ctx context.Context) ([]string, error) {
	return r.load(ctx)
}

// dropMarker re-reads the marker set before removing, so a marker added
// mid-pass is never lost to a stale in-memory copy.
func (r *Reconciler) dropMarker(ctx context.Context, noteID string) error {
	ids, err := r.load(ctx)
	if err != nil {
		return err
	}
	kept := slices.DeleteFunc(ids, func(id string) bool { return id == noteID })
	if len(kept) == len(ids) {
		return nil
	}
	return r.save(ctx, kept)
}

// ProcessPending runs one reconciliation pass over a snapshot of the marker
// set. It is a silent no-op when a pass is already running, no credential is
// configured, or the device is offline. onEach fires after each note is fully
// processed so the caller can refresh whatever is watching; it may be nil.
func (r *Reconciler) ProcessPending(ctx context.Context, onEach func(noteID string)) error {
	if !r.running.CompareAndSwap(false, true) {
		return nil
	}
	defer r.running.Store(false)

	if r.online != nil && !r.online() {
		return nil
	}
	credential, err := r.creds.Retrieve(ctx)
	if err != nil {
		return fmt.Errorf("load credential: %w", err)
	}
	if strings.TrimSpace(credential) == "" {
		return nil
	}

	pending, err := r.load(ctx)
	if err != nil {
		return err
	}
	if len(pending) == 0 {
		return nil
	}

	r.logger.Info("reconciling pending notes", logging.Int("pending", len(pending)))
	for _, noteID := range pending {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := r.processOne(ctx, noteID, credential, onEach); err != nil {
			var classified *inference.ClassifiedError
			if errors.As(err, &classified) && classified.Kind == inference.KindAuth {
				// The credential is bad for every remaining note too.
				r.logger.Warn("aborting reconciliation, credential rejected",
					logging.String(logging.FieldErrorKind, string(classified.Kind)))
				if notifyErr := r.notifier.NotifyCredentialFailure(ctx, classified.Message); notifyErr != nil {
					r.logger.Debug("credential failure notification failed", logging.Error(notifyErr))
				}
				return err
			}
			r.logger.Warn("pending note left for next pass",
				logging.String(logging.FieldNoteID, noteID), logging.Error(err))
		}
	}
	return nil
}

func (r *Reconciler) processOne(ctx context.Context, noteID, credential string, onEach func(string)) error {
	note, err := r.notes.Get(ctx, noteID)
	if err != nil {
		return err
	}
	if note == nil {
		r.logger.Warn("pending marker references deleted note",
			logging.String(logging.FieldNoteID, noteID))
		return r.dropMarker(ctx, noteID)
	}
	if strings.TrimSpace(note.Transcript) != "" {
		// Stale marker, the note was already processed.
		return r.dropMarker(ctx, noteID)
	}

	audio, err := r.notes.Audio(ctx, noteID)
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		r.logger.Warn("pending note has no stored audio, dropping marker",
			logging.String(logging.FieldNoteID, noteID))
		return r.dropMarker(ctx, noteID)
	}

	transcript, err := r.client.Transcribe(ctx, audio, note.Language, credential)
	if err != nil {
		return err
	}
	if strings.TrimSpace(transcript.Text) == "" {
		// No speech detected can be transient; keep the marker for retry.
		r.logger.Info("transcription returned empty result, keeping marker",
			logging.String(logging.FieldNoteID, noteID))
		return nil
	}

	note.Transcript = transcript.Text
	if transcript.Language != "" {
		note.Language = transcript.Language
	}
	r.enrich(ctx, note, credential)

	if err := r.notes.Save(ctx, note); err != nil {
		return err
	}
	if err := r.dropMarker(ctx, noteID); err != nil {
		return err
	}
	if onEach != nil {
		onEach(noteID)
	}
	return nil
}

// enrich fills in title, description, and keywords best-effort; a failure
// never blocks saving the transcript. When enrichment fails, a title is
// derived from the transcript's opening words.
func (r *Reconciler) enrich(ctx context.Context, note *notes.Note, credential string) {
	meta, err := r.client.EnrichMetadata(ctx, note.Transcript, credential)
	if err != nil {
		r.logger.Warn("metadata enrichment failed, using fallback title",
			logging.String(logging.FieldNoteID, note.ID), logging.Error(err))
		if note.Title == "" {
			note.Title = fallbackTitle(note.Transcript)
		}
		return
	}
	if meta.Title != "" {
		note.Title = meta.Title
	}
	if meta.Description != "" {
		note.Description = meta.Description
	}
	if len(meta.Keywords) > 0 {
		note.Keywords = meta.Keywords
	}
}

const fallbackTitleWords = 6

func fallbackTitle(transcript string) string {
	words := strings.Fields(transcript)
	if len(words) > fallbackTitleWords {
		words = words[:fallbackTitleWords]
	}
	title := strings.Join(words, " ")
	return cases.Title(language.Und, cases.NoLower).String(title)
}

func (r *Reconciler) load(ctx context.Context) ([]string, error) {
	raw, err := r.kv.Get(ctx, RecordKey)
	if err != nil {
		return nil, fmt.Errorf("load pending markers: %w", err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode pending markers: %w", err)
	}
	return ids, nil
}

func (r *Reconciler) save(ctx context.Context, ids []string) error {
	raw, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("encode pending markers: %w", err)
	}
	if err := r.kv.Set(ctx, RecordKey, raw); err != nil {
		return fmt.Errorf("save pending markers: %w", err)
	}
	return nil
}
