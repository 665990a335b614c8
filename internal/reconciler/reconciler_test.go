package reconciler

import (
	"context"
	"errors"
	"testing"

	"murmur/internal/logging"
	"murmur/internal/notes"
	"murmur/internal/services/inference"
	"murmur/internal/testsupport"
)

type fakeClient struct {
	transcribe func(ctx context.Context, audio []byte, language, credential string) (inference.Transcript, error)
	enrich     func(ctx context.Context, transcript, credential string) (inference.NoteMetadata, error)
}

func (f *fakeClient) Transcribe(ctx context.Context, audio []byte, language, credential string) (inference.Transcript, error) {
	if f.transcribe == nil {
		return inference.Transcript{}, errors.New("unexpected transcribe")
	}
	return f.transcribe(ctx, audio, language, credential)
}

func (f *fakeClient) EnrichMetadata(ctx context.Context, transcript, credential string) (inference.NoteMetadata, error) {
	if f.enrich == nil {
		return inference.NoteMetadata{}, errors.New("enrichment unavailable")
	}
	return f.enrich(ctx, transcript, credential)
}

type staticCredential string

func (s staticCredential) Retrieve(context.Context) (string, error) { return string(s), nil }

type recordingNotifier struct {
	credentialFailures []string
}

func (r *recordingNotifier) NotifyItemDropped(context.Context, string, string, string) error {
	return nil
}
func (r *recordingNotifier) NotifyStorageCleanup(context.Context, int64, int) error { return nil }
func (r *recordingNotifier) NotifyCredentialFailure(_ context.Context, detail string) error {
	r.credentialFailures = append(r.credentialFailures, detail)
	return nil
}
func (r *recordingNotifier) TestNotification(context.Context) error { return nil }

type fixture struct {
	notes      *notes.Store
	notifier   *recordingNotifier
	reconciler *Reconciler
}

func newFixture(t *testing.T, client Transcriber, credential string, online bool) *fixture {
	t.Helper()
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	noteStore := notes.NewStore(kv)
	notifier := &recordingNotifier{}
	rec := New(kv, noteStore, client, staticCredential(credential),
		func() bool { return online }, notifier, logging.NewNop())
	return &fixture{notes: noteStore, notifier: notifier, reconciler: rec}
}

func mustMarkWithAudio(t *testing.T, f *fixture, id string) {
	t.Helper()
	ctx := context.Background()
	if err := f.notes.Save(ctx, &notes.Note{ID: id, Language: "en"}); err != nil {
		t.Fatalf("Save note: %v", err)
	}
	if err := f.notes.SaveAudio(ctx, id, []byte("audio")); err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}
	if err := f.reconciler.MarkPending(ctx, id); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}
}

func TestProcessPendingTranscribesAndEnriches(t *testing.T) {
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			return inference.Transcript{Text: "buy milk tomorrow", Language: "en"}, nil
		},
		enrich: func(context.Context, string, string) (inference.NoteMetadata, error) {
			return inference.NoteMetadata{
				Title:       "Shopping Reminder",
				Description: "A reminder to buy milk",
				Keywords:    []string{"shopping", "milk"},
			}, nil
		},
	}
	f := newFixture(t, client, "key", true)
	ctx := context.Background()
	mustMarkWithAudio(t, f, "n1")

	var processed []string
	if err := f.reconciler.ProcessPending(ctx, func(id string) { processed = append(processed, id) }); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	note, _ := f.notes.Get(ctx, "n1")
	if note.Transcript != "buy milk tomorrow" || note.Title != "Shopping Reminder" {
		t.Fatalf("unexpected note after pass: %+v", note)
	}
	if len(note.Keywords) != 2 {
		t.Fatalf("expected keywords, got %v", note.Keywords)
	}
	if pending, _ := f.reconciler.PendingIDs(ctx); len(pending) != 0 {
		t.Fatalf("expected marker dropped, got %v", pending)
	}
	if len(processed) != 1 || processed[0] != "n1" {
		t.Fatalf("expected onEach for n1, got %v", processed)
	}
}

func TestEnrichmentFailureStillSavesTranscript(t *testing.T) {
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			return inference.Transcript{Text: "remember to call the dentist about tuesday"}, nil
		},
	}
	f := newFixture(t, client, "key", true)
	ctx := context.Background()
	mustMarkWithAudio(t, f, "n1")

	if err := f.reconciler.ProcessPending(ctx, nil); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}

	note, _ := f.notes.Get(ctx, "n1")
	if note.Transcript == "" {
		t.Fatal("expected transcript saved despite enrichment failure")
	}
	if note.Title != "Remember To Call The Dentist About" {
		t.Fatalf("unexpected fallback title %q", note.Title)
	}
	if pending, _ := f.reconciler.PendingIDs(ctx); len(pending) != 0 {
		t.Fatalf("expected marker dropped, got %v", pending)
	}
}

func TestEmptyTranscriptKeepsMarker(t *testing.T) {
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			return inference.Transcript{Text: ""}, nil
		},
	}
	f := newFixture(t, client, "key", true)
	ctx := context.Background()
	mustMarkWithAudio(t, f, "n1")

	if err := f.reconciler.ProcessPending(ctx, nil); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if pending, _ := f.reconciler.PendingIDs(ctx); len(pending) != 1 {
		t.Fatalf("expected marker kept for retry, got %v", pending)
	}
}

func TestStaleMarkerDroppedWithoutAPICall(t *testing.T) {
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			t.Fatal("transcribe must not run for an already-transcribed note")
			return inference.Transcript{}, nil
		},
	}
	f := newFixture(t, client, "key", true)
	ctx := context.Background()

	if err := f.notes.Save(ctx, &notes.Note{ID: "done", Transcript: "already here"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.reconciler.MarkPending(ctx, "done"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	if err := f.reconciler.ProcessPending(ctx, nil); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if pending, _ := f.reconciler.PendingIDs(ctx); len(pending) != 0 {
		t.Fatalf("expected stale marker dropped, got %v", pending)
	}
}

func TestMissingAudioDropsMarker(t *testing.T) {
	f := newFixture(t, &fakeClient{}, "key", true)
	ctx := context.Background()

	if err := f.notes.Save(ctx, &notes.Note{ID: "silent"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := f.reconciler.MarkPending(ctx, "silent"); err != nil {
		t.Fatalf("MarkPending: %v", err)
	}

	if err := f.reconciler.ProcessPending(ctx, nil); err != nil {
		t.Fatalf("ProcessPending: %v", err)
	}
	if pending, _ := f.reconciler.PendingIDs(ctx); len(pending) != 0 {
		t.Fatalf("expected unrecoverable marker dropped, got %v", pending)
	}
}

func TestShortCircuitsOfflineAndCredentialless(t *testing.T) {
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			t.Fatal("transcribe must not run when short-circuited")
			return inference.Transcript{}, nil
		},
	}

	offline := newFixture(t, client, "key", false)
	mustMarkWithAudio(t, offline, "n1")
	if err := offline.reconciler.ProcessPending(context.Background(), nil); err != nil {
		t.Fatalf("offline ProcessPending: %v", err)
	}

	noCred := newFixture(t, client, "", true)
	mustMarkWithAudio(t, noCred, "n1")
	if err := noCred.reconciler.ProcessPending(context.Background(), nil); err != nil {
		t.Fatalf("credentialless ProcessPending: %v", err)
	}
	if pending, _ := noCred.reconciler.PendingIDs(context.Background()); len(pending) != 1 {
		t.Fatalf("expected marker untouched, got %v", pending)
	}
}

func TestAuthErrorAbortsPass(t *testing.T) {
	calls := 0
	client := &fakeClient{
		transcribe: func(context.Context, []byte, string, string) (inference.Transcript, error) {
			calls++
			return inference.Transcript{}, &inference.ClassifiedError{
				Kind: inference.KindAuth, Message: "bad credential",
			}
		},
	}
	f := newFixture(t, client, "key", true)
	mustMarkWithAudio(t, f, "n1")
	mustMarkWithAudio(t, f, "n2")

	err := f.reconciler.ProcessPending(context.Background(), nil)
	if err == nil {
		t.Fatal("expected auth error surfaced")
	}
	if calls != 1 {
		t.Fatalf("expected pass aborted after first auth failure, got %d calls", calls)
	}
	if pending, _ := f.reconciler.PendingIDs(context.Background()); len(pending) != 2 {
		t.Fatalf("expected both markers kept, got %v", pending)
	}
	if len(f.notifier.credentialFailures) != 1 || f.notifier.credentialFailures[0] != "bad credential" {
		t.Fatalf("expected credential failure notification, got %v", f.notifier.credentialFailures)
	}
}

func TestMarkPendingIsIdempotent(t *testing.T) {
	f := newFixture(t, &fakeClient{}, "key", true)
	ctx := context.Background()

	for range 3 {
		if err := f.reconciler.MarkPending(ctx, "n1"); err != nil {
			t.Fatalf("MarkPending: %v", err)
		}
	}
	pending, _ := f.reconciler.PendingIDs(ctx)
	if len(pending) != 1 {
		t.Fatalf("expected one marker, got %v", pending)
	}
}
