package notes_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"murmur/internal/notes"
	"murmur/internal/testsupport"
)

func TestSaveAndGet(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	store := notes.NewStore(kv)
	ctx := context.Background()

	note := &notes.Note{ID: notes.NewID(), Language: "en", Body: "raw dictation"}
	if err := store.Save(ctx, note); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if note.CreatedAt.IsZero() || note.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be stamped on save")
	}

	loaded, err := store.Get(ctx, note.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded == nil || loaded.Body != "raw dictation" {
		t.Fatalf("unexpected loaded note: %+v", loaded)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	store := notes.NewStore(kv)

	note, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if note != nil {
		t.Fatalf("expected nil for missing note, got %+v", note)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	store := notes.NewStore(kv)
	ctx := context.Background()

	old := &notes.Note{ID: "old", CreatedAt: time.Now().UTC().Add(-time.Hour)}
	recent := &notes.Note{ID: "recent", CreatedAt: time.Now().UTC()}
	for _, n := range []*notes.Note{old, recent} {
		if err := store.Save(ctx, n); err != nil {
			t.Fatalf("Save %s: %v", n.ID, err)
		}
	}

	all, err := store.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].ID != "recent" || all[1].ID != "old" {
		t.Fatalf("expected newest-first ordering, got %v", []string{all[0].ID, all[1].ID})
	}
}

func TestAudioRoundTripAndDelete(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	store := notes.NewStore(kv)
	ctx := context.Background()

	note := &notes.Note{ID: "voice"}
	if err := store.Save(ctx, note); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.SaveAudio(ctx, "voice", []byte("pcm-bytes")); err != nil {
		t.Fatalf("SaveAudio: %v", err)
	}

	loaded, err := store.Get(ctx, "voice")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if loaded.AudioBytes != int64(len("pcm-bytes")) {
		t.Fatalf("expected audio size recorded, got %d", loaded.AudioBytes)
	}

	audio, err := store.Audio(ctx, "voice")
	if err != nil || string(audio) != "pcm-bytes" {
		t.Fatalf("unexpected audio %q err=%v", audio, err)
	}

	if err := store.Delete(ctx, "voice"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n, _ := store.Get(ctx, "voice"); n != nil {
		t.Fatal("expected note removed")
	}
	if a, _ := store.Audio(ctx, "voice"); a != nil {
		t.Fatal("expected audio removed with note")
	}
}

func TestSaveAudioRejectsEmptyBlob(t *testing.T) {
	kv := testsupport.MustOpenKV(t, testsupport.NewConfig(t))
	store := notes.NewStore(kv)
	ctx := context.Background()

	if err := store.Save(ctx, &notes.Note{ID: "empty"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	err := store.SaveAudio(ctx, "empty", nil)
	if err == nil || !strings.Contains(err.Error(), "audio is empty") {
		t.Fatalf("expected empty-audio rejection, got %v", err)
	}
	if err := store.SaveAudio(ctx, "empty", []byte{}); err == nil {
		t.Fatal("expected zero-length audio rejected")
	}
}

func TestEstimatedSize(t *testing.T) {
	withBlob := &notes.Note{Transcript: "ten chars!", AudioBytes: 1000}
	if got := withBlob.EstimatedSize(); got != 1010 {
		t.Fatalf("expected 1010 bytes, got %d", got)
	}

	durationOnly := &notes.Note{DurationSeconds: 2}
	if got := durationOnly.EstimatedSize(); got != 2*16*1024 {
		t.Fatalf("expected duration-based estimate, got %d", got)
	}
}
