package notes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"murmur/internal/store"
)

const (
	// NotePrefix is the record key prefix for note JSON documents.
	NotePrefix = "note:"
	// AudioPrefix is the record key prefix for raw audio blobs.
	AudioPrefix = "audio:"
)

// Note is one recorded voice note and its derived content.
type Note struct {
	ID              string    `json:"id"`
	Title           string    `json:"title,omitempty"`
	Description     string    `json:"description,omitempty"`
	Keywords        []string  `json:"keywords,omitempty"`
	Transcript      string    `json:"transcript,omitempty"`
	Body            string    `json:"body,omitempty"`
	Language        string    `json:"language,omitempty"`
	DurationSeconds float64   `json:"duration_seconds,omitempty"`
	AudioBytes      int64     `json:"audio_bytes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// EstimatedSize approximates the bytes this note consumes in the store. When
// the audio blob size is unknown but a duration is recorded, a 16 KiB/s
// speech-bitrate estimate stands in.
func (n *Note) EstimatedSize() int64 {
	size := int64(len(n.Title) + len(n.Description) + len(n.Transcript) + len(n.Body))
	switch {
	case n.AudioBytes > 0:
		size += n.AudioBytes
	case n.DurationSeconds > 0:
		size += int64(n.DurationSeconds * 16 * 1024)
	}
	return size
}

// Store persists notes through the durable key-value store.
type Store struct {
	kv store.KV
}

// NewStore constructs a note store.
func NewStore(kv store.KV) *Store {
	return &Store{kv: kv}
}

// NewID returns a fresh note identifier.
func NewID() string {
	return uuid.NewString()
}

// Get loads a note by id, returning (nil, nil) when absent.
func (s *Store) Get(ctx context.Context, id string) (*Note, error) {
	raw, err := s.kv.Get(ctx, NotePrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get note %s: %w", id, err)
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var note Note
	if err := json.Unmarshal(raw, &note); err != nil {
		return nil, fmt.Errorf("decode note %s: %w", id, err)
	}
	return &note, nil
}

// Save persists a note, stamping UpdatedAt (and CreatedAt on first save).
func (s *Store) Save(ctx context.Context, note *Note) error {
	if note == nil {
		return errors.New("note is nil")
	}
	if strings.TrimSpace(note.ID) == "" {
		return errors.New("note id is empty")
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now

	raw, err := json.Marshal(note)
	if err != nil {
		return fmt.Errorf("encode note %s: %w", note.ID, err)
	}
	if err := s.kv.Set(ctx, NotePrefix+note.ID, raw); err != nil {
		return fmt.Errorf("save note %s: %w", note.ID, err)
	}
	return nil
}

// List returns all notes ordered newest first by creation time.
func (s *Store) List(ctx context.Context) ([]*Note, error) {
	keys, err := s.kv.Keys(ctx)
	if err != nil {
		return nil, fmt.Errorf("list note keys: %w", err)
	}

	var all []*Note
	for _, key := range keys {
		if !strings.HasPrefix(key, NotePrefix) {
			continue
		}
		note, err := s.Get(ctx, strings.TrimPrefix(key, NotePrefix))
		if err != nil {
			return nil, err
		}
		if note != nil {
			all = append(all, note)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return all, nil
}

// Delete removes a note and its audio blob.
func (s *Store) Delete(ctx context.Context, id string) error {
	if err := s.kv.Remove(ctx, NotePrefix+id); err != nil {
		return fmt.Errorf("delete note %s: %w", id, err)
	}
	if err := s.kv.Remove(ctx, AudioPrefix+id); err != nil {
		return fmt.Errorf("delete note audio %s: %w", id, err)
	}
	return nil
}

// SaveAudio stores the raw audio blob for a note and records its size on the
// note document when present.
func (s *Store) SaveAudio(ctx context.Context, id string, audio []byte) error {
	if len(audio) == 0 {
		return fmt.Errorf("save audio %s: audio is empty", id)
	}
	if err := s.kv.Set(ctx, AudioPrefix+id, audio); err != nil {
		return fmt.Errorf("save audio %s: %w", id, err)
	}
	note, err := s.Get(ctx, id)
	if err != nil || note == nil {
		return err
	}
	note.AudioBytes = int64(len(audio))
	return s.Save(ctx, note)
}

// Audio returns the raw audio blob for a note, or (nil, nil) when absent.
func (s *Store) Audio(ctx context.Context, id string) ([]byte, error) {
	raw, err := s.kv.Get(ctx, AudioPrefix+id)
	if err != nil {
		return nil, fmt.Errorf("get audio %s: %w", id, err)
	}
	return raw, nil
}
