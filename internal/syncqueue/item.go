package syncqueue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemKind tags which API operation a queue item defers.
type ItemKind string

const (
	// KindTranscription defers a transcribe call for a stored note's audio.
	KindTranscription ItemKind = "transcription"
	// KindRewrite defers a rewrite call against a note's current text.
	KindRewrite ItemKind = "rewrite"
)

// Item is one durably persisted deferred mutation.
type Item struct {
	ID         string          `json:"id"`
	Kind       ItemKind        `json:"kind"`
	Payload    json.RawMessage `json:"payload"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	RetryCount int             `json:"retry_count"`
}

// TranscriptionPayload carries the arguments for a deferred transcribe. The
// audio itself stays in the note store; queue records hold only identifiers.
type TranscriptionPayload struct {
	NoteID   string `json:"note_id"`
	Language string `json:"language,omitempty"`
}

// RewritePayload carries the arguments for a deferred rewrite.
type RewritePayload struct {
	NoteID      string `json:"note_id"`
	Instruction string `json:"instruction"`
}

// newItemID builds an identifier that stays readable in logs: the kind and
// enqueue time are embedded so a human can place the item without decoding it.
func newItemID(kind ItemKind, at time.Time) string {
	return fmt.Sprintf("%s-%s-%s", kind, at.Format("20060102T150405"), uuid.NewString()[:8])
}
