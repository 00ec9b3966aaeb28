package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeCompactionCompleted is emitted after a session history has
	// been written to memory and truncated.
	EventTypeCompactionCompleted = "engram.compaction.completed"
)

// CompactionCompletedEvent is a transport-neutral payload describing one
// finished compaction run.
type CompactionCompletedEvent struct {
	SchemaVersion int       `json:"schema_version"`
	EventType     string    `json:"event_type"`
	EventID       string    `json:"event_id"`
	EmittedAt     time.Time `json:"emitted_at"`

	SessionID      string        `json:"session_id"`
	TurnsWritten   int           `json:"turns_written"`
	FactsExtracted int           `json:"facts_extracted"`
	SourceIDs      []int64       `json:"source_ids"`
	FactIDs        []int64       `json:"fact_ids"`
	ExtractFailed  bool          `json:"extract_failed,omitempty"`
	Duration       time.Duration `json:"duration_ns"`
}

// NewCompactionCompleted builds an event with its envelope fields set.
func NewCompactionCompleted(sessionID string) *CompactionCompletedEvent {
	return &CompactionCompletedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeCompactionCompleted,
		EventID:       uuid.NewString(),
		EmittedAt:     time.Now().UTC(),
		SessionID:     sessionID,
	}
}
