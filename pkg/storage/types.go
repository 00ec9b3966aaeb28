package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/papercomputeco/engram/pkg/vector"
)

// Source is one conversation turn flushed to durable memory.
type Source struct {
	ID          int64           `json:"source_id"`
	SessionID   string          `json:"session_id"`
	Turn        int             `json:"turn"`
	Speaker     string          `json:"speaker"`
	Content     string          `json:"content"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
	Embedding   []float32       `json:"-"`
	CreatedAt   time.Time       `json:"created_at"`
}

// Fact is a distilled statement derived from one or more Sources.
// SourceIDs are references only; they are not checked against stored
// Sources.
type Fact struct {
	ID         int64     `json:"fact_id"`
	Text       string    `json:"fact_text"`
	SourceIDs  []int64   `json:"source_ids"`
	Type       string    `json:"fact_type,omitempty"`
	Domain     string    `json:"domain,omitempty"`
	Confidence float64   `json:"confidence"`
	Embedding  []float32 `json:"-"`
	CreatedAt  time.Time `json:"created_at"`
}

// ScoredSource is a Source annotated with its similarity to a query.
type ScoredSource struct {
	Source
	Similarity float64 `json:"similarity"`
}

// ScoredFact is a Fact annotated with its similarity to a query.
type ScoredFact struct {
	Fact
	Similarity float64 `json:"similarity"`
}

// Validate checks the fields every backend requires.
func (s *Source) Validate(dimensions int) error {
	if s == nil {
		return fmt.Errorf("%w: nil source", ErrInvalidRecord)
	}
	if s.SessionID == "" {
		return fmt.Errorf("%w: source has no session id", ErrInvalidRecord)
	}
	return checkEmbedding(s.Embedding, dimensions)
}

// Validate checks the fields every backend requires.
func (f *Fact) Validate(dimensions int) error {
	if f == nil {
		return fmt.Errorf("%w: nil fact", ErrInvalidRecord)
	}
	if f.Text == "" {
		return fmt.Errorf("%w: fact has no text", ErrInvalidRecord)
	}
	return checkEmbedding(f.Embedding, dimensions)
}

// CheckQuery validates a query embedding against the store dimensionality.
func CheckQuery(embedding []float32, dimensions int) error {
	return checkEmbedding(embedding, dimensions)
}

func checkEmbedding(embedding []float32, dimensions int) error {
	if len(embedding) == 0 {
		return fmt.Errorf("%w: missing embedding", ErrInvalidRecord)
	}
	if dimensions > 0 && len(embedding) != dimensions {
		return fmt.Errorf("%w: got %d, store uses %d", vector.ErrDimensionMismatch, len(embedding), dimensions)
	}
	return nil
}
