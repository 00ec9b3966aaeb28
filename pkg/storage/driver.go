// Package storage defines the memory record types (conversation turns and
// facts) and the Driver interface implemented by the inmemory, sqlite,
// postgres, and qdrant backends.
package storage

import (
	"context"
)

// Driver persists Sources and Facts with their embeddings and answers
// nearest-neighbor queries over them. Records are append-only: drivers
// never update or delete individual records, only Clear everything.
//
// Insert methods assign the record ID and CreatedAt, and must be safe for
// concurrent use with IDs that never collide. Query methods return at most
// topK records ordered by descending cosine similarity, ties broken by
// ascending ID where the backend allows it.
type Driver interface {
	// InsertSource stores a conversation turn and returns its source ID.
	InsertSource(ctx context.Context, s *Source) (int64, error)

	// InsertFact stores a fact and returns its fact ID.
	InsertFact(ctx context.Context, f *Fact) (int64, error)

	// QuerySources returns the topK turns nearest to embedding.
	QuerySources(ctx context.Context, embedding []float32, topK int) ([]ScoredSource, error)

	// QueryFacts returns the topK facts nearest to embedding.
	QueryFacts(ctx context.Context, embedding []float32, topK int) ([]ScoredFact, error)

	// ListSources returns stored turns in ID order. An empty sessionID
	// lists every session.
	ListSources(ctx context.Context, sessionID string) ([]Source, error)

	// ListFacts returns stored facts in ID order.
	ListFacts(ctx context.Context) ([]Fact, error)

	// Clear removes every Source and Fact. It is a maintenance operation.
	Clear(ctx context.Context) error

	// Close closes the store and releases any resources.
	Close() error
}
