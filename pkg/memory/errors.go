package memory

import (
	"errors"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/vector"
)

var (
	// ErrNotConfigured is returned when a Store is built without a driver
	// or an embedder.
	ErrNotConfigured = errors.New("memory not configured")

	// ErrEmbedding is returned when the embedding provider fails.
	ErrEmbedding = embeddings.ErrEmbedding

	// ErrDimensionMismatch is returned when an embedding does not match the
	// store's configured dimensionality.
	ErrDimensionMismatch = vector.ErrDimensionMismatch
)
