// Package embeddings defines the text embedding client used by the memory
// store, with provider implementations in subpackages.
package embeddings

import (
	"context"
	"errors"
)

// ErrEmbedding is returned when embedding generation fails. Provider errors
// wrap it so callers can branch with errors.Is.
var ErrEmbedding = errors.New("embedding failed")

// Embedder provides text embedding capabilities.
type Embedder interface {
	// Embed converts text into a vector embedding. Implementations return
	// vectors of a fixed dimensionality for the lifetime of the embedder.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Close releases any resources held by the embedder.
	Close() error
}
