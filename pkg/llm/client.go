package llm

import (
	"context"
	"errors"
)

// ErrCompletion is returned when a completion call fails. Provider errors
// wrap it so callers can branch with errors.Is.
var ErrCompletion = errors.New("completion failed")

// Client sends chat completion requests to a model provider.
type Client interface {
	// Complete issues one non-streaming completion.
	Complete(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Close releases any resources held by the client.
	Close() error
}
