// Package testutils holds test doubles shared across package test suites.
package testutils

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/papercomputeco/engram/pkg/embeddings"
)

// MockEmbedder is a test embedder that returns predictable embeddings
type MockEmbedder struct {
	mu sync.Mutex

	Embeddings map[string][]float32

	// FailOn causes Embed to return an error when the input text matches
	FailOn string

	// RejectEmpty makes blank input fail the way hosted providers do.
	RejectEmpty bool

	// Calls records every text passed to Embed, in order.
	Calls []string
}

func NewMockEmbedder() *MockEmbedder {
	return &MockEmbedder{
		Embeddings: make(map[string][]float32),
	}
}

func (m *MockEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, text)

	if m.RejectEmpty && strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: empty input", embeddings.ErrEmbedding)
	}

	if m.FailOn != "" && text == m.FailOn {
		return nil, fmt.Errorf("%w: mock embedding failure for: %s", embeddings.ErrEmbedding, text)
	}

	if emb, ok := m.Embeddings[text]; ok {
		return emb, nil
	}

	// Return a default embedding for any text
	return []float32{0.1, 0.2, 0.3}, nil
}

// CallCount returns how many times Embed ran.
func (m *MockEmbedder) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Calls)
}

func (m *MockEmbedder) Close() error {
	return nil
}

// HashEmbedder is a deterministic bag-of-words embedder. Each lowercase
// token is hashed into one of Dimensions buckets and the result is
// normalized, so texts that share words have positive cosine similarity.
// CJK characters count as one token each.
type HashEmbedder struct {
	Dimensions int
}

// NewHashEmbedder creates a HashEmbedder of the given size.
func NewHashEmbedder(dimensions int) *HashEmbedder {
	return &HashEmbedder{Dimensions: dimensions}
}

func (h *HashEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	v := make([]float32, h.Dimensions)
	for _, tok := range tokens(text) {
		f := fnv.New32a()
		f.Write([]byte(tok))
		v[f.Sum32()%uint32(h.Dimensions)]++
	}

	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		// Keep empty text a valid, non-zero vector.
		v[0] = 1
		return v, nil
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range v {
		v[i] *= scale
	}
	return v, nil
}

func (h *HashEmbedder) Close() error {
	return nil
}

func tokens(text string) []string {
	var (
		out []string
		cur strings.Builder
	)
	flush := func() {
		if cur.Len() > 0 {
			out = append(out, cur.String())
			cur.Reset()
		}
	}
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.Is(unicode.Han, r):
			flush()
			out = append(out, string(r))
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			cur.WriteRune(r)
		default:
			flush()
		}
	}
	flush()
	return out
}

var (
	_ embeddings.Embedder = (*MockEmbedder)(nil)
	_ embeddings.Embedder = (*HashEmbedder)(nil)
)
