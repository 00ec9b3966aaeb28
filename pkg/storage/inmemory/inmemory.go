// Package inmemory is a process-local storage.Driver that answers queries by
// brute-force cosine similarity. It backs tests and the "inmemory" storage
// driver setting.
package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/vector"
)

// Driver implements storage.Driver using in-memory slices.
type Driver struct {
	// mu guards every field below.
	mu sync.RWMutex

	dimensions int
	sources    []storage.Source
	facts      []storage.Fact
	lastSource int64
	lastFact   int64
	closed     bool

	now func() time.Time
}

// Option configures a Driver.
type Option func(*Driver)

// WithDimensions fixes the embedding dimensionality the driver accepts.
// Without it the first inserted vector fixes it.
func WithDimensions(n int) Option {
	return func(d *Driver) {
		d.dimensions = n
	}
}

// WithClock overrides the CreatedAt clock.
func WithClock(now func() time.Time) Option {
	return func(d *Driver) {
		d.now = now
	}
}

// NewDriver creates a new in-memory driver.
func NewDriver(opts ...Option) *Driver {
	d := &Driver{now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// InsertSource stores a copy of s and returns its ID.
func (d *Driver) InsertSource(_ context.Context, s *storage.Source) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, storage.ErrClosed
	}
	if err := s.Validate(d.dimensions); err != nil {
		return 0, err
	}
	d.fixDimensions(len(s.Embedding))

	d.lastSource++
	rec := *s
	rec.ID = d.lastSource
	rec.CreatedAt = d.now().UTC()
	rec.Embedding = slices.Clone(s.Embedding)
	rec.ToolCalls = slices.Clone(s.ToolCalls)
	rec.ToolResults = slices.Clone(s.ToolResults)
	d.sources = append(d.sources, rec)

	return rec.ID, nil
}

// InsertFact stores a copy of f and returns its ID.
func (d *Driver) InsertFact(_ context.Context, f *storage.Fact) (int64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return 0, storage.ErrClosed
	}
	if err := f.Validate(d.dimensions); err != nil {
		return 0, err
	}
	d.fixDimensions(len(f.Embedding))

	d.lastFact++
	rec := *f
	rec.ID = d.lastFact
	rec.CreatedAt = d.now().UTC()
	rec.Embedding = slices.Clone(f.Embedding)
	rec.SourceIDs = slices.Clone(f.SourceIDs)
	if rec.SourceIDs == nil {
		rec.SourceIDs = []int64{}
	}
	d.facts = append(d.facts, rec)

	return rec.ID, nil
}

// QuerySources scores every stored turn against embedding.
func (d *Driver) QuerySources(_ context.Context, embedding []float32, topK int) ([]storage.ScoredSource, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, storage.ErrClosed
	}
	if err := storage.CheckQuery(embedding, d.dimensions); err != nil {
		return nil, err
	}

	scored := make([]storage.ScoredSource, 0, len(d.sources))
	for _, s := range d.sources {
		sim, err := vector.CosineSimilarity(embedding, s.Embedding)
		if err != nil {
			return nil, err
		}
		scored = append(scored, storage.ScoredSource{Source: s, Similarity: sim})
	}

	return storage.RankSources(scored, topK), nil
}

// QueryFacts scores every stored fact against embedding.
func (d *Driver) QueryFacts(_ context.Context, embedding []float32, topK int) ([]storage.ScoredFact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, storage.ErrClosed
	}
	if err := storage.CheckQuery(embedding, d.dimensions); err != nil {
		return nil, err
	}

	scored := make([]storage.ScoredFact, 0, len(d.facts))
	for _, f := range d.facts {
		sim, err := vector.CosineSimilarity(embedding, f.Embedding)
		if err != nil {
			return nil, err
		}
		scored = append(scored, storage.ScoredFact{Fact: f, Similarity: sim})
	}

	return storage.RankFacts(scored, topK), nil
}

// ListSources returns turns in insertion order.
func (d *Driver) ListSources(_ context.Context, sessionID string) ([]storage.Source, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, storage.ErrClosed
	}

	out := make([]storage.Source, 0, len(d.sources))
	for _, s := range d.sources {
		if sessionID == "" || s.SessionID == sessionID {
			out = append(out, s)
		}
	}
	return out, nil
}

// ListFacts returns facts in insertion order.
func (d *Driver) ListFacts(_ context.Context) ([]storage.Fact, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		return nil, storage.ErrClosed
	}
	return slices.Clone(d.facts), nil
}

// Clear drops every record. IDs keep increasing afterwards.
func (d *Driver) Clear(_ context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return storage.ErrClosed
	}
	d.sources = nil
	d.facts = nil
	return nil
}

// Close marks the driver closed.
func (d *Driver) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.closed = true
	return nil
}

func (d *Driver) fixDimensions(n int) {
	if d.dimensions == 0 {
		d.dimensions = n
	}
}

var _ storage.Driver = (*Driver)(nil)
