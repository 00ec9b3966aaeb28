package testutils

import (
	"context"
	"errors"
	"sync"

	"github.com/papercomputeco/engram/pkg/storage"
)

// ErrInjected is returned by FailingDriver when a failure is armed.
var ErrInjected = errors.New("injected storage failure")

// FailingDriver wraps a storage.Driver and fails selected operations.
// FailSourceAfter and FailFactAfter let that many inserts through before
// failing; a negative value never fails.
type FailingDriver struct {
	storage.Driver

	mu sync.Mutex

	FailSourceAfter int
	FailFactAfter   int
	FailQuery       bool

	sourceInserts int
	factInserts   int
}

// NewFailingDriver wraps inner with every failure disarmed.
func NewFailingDriver(inner storage.Driver) *FailingDriver {
	return &FailingDriver{
		Driver:          inner,
		FailSourceAfter: -1,
		FailFactAfter:   -1,
	}
}

func (f *FailingDriver) InsertSource(ctx context.Context, s *storage.Source) (int64, error) {
	f.mu.Lock()
	fail := f.FailSourceAfter >= 0 && f.sourceInserts >= f.FailSourceAfter
	f.sourceInserts++
	f.mu.Unlock()

	if fail {
		return 0, ErrInjected
	}
	return f.Driver.InsertSource(ctx, s)
}

func (f *FailingDriver) InsertFact(ctx context.Context, fact *storage.Fact) (int64, error) {
	f.mu.Lock()
	fail := f.FailFactAfter >= 0 && f.factInserts >= f.FailFactAfter
	f.factInserts++
	f.mu.Unlock()

	if fail {
		return 0, ErrInjected
	}
	return f.Driver.InsertFact(ctx, fact)
}

func (f *FailingDriver) QuerySources(ctx context.Context, emb []float32, topK int) ([]storage.ScoredSource, error) {
	if f.FailQuery {
		return nil, ErrInjected
	}
	return f.Driver.QuerySources(ctx, emb, topK)
}

func (f *FailingDriver) QueryFacts(ctx context.Context, emb []float32, topK int) ([]storage.ScoredFact, error) {
	if f.FailQuery {
		return nil, ErrInjected
	}
	return f.Driver.QueryFacts(ctx, emb, topK)
}

var _ storage.Driver = (*FailingDriver)(nil)
