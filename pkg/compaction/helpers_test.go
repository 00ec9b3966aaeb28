package compaction_test

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/papercomputeco/engram/pkg/eventstream"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

var errExtract = errors.New("model unavailable")

type stubExtractor struct {
	candidates []extract.Candidate
	err        error
	seen       [][]llm.Message
}

func (s *stubExtractor) Extract(_ context.Context, msgs []llm.Message) ([]extract.Candidate, error) {
	s.seen = append(s.seen, msgs)
	if s.err != nil {
		return nil, s.err
	}
	return s.candidates, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []*eventstream.CompactionCompletedEvent
	err    error
}

func (p *recordingPublisher) PublishCompaction(_ context.Context, e *eventstream.CompactionCompletedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
	return p.err
}

func (p *recordingPublisher) Close() error { return nil }

func conversation(n int) []llm.Message {
	msgs := make([]llm.Message, n)
	for i := range msgs {
		role := llm.RoleUser
		if i%2 == 1 {
			role = llm.RoleAssistant
		}
		msgs[i] = llm.NewTextMessage(role, fmt.Sprintf("message %d", i))
	}
	return msgs
}

func newStore(driver *testutils.FailingDriver) *memory.Store {
	store, err := memory.NewStore(memory.Config{
		Driver:     driver,
		Embedder:   testutils.NewMockEmbedder(),
		Dimensions: 3,
	})
	if err != nil {
		panic(err)
	}
	return store
}

func newDriver() (*inmemory.Driver, *testutils.FailingDriver) {
	inner := inmemory.NewDriver()
	return inner, testutils.NewFailingDriver(inner)
}

func confidence(v float64) *float64 { return &v }
