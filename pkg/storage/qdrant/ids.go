package qdrant

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// idGenerator hands out positive, strictly increasing int64 point IDs.
// Layout: 41 bits of unix milliseconds, 8 bits of per-process node, 12 bits
// of sequence. The node bits keep two writers started in the same
// millisecond from colliding.
type idGenerator struct {
	mu   sync.Mutex
	node int64
	last int64
	now  func() time.Time
}

const (
	nodeBits = 8
	seqBits  = 12
)

func newIDGenerator() *idGenerator {
	seed := uuid.New()
	return &idGenerator{
		node: int64(seed[0]) & (1<<nodeBits - 1),
		now:  time.Now,
	}
}

func (g *idGenerator) next() int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.now().UnixMilli()<<(nodeBits+seqBits) | g.node<<seqBits
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}
