package memory

import (
	"context"
	"log/slog"

	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/storage"
)

// Retriever is the read side of a Store.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (*Memories, error)
}

// Composer gathers the memories injected into a prompt.
type Composer struct {
	retriever Retriever
	logger    *slog.Logger
}

// Composition is the result of Compose. Domain is empty when none was
// given or detected.
type Composition struct {
	Domain  Domain                 `json:"domain"`
	Facts   []storage.ScoredFact   `json:"facts"`
	Sources []storage.ScoredSource `json:"sources"`
}

// NewComposer creates a Composer over r.
func NewComposer(r Retriever, log *slog.Logger) *Composer {
	return &Composer{
		retriever: r,
		logger:    logger.OrNop(log),
	}
}

// Compose retrieves memories for message. When hint is empty the domain is
// classified from message. With a domain, facts are narrowed to that
// domain; sources are never filtered. An empty result is not an error.
func (c *Composer) Compose(ctx context.Context, message string, hint Domain, topK int) (*Composition, error) {
	domain := hint
	if domain == DomainNone {
		domain, _ = Classify(message)
	}

	mem, err := c.retriever.Retrieve(ctx, message, topK)
	if err != nil {
		return nil, err
	}

	facts := mem.Facts
	if domain != DomainNone {
		facts = make([]storage.ScoredFact, 0, len(mem.Facts))
		for _, f := range mem.Facts {
			if domain.Matches(f.Domain) {
				facts = append(facts, f)
			}
		}
	}

	c.logger.Debug("composed memories",
		"domain", domain,
		"facts_retrieved", len(mem.Facts),
		"facts_kept", len(facts),
		"sources", len(mem.Sources),
	)

	return &Composition{
		Domain:  domain,
		Facts:   facts,
		Sources: mem.Sources,
	}, nil
}

var _ Retriever = (*Store)(nil)
