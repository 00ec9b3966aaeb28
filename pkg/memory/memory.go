// Package memory is engram's long-term memory layer.
//
// A [Store] owns two append-only record kinds, conversation turns and the
// facts distilled from them, and answers nearest-neighbor queries over
// both. Every record is embedded on write through the configured
// [embeddings.Embedder] and persisted through a [storage.Driver].
//
// A [Composer] sits on top of the Store at request time: it classifies the
// user's message into a [Domain], retrieves candidate memories, and narrows
// the facts to that domain.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/engram/pkg/embeddings"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/metrics"
	"github.com/papercomputeco/engram/pkg/storage"
)

// Config configures a Store.
type Config struct {
	Driver   storage.Driver
	Embedder embeddings.Embedder

	// Dimensions is the expected embedding size. Zero skips the check.
	Dimensions int

	Logger *slog.Logger
}

// Store writes and retrieves memories.
type Store struct {
	driver     storage.Driver
	embedder   embeddings.Embedder
	dimensions int
	logger     *slog.Logger
}

// TurnInput is one conversation turn to persist.
type TurnInput struct {
	SessionID   string          `json:"session_id"`
	Turn        int             `json:"turn"`
	Speaker     string          `json:"speaker"`
	Content     string          `json:"content"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
}

// FactInput is one fact to persist. A zero Confidence means "not given"
// and is stored as 1.0.
type FactInput struct {
	Text       string  `json:"text"`
	SourceIDs  []int64 `json:"source_ids"`
	Type       string  `json:"type,omitempty"`
	Domain     string  `json:"domain,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// Memories is the result of a retrieval: two independently ranked lists.
type Memories struct {
	Facts   []storage.ScoredFact   `json:"facts"`
	Sources []storage.ScoredSource `json:"sources"`
}

// NewStore builds a Store.
func NewStore(c Config) (*Store, error) {
	if c.Driver == nil || c.Embedder == nil {
		return nil, ErrNotConfigured
	}

	return &Store{
		driver:     c.Driver,
		embedder:   c.Embedder,
		dimensions: c.Dimensions,
		logger:     logger.OrNop(c.Logger),
	}, nil
}

// WriteTurn embeds the turn and stores it, returning the assigned source
// ID. A turn without text, such as a tool-call-only assistant turn, is
// embedded from its transcript line instead.
func (s *Store) WriteTurn(ctx context.Context, in TurnInput) (int64, error) {
	emb, err := s.embed(ctx, turnText(in))
	if err != nil {
		metrics.ObserveMemoryWrite(metrics.KindTurn, err)
		return 0, err
	}

	id, err := s.driver.InsertSource(ctx, &storage.Source{
		SessionID:   in.SessionID,
		Turn:        in.Turn,
		Speaker:     in.Speaker,
		Content:     in.Content,
		ToolCalls:   in.ToolCalls,
		ToolResults: in.ToolResults,
		Embedding:   emb,
	})
	metrics.ObserveMemoryWrite(metrics.KindTurn, err)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting turn: %w", storage.ErrStorage, err)
	}

	s.logger.Debug("wrote turn",
		"source_id", id,
		"session_id", in.SessionID,
		"turn", in.Turn,
		"speaker", in.Speaker,
	)
	return id, nil
}

// WriteFact embeds the fact text and stores it, returning the assigned
// fact ID. SourceIDs are stored verbatim and not checked.
func (s *Store) WriteFact(ctx context.Context, in FactInput) (int64, error) {
	emb, err := s.embed(ctx, in.Text)
	if err != nil {
		metrics.ObserveMemoryWrite(metrics.KindFact, err)
		return 0, err
	}

	sourceIDs := in.SourceIDs
	if sourceIDs == nil {
		sourceIDs = []int64{}
	}

	id, err := s.driver.InsertFact(ctx, &storage.Fact{
		Text:       in.Text,
		SourceIDs:  sourceIDs,
		Type:       in.Type,
		Domain:     in.Domain,
		Confidence: NormalizeConfidence(in.Confidence),
		Embedding:  emb,
	})
	metrics.ObserveMemoryWrite(metrics.KindFact, err)
	if err != nil {
		return 0, fmt.Errorf("%w: inserting fact: %w", storage.ErrStorage, err)
	}

	s.logger.Debug("wrote fact",
		"fact_id", id,
		"fact_type", in.Type,
		"domain", in.Domain,
		"source_ids", len(sourceIDs),
	)
	return id, nil
}

// Retrieve embeds query once and runs the fact and turn queries
// concurrently. A topK of zero or less returns empty lists without
// calling the embedder.
func (s *Store) Retrieve(ctx context.Context, query string, topK int) (*Memories, error) {
	if topK <= 0 {
		return &Memories{
			Facts:   []storage.ScoredFact{},
			Sources: []storage.ScoredSource{},
		}, nil
	}

	start := time.Now()
	mem, err := s.retrieve(ctx, query, topK)
	metrics.ObserveRetrieval(time.Since(start), err)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("retrieved memories",
		"top_k", topK,
		"facts", len(mem.Facts),
		"sources", len(mem.Sources),
		"elapsed", time.Since(start),
	)
	return mem, nil
}

func (s *Store) retrieve(ctx context.Context, query string, topK int) (*Memories, error) {
	emb, err := s.embed(ctx, query)
	if err != nil {
		return nil, err
	}

	mem := &Memories{}
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		facts, err := s.driver.QueryFacts(gctx, emb, topK)
		if err != nil {
			return fmt.Errorf("%w: querying facts: %w", storage.ErrStorage, err)
		}
		mem.Facts = facts
		return nil
	})

	g.Go(func() error {
		sources, err := s.driver.QuerySources(gctx, emb, topK)
		if err != nil {
			return fmt.Errorf("%w: querying sources: %w", storage.ErrStorage, err)
		}
		mem.Sources = sources
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	if mem.Facts == nil {
		mem.Facts = []storage.ScoredFact{}
	}
	if mem.Sources == nil {
		mem.Sources = []storage.ScoredSource{}
	}
	return mem, nil
}

// ListFacts returns every stored fact in ID order.
func (s *Store) ListFacts(ctx context.Context) ([]storage.Fact, error) {
	facts, err := s.driver.ListFacts(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing facts: %w", storage.ErrStorage, err)
	}
	return facts, nil
}

// ListSources returns stored turns in ID order, optionally for one session.
func (s *Store) ListSources(ctx context.Context, sessionID string) ([]storage.Source, error) {
	sources, err := s.driver.ListSources(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sources: %w", storage.ErrStorage, err)
	}
	return sources, nil
}

// Clear removes every stored turn and fact.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.driver.Clear(ctx); err != nil {
		return fmt.Errorf("%w: clearing: %w", storage.ErrStorage, err)
	}
	s.logger.Warn("memory store cleared")
	return nil
}

// Close closes the driver and the embedder.
func (s *Store) Close() error {
	return errors.Join(s.driver.Close(), s.embedder.Close())
}

func (s *Store) embed(ctx context.Context, text string) ([]float32, error) {
	emb, err := s.embedder.Embed(ctx, text)
	if err != nil {
		if errors.Is(err, ErrEmbedding) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", ErrEmbedding, err)
	}
	if len(emb) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty vector", ErrEmbedding)
	}
	if s.dimensions > 0 && len(emb) != s.dimensions {
		return nil, fmt.Errorf("%w: provider returned %d, configured %d",
			ErrDimensionMismatch, len(emb), s.dimensions)
	}
	return emb, nil
}

// turnText is the text embedded for a turn: its content, or when that is
// blank, the speaker followed by whatever tool payloads it carries.
func turnText(in TurnInput) string {
	if strings.TrimSpace(in.Content) != "" {
		return in.Content
	}

	parts := []string{in.Speaker + ":"}
	if len(in.ToolCalls) > 0 {
		parts = append(parts, "tool_calls "+string(in.ToolCalls))
	}
	if len(in.ToolResults) > 0 {
		parts = append(parts, "tool_results "+string(in.ToolResults))
	}
	if len(parts) == 1 {
		parts = append(parts, "(empty turn)")
	}
	return strings.Join(parts, " ")
}

// NormalizeConfidence maps a zero or NaN confidence to the default 1.0 and
// clamps everything else to [0, 1].
func NormalizeConfidence(c float64) float64 {
	switch {
	case c == 0 || math.IsNaN(c):
		return 1.0
	case c < 0:
		return 0
	case c > 1:
		return 1
	default:
		return c
	}
}
