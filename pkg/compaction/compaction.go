// Package compaction flushes in-memory session history into long-term
// memory once it grows past a threshold.
//
// A run writes every message as a conversation turn, asks the fact
// extractor to distill the whole history, attributes each fact to the full
// batch of written turns, and finally truncates the history to a short
// trailing window. Extraction is best-effort; storage failures abort the
// run and leave the history untouched so nothing is lost.
package compaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/engram/pkg/eventstream"
	"github.com/papercomputeco/engram/pkg/eventstream/nop"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/metrics"
	"github.com/papercomputeco/engram/pkg/session"
)

const (
	// DefaultThreshold is the history length above which compaction runs.
	DefaultThreshold = 15

	// DefaultRetainWindow is how many trailing messages survive truncation.
	DefaultRetainWindow = 5
)

var (
	// ErrNotConfigured is returned by New when a collaborator is missing.
	ErrNotConfigured = errors.New("compaction controller requires a memory writer and an extractor")

	// ErrCompaction wraps storage failures that aborted a run.
	ErrCompaction = errors.New("compaction failed")
)

// MemoryWriter persists turns and facts.
type MemoryWriter interface {
	WriteTurn(ctx context.Context, in memory.TurnInput) (int64, error)
	WriteFact(ctx context.Context, in memory.FactInput) (int64, error)
}

// FactExtractor distills candidate facts from a conversation.
type FactExtractor interface {
	Extract(ctx context.Context, messages []llm.Message) ([]extract.Candidate, error)
}

var (
	_ MemoryWriter  = (*memory.Store)(nil)
	_ FactExtractor = (*extract.Extractor)(nil)
)

// Config configures a Controller.
type Config struct {
	Memory    MemoryWriter
	Extractor FactExtractor

	// RetainWindow is the trailing history length kept after a run.
	// Zero selects DefaultRetainWindow; a negative value keeps nothing.
	RetainWindow int

	// Timeout bounds a whole run. Zero means no extra bound.
	Timeout time.Duration

	// Publisher receives a completion event per successful run.
	Publisher eventstream.Publisher

	Logger *slog.Logger
}

// Controller runs compaction for sessions.
type Controller struct {
	memory    MemoryWriter
	extractor FactExtractor
	window    int
	timeout   time.Duration
	publisher eventstream.Publisher
	logger    *slog.Logger
}

// Result reports what one MaybeCompact call did.
type Result struct {
	Triggered      bool    `json:"triggered"`
	TurnsWritten   int     `json:"turns_written"`
	FactsExtracted int     `json:"facts_extracted"`
	SourceIDs      []int64 `json:"source_ids,omitempty"`
	FactIDs        []int64 `json:"fact_ids,omitempty"`
	Discarded      int     `json:"discarded"`
	ExtractFailed  bool    `json:"extract_failed,omitempty"`
}

// New builds a Controller.
func New(c Config) (*Controller, error) {
	if c.Memory == nil || c.Extractor == nil {
		return nil, ErrNotConfigured
	}

	window := c.RetainWindow
	switch {
	case window == 0:
		window = DefaultRetainWindow
	case window < 0:
		window = 0
	}

	publisher := c.Publisher
	if publisher == nil {
		publisher = nop.NewPublisher()
	}

	return &Controller{
		memory:    c.Memory,
		extractor: c.Extractor,
		window:    window,
		timeout:   c.Timeout,
		publisher: publisher,
		logger:    logger.OrNop(c.Logger),
	}, nil
}

// ShouldCompact reports whether a history of n messages exceeds threshold.
func ShouldCompact(n, threshold int) bool {
	return n > threshold
}

// RetainWindow returns the configured trailing window.
func (c *Controller) RetainWindow() int {
	return c.window
}

// CompactSession runs MaybeCompact on a session's history and moves the
// session through the COMPACTING phase while it does. Callers hold the
// session lock.
func (c *Controller) CompactSession(ctx context.Context, s *session.State, threshold int) (Result, error) {
	if !ShouldCompact(s.History().Len(), threshold) {
		return Result{}, nil
	}

	s.SetPhase(session.PhaseCompacting)
	defer s.SetPhase(session.PhaseActive)

	return c.MaybeCompact(ctx, s.ID, s.History(), threshold)
}

// MaybeCompact writes history to memory when it exceeds threshold, then
// truncates it to the retain window. Extraction failures are logged and
// yield zero facts. A turn or fact write failure returns an error and
// leaves history as it was; turns already written are remembered on the
// history so a retry continues after them. TurnsWritten counts only the
// turns written by this call.
func (c *Controller) MaybeCompact(ctx context.Context, sessionID string, history *session.History, threshold int) (Result, error) {
	messages := history.Messages()
	if !ShouldCompact(len(messages), threshold) {
		return Result{}, nil
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	res := Result{Triggered: true}
	log := c.logger.With("session_id", sessionID)
	log.Info("compacting session history", "messages", len(messages), "threshold", threshold)

	// Turns written by an earlier failed run are not written again.
	sourceIDs := history.Persisted()
	if len(sourceIDs) > 0 {
		log.Debug("resuming compaction", "already_written", len(sourceIDs))
	}
	for i := len(sourceIDs); i < len(messages); i++ {
		id, err := c.memory.WriteTurn(ctx, turnInput(sessionID, i, messages[i]))
		if err != nil {
			metrics.ObserveCompaction(metrics.OutcomeWriteFailed, time.Since(start), res.TurnsWritten, 0)
			return res, fmt.Errorf("%w: writing turn %d: %w", ErrCompaction, i, err)
		}
		history.MarkPersisted(id)
		sourceIDs = append(sourceIDs, id)
		res.TurnsWritten++
	}
	res.SourceIDs = sourceIDs

	candidates, err := c.extractor.Extract(ctx, messages)
	if err != nil {
		log.Warn("fact extraction failed, continuing without facts", "error", err)
		res.ExtractFailed = true
		candidates = nil
	}

	factIDs := make([]int64, 0, len(candidates))
	for _, cand := range candidates {
		id, err := c.memory.WriteFact(ctx, factInput(cand, sourceIDs))
		if err != nil {
			metrics.ObserveCompaction(metrics.OutcomeWriteFailed, time.Since(start), res.TurnsWritten, len(factIDs))
			return res, fmt.Errorf("%w: writing fact %q: %w", ErrCompaction, cand.Text, err)
		}
		factIDs = append(factIDs, id)
	}
	res.FactsExtracted = len(factIDs)
	res.FactIDs = factIDs

	res.Discarded = history.Truncate(c.window)

	elapsed := time.Since(start)
	outcome := metrics.OutcomeCompleted
	if res.ExtractFailed {
		outcome = metrics.OutcomeExtractFailed
	}
	metrics.ObserveCompaction(outcome, elapsed, res.TurnsWritten, res.FactsExtracted)

	log.Info("compaction completed",
		"turns_written", res.TurnsWritten,
		"facts_extracted", res.FactsExtracted,
		"discarded", res.Discarded,
		"duration", elapsed,
	)

	c.publish(ctx, sessionID, res, elapsed)
	return res, nil
}

// publish emits the completion event. Failures are logged only.
func (c *Controller) publish(ctx context.Context, sessionID string, res Result, elapsed time.Duration) {
	event := eventstream.NewCompactionCompleted(sessionID)
	event.TurnsWritten = res.TurnsWritten
	event.FactsExtracted = res.FactsExtracted
	event.SourceIDs = res.SourceIDs
	event.FactIDs = res.FactIDs
	event.ExtractFailed = res.ExtractFailed
	event.Duration = elapsed

	if err := c.publisher.PublishCompaction(ctx, event); err != nil {
		c.logger.Warn("failed to publish compaction event",
			"session_id", sessionID,
			"event_id", event.EventID,
			"error", err,
		)
	}
}

func turnInput(sessionID string, ordinal int, msg llm.Message) memory.TurnInput {
	return memory.TurnInput{
		SessionID:   sessionID,
		Turn:        ordinal,
		Speaker:     msg.Role,
		Content:     msg.GetText(),
		ToolCalls:   msg.ToolCallsJSON(),
		ToolResults: msg.ToolResultsJSON(),
	}
}

func factInput(c extract.Candidate, sourceIDs []int64) memory.FactInput {
	in := memory.FactInput{
		Text:      c.Text,
		SourceIDs: sourceIDs,
		Type:      c.Type,
		Domain:    c.Domain,
	}
	if c.Confidence != nil {
		in.Confidence = *c.Confidence
	}
	return in
}
