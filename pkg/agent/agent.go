// Package agent runs engram's memory-driven tool-calling loop.
//
// For each user message the Agent appends it to the session history,
// compacts the history into long-term memory when it has grown past the
// threshold, composes relevant memories for the message's domain into the
// system prompt, and then alternates model completions with tool
// executions until the model answers without calling a tool.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/compaction"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/metrics"
	"github.com/papercomputeco/engram/pkg/session"
)

const (
	DefaultMaxIterations  = 20
	DefaultTopK           = 5
	DefaultMaxPromptFacts = 5
)

var (
	// ErrMaxIterations is returned when the model keeps calling tools past
	// the iteration cap.
	ErrMaxIterations = errors.New("agent exceeded maximum iterations")

	// ErrEmptyMessage is returned for a blank user message.
	ErrEmptyMessage = errors.New("empty message")

	// ErrNotConfigured is returned by New when a collaborator is missing.
	ErrNotConfigured = errors.New("agent requires a completion client, a session manager and a composer")
)

// Composer gathers the memories injected into the prompt.
type Composer interface {
	Compose(ctx context.Context, message string, hint memory.Domain, topK int) (*memory.Composition, error)
}

// Compactor flushes a session's history into long-term memory.
type Compactor interface {
	CompactSession(ctx context.Context, s *session.State, threshold int) (compaction.Result, error)
}

// ToolExecutor offers and runs tools.
type ToolExecutor interface {
	Definitions(domain memory.Domain) []llm.ToolDefinition
	Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult
}

// Config configures an Agent.
type Config struct {
	Client    llm.Client
	Model     string
	Sessions  *session.Manager
	Composer  Composer
	Compactor Compactor
	Tools     ToolExecutor

	CompactionThreshold int
	TopK                int
	MaxPromptFacts      int
	MaxIterations       int
	Temperature         *float64
	MaxTokens           *int

	Logger *slog.Logger
}

// Agent processes user messages.
type Agent struct {
	client    llm.Client
	model     string
	sessions  *session.Manager
	composer  Composer
	compactor Compactor
	tools     ToolExecutor

	threshold      int
	topK           int
	maxPromptFacts int
	maxIterations  int
	temperature    *float64
	maxTokens      *int

	logger *slog.Logger
}

// ToolCallRecord is one tool call made while answering.
type ToolCallRecord struct {
	ID      string         `json:"id"`
	Name    string         `json:"name"`
	Input   map[string]any `json:"input,omitempty"`
	Output  string         `json:"output"`
	IsError bool           `json:"is_error,omitempty"`
}

// Reply is the outcome of ProcessMessage.
type Reply struct {
	SessionID  string             `json:"session_id"`
	Content    string             `json:"text"`
	Domain     memory.Domain      `json:"domain,omitempty"`
	Iterations int                `json:"iterations"`
	ToolCalls  []ToolCallRecord   `json:"tool_calls,omitempty"`
	Facts      int                `json:"facts_used"`
	Compaction *compaction.Result `json:"compaction,omitempty"`
}

// New builds an Agent. Compactor and Tools are optional.
func New(c Config) (*Agent, error) {
	if c.Client == nil || c.Sessions == nil || c.Composer == nil {
		return nil, ErrNotConfigured
	}

	return &Agent{
		client:         c.Client,
		model:          c.Model,
		sessions:       c.Sessions,
		composer:       c.Composer,
		compactor:      c.Compactor,
		tools:          c.Tools,
		threshold:      orDefault(c.CompactionThreshold, compaction.DefaultThreshold),
		topK:           orDefault(c.TopK, DefaultTopK),
		maxPromptFacts: orDefault(c.MaxPromptFacts, DefaultMaxPromptFacts),
		maxIterations:  orDefault(c.MaxIterations, DefaultMaxIterations),
		temperature:    c.Temperature,
		maxTokens:      c.MaxTokens,
		logger:         logger.OrNop(c.Logger),
	}, nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}

// ProcessMessage answers text within session sessionID, creating the
// session when it does not exist. An empty sessionID starts a new session.
// Compaction failures are logged and never fail the request.
func (a *Agent) ProcessMessage(ctx context.Context, sessionID, text string) (reply *Reply, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveAgentRequest(err)
	}()

	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}

	state, created, err := a.sessions.GetOrCreate(sessionID)
	if err != nil {
		return nil, err
	}

	state.Lock()
	defer state.Unlock()
	state.Touch()

	log := a.logger.With("session_id", state.ID)
	if created {
		log.Info("started session")
	}

	history := state.History()
	history.Append(llm.NewTextMessage(llm.RoleUser, text))

	reply = &Reply{SessionID: state.ID}
	if a.compactor != nil {
		res, cerr := a.compactor.CompactSession(ctx, state, a.threshold)
		if cerr != nil {
			log.Error("memory compaction failed", "error", cerr)
		} else if res.Triggered {
			reply.Compaction = &res
		}
	}

	comp, err := a.composer.Compose(ctx, text, memory.DomainNone, a.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving memories: %w", err)
	}
	reply.Domain = comp.Domain
	reply.Facts = min(len(comp.Facts), a.maxPromptFacts)

	system := llm.NewTextMessage(llm.RoleSystem, SystemPrompt(comp.Domain, comp.Facts, a.maxPromptFacts))

	var defs []llm.ToolDefinition
	if a.tools != nil {
		defs = a.tools.Definitions(comp.Domain)
	}

	var texts []string
	for reply.Iterations < a.maxIterations {
		reply.Iterations++

		req := &llm.ChatRequest{
			Model:       a.model,
			Messages:    append([]llm.Message{system}, sanitize(history.Messages())...),
			Tools:       defs,
			Temperature: a.temperature,
			MaxTokens:   a.maxTokens,
		}

		resp, err := a.client.Complete(ctx, req)
		if err != nil {
			return nil, err
		}
		if resp == nil {
			return nil, fmt.Errorf("%w: empty response", llm.ErrCompletion)
		}

		msg := resp.Message
		msg.Role = llm.RoleAssistant
		if t := strings.TrimSpace(msg.GetText()); t != "" {
			texts = append(texts, t)
		}

		calls := msg.ToolCalls()
		if len(calls) == 0 || a.tools == nil {
			history.Append(msg)
			reply.Content = strings.Join(texts, "\n\n")
			log.Info("answered message",
				"domain", reply.Domain,
				"iterations", reply.Iterations,
				"tool_calls", len(reply.ToolCalls),
				"facts", reply.Facts,
				"duration", time.Since(start),
			)
			return reply, nil
		}

		results := make([]llm.Message, 0, len(calls))
		for _, call := range calls {
			res := a.tools.Execute(ctx, call)
			reply.ToolCalls = append(reply.ToolCalls, ToolCallRecord{
				ID:      call.ID,
				Name:    call.Name,
				Input:   call.Input,
				Output:  res.Output,
				IsError: res.IsError,
			})
			results = append(results, llm.NewToolResultMessage(res))
		}

		history.Append(msg)
		history.Append(results...)
	}

	log.Warn("agent hit iteration cap", "iterations", reply.Iterations)
	return nil, fmt.Errorf("%w: %d", ErrMaxIterations, a.maxIterations)
}

// EndSession removes a session from the registry.
func (a *Agent) EndSession(sessionID string) error {
	return a.sessions.Delete(sessionID)
}
