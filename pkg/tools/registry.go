// Package tools is the agent's tool registry: a name-to-handler map with a
// JSON schema per tool and optional domain tags used to pick the tools
// offered to the model for a given message.
package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/metrics"
)

var (
	// ErrInvalidTool is returned when registering a tool without a name or
	// handler.
	ErrInvalidTool = errors.New("invalid tool")

	// ErrDuplicateTool is returned when a tool name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrUnknownTool is reported for calls to unregistered tools.
	ErrUnknownTool = errors.New("unknown tool")

	// ErrInvalidArgument is returned by handlers for bad call arguments.
	ErrInvalidArgument = errors.New("invalid tool argument")
)

// Handler executes one tool call. The returned value is serialized as the
// "data" member of the result envelope.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Tool is a registered tool.
type Tool struct {
	Name        string
	Description string

	// Parameters is the JSON schema of the call arguments.
	Parameters json.RawMessage

	// Domains restricts the tool to those domains. An untagged tool is
	// offered for every domain.
	Domains []memory.Domain

	Handler Handler
}

// Result is the envelope every tool call returns to the model.
type Result struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Registry holds the available tools.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*Tool
	order  []string
	logger *slog.Logger
}

// NewRegistry creates an empty Registry.
func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		tools:  make(map[string]*Tool),
		logger: logger.OrNop(log),
	}
}

// Register adds a tool.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" || t.Handler == nil {
		return fmt.Errorf("%w: name and handler are required", ErrInvalidTool)
	}
	if len(t.Parameters) == 0 {
		t.Parameters = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	if !json.Valid(t.Parameters) {
		return fmt.Errorf("%w: %s: parameters are not valid JSON", ErrInvalidTool, t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.tools[t.Name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTool, t.Name)
	}
	r.tools[t.Name] = &t
	r.order = append(r.order, t.Name)
	return nil
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.order)
}

// Definitions returns the tool schemas to offer for domain: untagged tools
// plus those tagged with domain. With no domain, every tool is offered.
func (r *Registry) Definitions(domain memory.Domain) []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]llm.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		t := r.tools[name]
		if !offered(t, domain) {
			continue
		}
		defs = append(defs, llm.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	return defs
}

func offered(t *Tool, domain memory.Domain) bool {
	if domain == memory.DomainNone || len(t.Domains) == 0 {
		return true
	}
	return slices.Contains(t.Domains, domain)
}

// Execute runs a tool call and returns its serialized result envelope.
// Handler errors and unknown tools become failed results, never Go errors,
// so the model can see and react to them.
func (r *Registry) Execute(ctx context.Context, call llm.ToolCall) llm.ToolResult {
	r.mu.RLock()
	t, ok := r.tools[call.Name]
	r.mu.RUnlock()

	var res Result
	if !ok {
		res = Result{Error: fmt.Sprintf("%v: %s", ErrUnknownTool, call.Name)}
	} else {
		args := call.Input
		if args == nil {
			args = map[string]any{}
		}
		data, err := t.Handler(ctx, args)
		if err != nil {
			res = Result{Error: err.Error()}
		} else {
			res = Result{Success: true, Data: data}
		}
	}

	metrics.ObserveToolCall(call.Name, !res.Success)
	if !res.Success {
		r.logger.Warn("tool call failed", "tool", call.Name, "call_id", call.ID, "error", res.Error)
	} else {
		r.logger.Debug("tool call succeeded", "tool", call.Name, "call_id", call.ID)
	}

	out, err := json.Marshal(res)
	if err != nil {
		out, _ = json.Marshal(Result{Error: fmt.Sprintf("encoding result: %v", err)})
		res.Success = false
	}

	return llm.ToolResult{
		ID:      call.ID,
		Output:  string(out),
		IsError: !res.Success,
	}
}
