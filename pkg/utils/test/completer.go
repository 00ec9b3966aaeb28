package testutils

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/papercomputeco/engram/pkg/llm"
)

// ErrScriptExhausted is returned once a MockCompleter runs out of replies.
var ErrScriptExhausted = errors.New("mock completer has no more replies")

// MockCompleter is an llm.Client that plays back scripted replies in order
// and records each request.
type MockCompleter struct {
	mu sync.Mutex

	// Replies are returned one per Complete call.
	Replies []*llm.ChatResponse

	// Err, when set, is returned from every Complete call.
	Err error

	// Requests records every request received.
	Requests []*llm.ChatRequest
}

// NewMockCompleter creates a completer that answers with the given texts.
func NewMockCompleter(texts ...string) *MockCompleter {
	m := &MockCompleter{}
	for _, t := range texts {
		m.Replies = append(m.Replies, TextReply(t))
	}
	return m
}

// TextReply builds an assistant response with a single text block.
func TextReply(text string) *llm.ChatResponse {
	return &llm.ChatResponse{
		Message:    llm.NewTextMessage(llm.RoleAssistant, text),
		StopReason: "stop",
	}
}

// ToolReply builds an assistant response that requests the given tool calls.
func ToolReply(calls ...llm.ToolCall) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	for _, c := range calls {
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: c.ID,
			ToolName:  c.Name,
			ToolInput: c.Input,
		})
	}
	return &llm.ChatResponse{Message: msg, StopReason: "tool_calls"}
}

func (m *MockCompleter) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", llm.ErrCompletion, err)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	if len(m.Replies) == 0 {
		return nil, fmt.Errorf("%w: %w", llm.ErrCompletion, ErrScriptExhausted)
	}

	reply := m.Replies[0]
	m.Replies = m.Replies[1:]
	return reply, nil
}

// RequestCount returns how many requests were received.
func (m *MockCompleter) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// LastRequest returns the most recent request, or nil.
func (m *MockCompleter) LastRequest() *llm.ChatRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil
	}
	return m.Requests[len(m.Requests)-1]
}

func (m *MockCompleter) Close() error {
	return nil
}

var _ llm.Client = (*MockCompleter)(nil)
