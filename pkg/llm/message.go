// Package llm holds the provider-agnostic chat types shared by the agent,
// the fact extractor, and the completion clients in llm/provider.
package llm

import "encoding/json"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Content block types.
const (
	BlockText       = "text"
	BlockToolUse    = "tool_use"
	BlockToolResult = "tool_result"
)

// Message represents a single message in a conversation.
// Content is stored as an array of ContentBlocks so tool invocations and
// their outcomes travel with the turn that produced them.
type Message struct {
	Role    string         `json:"role"`    // "system", "user", "assistant", "tool"
	Content []ContentBlock `json:"content"` // Array of content blocks
}

// ContentBlock represents a single piece of content within a message.
// The Type field determines which other fields are populated.
type ContentBlock struct {
	Type string `json:"type"` // "text", "tool_use", "tool_result"

	// Text content (type="text")
	Text string `json:"text,omitempty"`

	// Tool use (type="tool_use") - assistant requesting tool execution
	ToolUseID string         `json:"tool_use_id,omitempty"`
	ToolName  string         `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// Tool result (type="tool_result") - result from tool execution
	ToolResultID string `json:"tool_result_id,omitempty"` // References the tool_use_id
	ToolOutput   string `json:"tool_output,omitempty"`
	IsError      bool   `json:"is_error,omitempty"`
}

// ToolCall is a tool invocation requested by the model.
type ToolCall struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input,omitempty"`
}

// ToolResult is the recorded outcome of a ToolCall.
type ToolResult struct {
	ID      string `json:"id"`
	Output  string `json:"output"`
	IsError bool   `json:"is_error,omitempty"`
}

// NewTextMessage creates a simple text message with the given role and content.
func NewTextMessage(role, text string) Message {
	return Message{
		Role: role,
		Content: []ContentBlock{
			{Type: BlockText, Text: text},
		},
	}
}

// NewToolResultMessage creates a "tool" role message carrying one result.
func NewToolResultMessage(r ToolResult) Message {
	return Message{
		Role: RoleTool,
		Content: []ContentBlock{{
			Type:         BlockToolResult,
			ToolResultID: r.ID,
			ToolOutput:   r.Output,
			IsError:      r.IsError,
		}},
	}
}

// GetText returns the concatenated text content from all text blocks in the message.
// For tool messages the tool outputs are returned instead.
func (m *Message) GetText() string {
	var result string
	for _, block := range m.Content {
		switch block.Type {
		case BlockText:
			result += block.Text
		case BlockToolResult:
			if m.Role == RoleTool {
				result += block.ToolOutput
			}
		}
	}
	return result
}

// ToolCalls returns the tool_use blocks of the message.
func (m *Message) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, block := range m.Content {
		if block.Type == BlockToolUse {
			calls = append(calls, ToolCall{ID: block.ToolUseID, Name: block.ToolName, Input: block.ToolInput})
		}
	}
	return calls
}

// ToolResults returns the tool_result blocks of the message.
func (m *Message) ToolResults() []ToolResult {
	var results []ToolResult
	for _, block := range m.Content {
		if block.Type == BlockToolResult {
			results = append(results, ToolResult{ID: block.ToolResultID, Output: block.ToolOutput, IsError: block.IsError})
		}
	}
	return results
}

// ToolCallsJSON serializes the message's tool calls, or returns nil when
// there are none.
func (m *Message) ToolCallsJSON() json.RawMessage {
	return marshalNonEmpty(m.ToolCalls())
}

// ToolResultsJSON serializes the message's tool results, or returns nil when
// there are none.
func (m *Message) ToolResultsJSON() json.RawMessage {
	return marshalNonEmpty(m.ToolResults())
}

func marshalNonEmpty[T any](items []T) json.RawMessage {
	if len(items) == 0 {
		return nil
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil
	}
	return b
}
