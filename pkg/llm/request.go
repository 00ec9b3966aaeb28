package llm

import "encoding/json"

// ChatRequest represents a provider-agnostic, non-streaming chat completion
// request.
type ChatRequest struct {
	// Model name (e.g., "gpt-4o-mini", "llama3.2"). Empty uses the client default.
	Model string `json:"model,omitempty"`

	// Conversation messages
	Messages []Message `json:"messages"`

	// Tools the model may call.
	Tools []ToolDefinition `json:"tools,omitempty"`

	// Generation parameters (unified across providers)
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`

	// JSONMode asks providers that support it to constrain output to a JSON object.
	JSONMode bool `json:"json_mode,omitempty"`
}

// ToolDefinition describes a callable tool with a JSON schema for its input.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Float64 returns a pointer to f, for optional request parameters.
func Float64(f float64) *float64 {
	return &f
}

// Int returns a pointer to i, for optional request parameters.
func Int(i int) *int {
	return &i
}
