package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/engram/pkg/llm"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3.2"

	defaultTimeout = 120 * time.Second
)

// Config holds configuration for the Ollama client.
type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client is an llm.Client for a local or remote Ollama server.
type Client struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// New creates an Ollama chat client.
func New(cfg Config) *Client {
	baseURL := strings.TrimSuffix(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL:    baseURL,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming /api/chat request.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := json.Marshal(c.toWire(req))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: ollama request: %v", llm.ErrCompletion, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", llm.ErrCompletion, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama API error (status %d): %s", llm.ErrCompletion, resp.StatusCode, string(respBody))
	}

	var wire ollamaResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", llm.ErrCompletion, err)
	}
	if wire.Error != "" {
		return nil, fmt.Errorf("%w: ollama error: %s", llm.ErrCompletion, wire.Error)
	}

	return fromWire(&wire), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) toWire(req *llm.ChatRequest) *ollamaRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	out := &ollamaRequest{Model: model}
	if req.JSONMode {
		out.Format = "json"
	}
	if req.Temperature != nil || req.MaxTokens != nil {
		out.Options = &ollamaOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	for _, t := range req.Tools {
		var params any
		if len(t.Parameters) > 0 {
			params = t.Parameters
		}
		out.Tools = append(out.Tools, ollamaTool{
			Type: "function",
			Function: ollamaFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	// Ollama identifies tool results by tool name, so remember which call
	// ID belonged to which tool.
	names := map[string]string{}
	for _, msg := range req.Messages {
		if msg.Role == llm.RoleTool {
			for _, r := range msg.ToolResults() {
				out.Messages = append(out.Messages, ollamaMessage{
					Role:     llm.RoleTool,
					Content:  r.Output,
					ToolName: names[r.ID],
				})
			}
			continue
		}

		wm := ollamaMessage{Role: msg.Role, Content: msg.GetText()}
		for _, call := range msg.ToolCalls() {
			names[call.ID] = call.Name
			tc := ollamaToolCall{ID: call.ID}
			tc.Function.Name = call.Name
			tc.Function.Arguments = call.Input
			wm.ToolCalls = append(wm.ToolCalls, tc)
		}
		out.Messages = append(out.Messages, wm)
	}

	return out
}

func fromWire(wire *ollamaResponse) *llm.ChatResponse {
	msg := llm.Message{Role: llm.RoleAssistant}
	if wire.Message.Content != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: wire.Message.Content})
	}

	for _, tc := range wire.Message.ToolCalls {
		// Older Ollama releases omit tool call IDs.
		id := tc.ID
		if id == "" {
			id = "call_" + uuid.NewString()
		}
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: id,
			ToolName:  tc.Function.Name,
			ToolInput: tc.Function.Arguments,
		})
	}

	return &llm.ChatResponse{
		Model:      wire.Model,
		CreatedAt:  wire.CreatedAt,
		Message:    msg,
		StopReason: wire.DoneReason,
		Usage: &llm.Usage{
			PromptTokens:     wire.PromptEvalCount,
			CompletionTokens: wire.EvalCount,
			TotalTokens:      wire.PromptEvalCount + wire.EvalCount,
			TotalDurationNs:  wire.TotalDuration,
		},
	}
}

var _ llm.Client = (*Client)(nil)
