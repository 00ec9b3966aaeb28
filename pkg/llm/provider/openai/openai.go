// Package openai implements llm.Client against the OpenAI Chat Completions
// API. Any server speaking the same protocol (DeepSeek, Moonshot, vLLM, ...)
// works by pointing BaseURL at it.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/llm"
)

const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"

	defaultTimeout = 60 * time.Second
)

// Config holds configuration for the OpenAI client.
type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client is an OpenAI-compatible llm.Client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// New creates an OpenAI-compatible client.
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
		apiKey:     cfg.APIKey,
		model:      model,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Complete sends a non-streaming chat completion request.
func (c *Client) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	body, err := json.Marshal(c.toWire(req))
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", llm.ErrCompletion, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", llm.ErrCompletion, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: openai request: %v", llm.ErrCompletion, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", llm.ErrCompletion, err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: openai API error (status %d): %s", llm.ErrCompletion, resp.StatusCode, string(respBody))
	}

	var wire openaiResponse
	if err := json.Unmarshal(respBody, &wire); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", llm.ErrCompletion, err)
	}
	if wire.Error != nil {
		return nil, fmt.Errorf("%w: openai error: %s", llm.ErrCompletion, wire.Error.Message)
	}
	if len(wire.Choices) == 0 {
		return nil, fmt.Errorf("%w: openai returned no choices", llm.ErrCompletion)
	}

	return fromWire(&wire), nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) toWire(req *llm.ChatRequest) *openaiRequest {
	model := req.Model
	if model == "" {
		model = c.model
	}

	out := &openaiRequest{
		Model:       model,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	}
	if req.JSONMode {
		out.ResponseFormat = &openaiRespFormat{Type: "json_object"}
	}

	for _, t := range req.Tools {
		var params any
		if len(t.Parameters) > 0 {
			params = t.Parameters
		}
		out.Tools = append(out.Tools, openaiTool{
			Type: "function",
			Function: openaiFunction{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  params,
			},
		})
	}

	for _, msg := range req.Messages {
		out.Messages = append(out.Messages, messagesToWire(msg)...)
	}

	return out
}

// messagesToWire converts one message into OpenAI messages. A tool message
// with several results becomes one "tool" message per result.
func messagesToWire(msg llm.Message) []openaiMessage {
	if msg.Role == llm.RoleTool {
		results := msg.ToolResults()
		out := make([]openaiMessage, 0, len(results))
		for _, r := range results {
			output := r.Output
			out = append(out, openaiMessage{
				Role:       llm.RoleTool,
				Content:    &output,
				ToolCallID: r.ID,
			})
		}
		return out
	}

	wm := openaiMessage{Role: msg.Role}
	if text := msg.GetText(); text != "" || len(msg.ToolCalls()) == 0 {
		wm.Content = &text
	}

	for _, call := range msg.ToolCalls() {
		args, err := json.Marshal(call.Input)
		if err != nil || call.Input == nil {
			args = []byte("{}")
		}
		tc := openaiToolCall{ID: call.ID, Type: "function"}
		tc.Function.Name = call.Name
		tc.Function.Arguments = string(args)
		wm.ToolCalls = append(wm.ToolCalls, tc)
	}

	return []openaiMessage{wm}
}

func fromWire(wire *openaiResponse) *llm.ChatResponse {
	choice := wire.Choices[0]
	msg := llm.Message{Role: llm.RoleAssistant}

	if choice.Message.Content != nil && *choice.Message.Content != "" {
		msg.Content = append(msg.Content, llm.ContentBlock{Type: llm.BlockText, Text: *choice.Message.Content})
	}

	for _, tc := range choice.Message.ToolCalls {
		var input map[string]any
		if tc.Function.Arguments != "" {
			// Malformed arguments reach the tool as an empty input.
			_ = json.Unmarshal([]byte(tc.Function.Arguments), &input)
		}
		msg.Content = append(msg.Content, llm.ContentBlock{
			Type:      llm.BlockToolUse,
			ToolUseID: tc.ID,
			ToolName:  tc.Function.Name,
			ToolInput: input,
		})
	}

	resp := &llm.ChatResponse{
		Model:      wire.Model,
		Message:    msg,
		StopReason: choice.FinishReason,
	}
	if wire.Created > 0 {
		resp.CreatedAt = time.Unix(wire.Created, 0).UTC()
	}
	if wire.Usage != nil {
		resp.Usage = &llm.Usage{
			PromptTokens:     wire.Usage.PromptTokens,
			CompletionTokens: wire.Usage.CompletionTokens,
			TotalTokens:      wire.Usage.TotalTokens,
		}
	}

	return resp
}

var _ llm.Client = (*Client)(nil)
