package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/tools"
)

const (
	defaultTopK = 5
	maxTopK     = 50
)

var (
	memoryRetrieveToolName    = "memory_retrieve"
	memoryRetrieveDescription = "Retrieve facts and past conversation turns from engram's long-term memory that are semantically close to a query. Facts are narrowed to the query's topic (todo, writing, learning, travel) when one is given or detected; turns are never filtered."

	memoryWriteFactToolName    = "memory_write_fact"
	memoryWriteFactDescription = "Store a short, objective fact in engram's long-term memory, optionally tagged with a type, a topic domain and the IDs of the conversation turns it came from."
)

// MemoryRetrieveInput represents the input arguments for memory_retrieve.
type MemoryRetrieveInput struct {
	Query  string `json:"query" jsonschema:"the text to search long-term memory for"`
	Domain string `json:"domain,omitempty" jsonschema:"optional topic to narrow facts to, e.g. todo or travel"`
	TopK   int    `json:"top_k,omitempty" jsonschema:"maximum number of results per list (default 5)"`
}

// MemoryRetrieveOutput is the structured result of memory_retrieve.
type MemoryRetrieveOutput struct {
	Domain string               `json:"domain,omitempty"`
	Facts  []tools.RecalledFact `json:"facts"`
	Turns  []tools.RecalledTurn `json:"turns"`
}

// MemoryWriteFactInput represents the input arguments for memory_write_fact.
type MemoryWriteFactInput struct {
	Text       string  `json:"text" jsonschema:"the fact, phrased as subject verb object"`
	Type       string  `json:"type,omitempty" jsonschema:"one of action, tool_call, result, user_preference"`
	Domain     string  `json:"domain,omitempty" jsonschema:"optional topic tag"`
	SourceIDs  []int64 `json:"source_ids,omitempty" jsonschema:"IDs of the conversation turns the fact was derived from"`
	Confidence float64 `json:"confidence,omitempty" jsonschema:"confidence between 0 and 1 (default 1)"`
}

// MemoryWriteFactOutput is the structured result of memory_write_fact.
type MemoryWriteFactOutput struct {
	FactID int64 `json:"fact_id"`
}

func toolError(format string, args ...any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf(format, args...)},
		},
	}
}

func toolJSON(v any) (*mcp.CallToolResult, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(b)},
		},
	}, nil
}

// handleMemoryRetrieve processes a memory_retrieve request.
func (s *Server) handleMemoryRetrieve(ctx context.Context, _ *mcp.CallToolRequest, input MemoryRetrieveInput) (*mcp.CallToolResult, MemoryRetrieveOutput, error) {
	if strings.TrimSpace(input.Query) == "" {
		return toolError("query is required"), MemoryRetrieveOutput{}, nil
	}

	topK := input.TopK
	if topK <= 0 {
		topK = s.config.DefaultTopK
	}
	topK = min(topK, maxTopK)

	comp, err := s.config.Composer.Compose(ctx, input.Query, memory.ParseDomain(input.Domain), topK)
	if err != nil {
		s.config.Logger.Error("mcp memory retrieve failed", "error", err)
		return toolError("Memory retrieval failed: %v", err), MemoryRetrieveOutput{}, nil
	}

	output := MemoryRetrieveOutput{
		Domain: comp.Domain.String(),
		Facts:  make([]tools.RecalledFact, 0, len(comp.Facts)),
		Turns:  make([]tools.RecalledTurn, 0, len(comp.Sources)),
	}
	for _, f := range comp.Facts {
		output.Facts = append(output.Facts, tools.RecalledFact{
			ID:         f.ID,
			Text:       f.Text,
			Type:       f.Type,
			Domain:     f.Domain,
			Similarity: f.Similarity,
		})
	}
	for _, src := range comp.Sources {
		output.Turns = append(output.Turns, tools.RecalledTurn{
			SessionID:  src.SessionID,
			Turn:       src.Turn,
			Speaker:    src.Speaker,
			Content:    src.Content,
			Similarity: src.Similarity,
		})
	}

	result, err := toolJSON(output)
	if err != nil {
		return toolError("Failed to serialize results: %v", err), MemoryRetrieveOutput{}, nil
	}
	return result, output, nil
}

// handleMemoryWriteFact processes a memory_write_fact request.
func (s *Server) handleMemoryWriteFact(ctx context.Context, _ *mcp.CallToolRequest, input MemoryWriteFactInput) (*mcp.CallToolResult, MemoryWriteFactOutput, error) {
	if strings.TrimSpace(input.Text) == "" {
		return toolError("text is required"), MemoryWriteFactOutput{}, nil
	}

	id, err := s.config.Writer.WriteFact(ctx, memory.FactInput{
		Text:       input.Text,
		SourceIDs:  input.SourceIDs,
		Type:       strings.ToLower(strings.TrimSpace(input.Type)),
		Domain:     input.Domain,
		Confidence: input.Confidence,
	})
	if err != nil {
		s.config.Logger.Error("mcp memory write failed", "error", err)
		return toolError("Memory write failed: %v", err), MemoryWriteFactOutput{}, nil
	}

	output := MemoryWriteFactOutput{FactID: id}
	result, err := toolJSON(output)
	if err != nil {
		return toolError("Failed to serialize result: %v", err), MemoryWriteFactOutput{}, nil
	}
	return result, output, nil
}
