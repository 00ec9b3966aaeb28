package tools

import (
	"context"
	"encoding/json"

	"github.com/papercomputeco/engram/pkg/memory"
)

const (
	RecallMemoryToolName = "recall_memory"
	RememberFactToolName = "remember_fact"

	defaultRecallTopK = 5
	maxRecallTopK     = 50
)

// Composer is the memory read path used by recall_memory.
type Composer interface {
	Compose(ctx context.Context, message string, hint memory.Domain, topK int) (*memory.Composition, error)
}

// FactWriter is the memory write path used by remember_fact.
type FactWriter interface {
	WriteFact(ctx context.Context, in memory.FactInput) (int64, error)
}

var recallMemoryParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "query": {"type": "string", "description": "What to look up in long-term memory"},
    "domain": {"type": "string", "description": "Optional topic to narrow facts to, e.g. todo, writing, learning, travel"},
    "top_k": {"type": "integer", "description": "Maximum results per list", "minimum": 1, "maximum": 50}
  },
  "required": ["query"]
}`)

var rememberFactParameters = json.RawMessage(`{
  "type": "object",
  "properties": {
    "text": {"type": "string", "description": "A short, objective statement to remember"},
    "type": {"type": "string", "enum": ["action", "tool_call", "result", "user_preference"]},
    "domain": {"type": "string", "description": "Optional topic tag"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1}
  },
  "required": ["text"]
}`)

// RecalledFact is a fact as shown to the model.
type RecalledFact struct {
	ID         int64   `json:"fact_id"`
	Text       string  `json:"fact_text"`
	Type       string  `json:"fact_type,omitempty"`
	Domain     string  `json:"domain,omitempty"`
	Similarity float64 `json:"similarity"`
}

// RecalledTurn is a past conversation turn as shown to the model.
type RecalledTurn struct {
	SessionID  string  `json:"session_id"`
	Turn       int     `json:"turn"`
	Speaker    string  `json:"speaker"`
	Content    string  `json:"content"`
	Similarity float64 `json:"similarity"`
}

// Recall is the data returned by recall_memory.
type Recall struct {
	Domain string         `json:"domain,omitempty"`
	Facts  []RecalledFact `json:"facts"`
	Turns  []RecalledTurn `json:"turns"`
}

// RegisterMemoryTools adds recall_memory and remember_fact. Either side
// may be nil to leave its tool out.
func RegisterMemoryTools(r *Registry, composer Composer, writer FactWriter) error {
	if composer != nil {
		err := r.Register(Tool{
			Name:        RecallMemoryToolName,
			Description: "Search long-term memory for facts and past conversation turns relevant to a query.",
			Parameters:  recallMemoryParameters,
			Handler:     recallMemory(composer),
		})
		if err != nil {
			return err
		}
	}

	if writer != nil {
		return r.Register(Tool{
			Name:        RememberFactToolName,
			Description: "Store a fact in long-term memory so it can be recalled in later conversations.",
			Parameters:  rememberFactParameters,
			Handler:     rememberFact(writer),
		})
	}
	return nil
}

func recallMemory(composer Composer) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		query, err := StringArg(args, "query")
		if err != nil {
			return nil, err
		}
		domain, _, err := OptionalStringArg(args, "domain")
		if err != nil {
			return nil, err
		}
		topK, err := IntArg(args, "top_k", defaultRecallTopK)
		if err != nil {
			return nil, err
		}
		topK = min(max(topK, 1), maxRecallTopK)

		comp, err := composer.Compose(ctx, query, memory.ParseDomain(domain), topK)
		if err != nil {
			return nil, err
		}

		out := Recall{
			Domain: comp.Domain.String(),
			Facts:  make([]RecalledFact, 0, len(comp.Facts)),
			Turns:  make([]RecalledTurn, 0, len(comp.Sources)),
		}
		for _, f := range comp.Facts {
			out.Facts = append(out.Facts, RecalledFact{
				ID:         f.ID,
				Text:       f.Text,
				Type:       f.Type,
				Domain:     f.Domain,
				Similarity: f.Similarity,
			})
		}
		for _, s := range comp.Sources {
			out.Turns = append(out.Turns, RecalledTurn{
				SessionID:  s.SessionID,
				Turn:       s.Turn,
				Speaker:    s.Speaker,
				Content:    s.Content,
				Similarity: s.Similarity,
			})
		}
		return out, nil
	}
}

func rememberFact(writer FactWriter) Handler {
	return func(ctx context.Context, args map[string]any) (any, error) {
		text, err := StringArg(args, "text")
		if err != nil {
			return nil, err
		}
		factType, _, err := OptionalStringArg(args, "type")
		if err != nil {
			return nil, err
		}
		domain, _, err := OptionalStringArg(args, "domain")
		if err != nil {
			return nil, err
		}
		confidence, err := FloatArg(args, "confidence", 0)
		if err != nil {
			return nil, err
		}

		id, err := writer.WriteFact(ctx, memory.FactInput{
			Text:       text,
			SourceIDs:  []int64{},
			Type:       factType,
			Domain:     domain,
			Confidence: confidence,
		})
		if err != nil {
			return nil, err
		}
		return map[string]any{"fact_id": id}, nil
	}
}
