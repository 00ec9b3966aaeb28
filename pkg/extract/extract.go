// Package extract turns a conversation transcript into structured fact
// candidates with a single completion call.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/llm/tokenizer"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/metrics"
)

// Fact types the extractor asks for. Other types from the model are kept
// as given, lower-cased.
const (
	TypeAction         = "action"
	TypeToolCall       = "tool_call"
	TypeResult         = "result"
	TypeUserPreference = "user_preference"
)

const (
	// DefaultTemperature keeps extraction output stable.
	DefaultTemperature = 0.3

	// DefaultMaxTranscriptTokens caps the transcript sent to the model.
	DefaultMaxTranscriptTokens = 6000
)

// Candidate is one fact proposed by the model. Confidence is nil when the
// model gave none.
type Candidate struct {
	Text       string   `json:"text"`
	Type       string   `json:"type,omitempty"`
	Domain     string   `json:"domain,omitempty"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Config configures an Extractor.
type Config struct {
	Client llm.Client

	// Model overrides the client's default model. Optional.
	Model string

	// Temperature defaults to DefaultTemperature when zero.
	Temperature float64

	// MaxTranscriptTokens defaults to DefaultMaxTranscriptTokens when zero.
	// Negative disables the cap.
	MaxTranscriptTokens int

	// Counter defaults to a tiktoken counter for Model.
	Counter tokenizer.Counter

	Logger *slog.Logger
}

// Extractor drives fact extraction.
type Extractor struct {
	client      llm.Client
	model       string
	temperature float64
	budget      int
	counter     tokenizer.Counter
	logger      *slog.Logger
}

// New creates an Extractor.
func New(c Config) (*Extractor, error) {
	if c.Client == nil {
		return nil, errors.New("extract: completion client is required")
	}

	e := &Extractor{
		client:      c.Client,
		model:       c.Model,
		temperature: c.Temperature,
		budget:      c.MaxTranscriptTokens,
		counter:     c.Counter,
		logger:      logger.OrNop(c.Logger),
	}
	if e.temperature == 0 {
		e.temperature = DefaultTemperature
	}
	if e.budget == 0 {
		e.budget = DefaultMaxTranscriptTokens
	}
	if e.counter == nil {
		e.counter = tokenizer.ForModel(c.Model)
	}
	return e, nil
}

type reply struct {
	Facts []Candidate `json:"facts"`
}

// Extract asks the model for facts about messages. An empty transcript
// returns no facts without calling the model. A reply that cannot be
// parsed is logged and yields no facts with a nil error; only completion
// failures are returned as errors.
func (e *Extractor) Extract(ctx context.Context, messages []llm.Message) ([]Candidate, error) {
	if len(messages) == 0 {
		return []Candidate{}, nil
	}

	transcript, dropped := Transcript(messages, e.budget, e.counter)
	if dropped > 0 {
		e.logger.Info("transcript over token budget, dropped oldest turns",
			"dropped", dropped,
			"kept", len(messages)-dropped,
			"budget", e.budget,
		)
	}

	temp := e.temperature
	resp, err := e.client.Complete(ctx, &llm.ChatRequest{
		Model:       e.model,
		Messages:    []llm.Message{llm.NewTextMessage(llm.RoleUser, Prompt(transcript))},
		Temperature: &temp,
		JSONMode:    true,
	})
	if err != nil {
		if errors.Is(err, llm.ErrCompletion) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", llm.ErrCompletion, err)
	}

	raw := resp.Message.GetText()
	candidates, err := Parse(raw)
	if err != nil {
		metrics.ObserveParseFailure()
		e.logger.Warn("could not parse extraction reply",
			"error", err,
			"raw", raw,
		)
		return []Candidate{}, nil
	}

	e.logger.Info("extracted facts",
		"messages", len(messages),
		"facts", len(candidates),
	)
	return candidates, nil
}

// Parse reads candidates from a model reply. It accepts {"facts": [...]}
// or a bare array of facts, wrapped in anything Payload tolerates. Values
// of either shape win over other JSON that appears earlier in the reply.
func Parse(text string) ([]Candidate, error) {
	raw, err := PayloadMatching(text, factsShaped)
	if errors.Is(err, ErrNoPayload) {
		raw, err = Payload(text)
	}
	if err != nil {
		return nil, err
	}

	var r reply
	if raw[0] == '[' {
		err = Decode(string(raw), &r.Facts)
	} else {
		err = Decode(string(raw), &r)
	}
	if err != nil {
		return nil, err
	}

	out := make([]Candidate, 0, len(r.Facts))
	for _, c := range r.Facts {
		c.Text = strings.TrimSpace(c.Text)
		if c.Text == "" {
			continue
		}
		c.Type = strings.ToLower(strings.TrimSpace(c.Type))
		c.Domain = strings.ToLower(strings.TrimSpace(c.Domain))
		if c.Confidence != nil {
			v := clamp(*c.Confidence)
			c.Confidence = &v
		}
		out = append(out, c)
	}
	return out, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

// factsShaped reports whether raw is an object carrying a "facts" key or an
// array whose elements are all objects.
func factsShaped(raw []byte) bool {
	switch raw[0] {
	case '{':
		var obj map[string]json.RawMessage
		if json.Unmarshal(raw, &obj) != nil {
			return false
		}
		_, ok := obj["facts"]
		return ok
	case '[':
		var items []json.RawMessage
		if json.Unmarshal(raw, &items) != nil {
			return false
		}
		for _, item := range items {
			if t := bytes.TrimSpace(item); len(t) == 0 || t[0] != '{' {
				return false
			}
		}
		return true
	}
	return false
}
