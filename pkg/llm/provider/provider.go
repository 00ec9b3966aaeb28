// Package provider builds llm.Client implementations by provider name.
package provider

import (
	"fmt"
	"strings"
	"time"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/llm/provider/ollama"
	"github.com/papercomputeco/engram/pkg/llm/provider/openai"
)

const (
	OpenAI = "openai"
	Ollama = "ollama"
)

// Opts selects and configures a completion provider.
type Opts struct {
	// Provider is "openai" (any OpenAI-compatible API) or "ollama".
	Provider string
	BaseURL  string
	APIKey   string
	Model    string
	Timeout  time.Duration
}

// New returns an llm.Client for the configured provider.
func New(o Opts) (llm.Client, error) {
	switch strings.ToLower(o.Provider) {
	case OpenAI, "":
		return openai.New(openai.Config{
			BaseURL: o.BaseURL,
			APIKey:  o.APIKey,
			Model:   o.Model,
			Timeout: o.Timeout,
		}), nil

	case Ollama:
		return ollama.New(ollama.Config{
			BaseURL: o.BaseURL,
			Model:   o.Model,
			Timeout: o.Timeout,
		}), nil

	default:
		return nil, fmt.Errorf("unsupported completion provider: %s (available: %s, %s)", o.Provider, OpenAI, Ollama)
	}
}

// Supported returns the provider names New accepts.
func Supported() []string {
	return []string{OpenAI, Ollama}
}
