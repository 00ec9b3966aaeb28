// Package tokenizer counts tokens for prompt budgeting. Counts come from
// tiktoken when its encoding can be loaded and from a chars/4 estimate
// otherwise, so budgeting never fails outright.
package tokenizer

import (
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens in text.
type Counter interface {
	Count(text string) int
}

// modelEncodings maps model name prefixes to tiktoken encodings.
var modelEncodings = []struct {
	prefix   string
	encoding string
}{
	{"gpt-4o", "o200k_base"},
	{"o1", "o200k_base"},
	{"o3", "o200k_base"},
	{"gpt-4", "cl100k_base"},
	{"gpt-3.5", "cl100k_base"},
	{"text-embedding-3", "cl100k_base"},
}

const defaultEncoding = "cl100k_base"

// Tiktoken lazily loads a tiktoken encoding. Loading may download BPE data
// on first use; if that fails every count falls back to Estimate.
type Tiktoken struct {
	encoding string
	once     sync.Once
	enc      *tiktoken.Tiktoken
	initErr  error
}

// ForModel returns a Tiktoken counter using the encoding for model.
// Unknown models (including non-OpenAI ones) use cl100k_base.
func ForModel(model string) *Tiktoken {
	encoding := defaultEncoding
	lower := strings.ToLower(model)
	for _, m := range modelEncodings {
		if strings.HasPrefix(lower, m.prefix) {
			encoding = m.encoding
			break
		}
	}
	return &Tiktoken{encoding: encoding}
}

// Encoding returns the tiktoken encoding name in use.
func (t *Tiktoken) Encoding() string {
	return t.encoding
}

// Err reports why the encoding could not be loaded, if it could not.
func (t *Tiktoken) Err() error {
	t.load()
	return t.initErr
}

func (t *Tiktoken) load() {
	t.once.Do(func() {
		t.enc, t.initErr = tiktoken.GetEncoding(t.encoding)
	})
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	if text == "" {
		return 0
	}
	t.load()
	if t.initErr != nil {
		return Estimate(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// Estimate approximates a token count as one token per four characters,
// rounded up.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + 3) / 4
}

// EstimateCounter is a Counter backed by Estimate.
type EstimateCounter struct{}

func (EstimateCounter) Count(text string) int {
	return Estimate(text)
}

var (
	_ Counter = (*Tiktoken)(nil)
	_ Counter = EstimateCounter{}
)
