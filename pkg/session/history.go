package session

import (
	"slices"
	"sync"

	"github.com/papercomputeco/engram/pkg/llm"
)

// History is the ordered, in-memory message log of one session.
type History struct {
	mu       sync.RWMutex
	messages []llm.Message

	// persisted holds the source IDs of the leading messages already
	// written to memory by an unfinished compaction run.
	persisted []int64
}

// NewHistory creates a History holding msgs.
func NewHistory(msgs ...llm.Message) *History {
	return &History{messages: slices.Clone(msgs)}
}

// Len returns the number of messages.
func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.messages)
}

// Messages returns a copy of the log.
func (h *History) Messages() []llm.Message {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.messages)
}

// Append adds msgs to the end of the log.
func (h *History) Append(msgs ...llm.Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.messages = append(h.messages, msgs...)
}

// Persisted returns the source IDs recorded for the leading messages.
func (h *History) Persisted() []int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return slices.Clone(h.persisted)
}

// MarkPersisted records the source ID of the next unpersisted message.
func (h *History) MarkPersisted(id int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.persisted) < len(h.messages) {
		h.persisted = append(h.persisted, id)
	}
}

// Truncate keeps only the last window messages, in order, and returns how
// many were discarded. A window of zero or less empties the log. Persisted
// IDs are reset, so retained messages are written again by the next run.
func (h *History) Truncate(window int) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	window = max(window, 0)
	h.persisted = nil
	if len(h.messages) <= window {
		return 0
	}

	discarded := len(h.messages) - window
	kept := make([]llm.Message, window)
	copy(kept, h.messages[discarded:])
	h.messages = kept
	return discarded
}
