package agent

import (
	"github.com/papercomputeco/engram/pkg/llm"
)

// sanitize drops tool traffic that lost its counterpart, which happens when
// compaction truncates the history between an assistant's tool calls and
// their results. Providers reject tool results without a preceding call
// and tool calls without results.
func sanitize(msgs []llm.Message) []llm.Message {
	called := make(map[string]bool)
	answered := make(map[string]bool)
	for _, m := range msgs {
		for _, b := range m.Content {
			switch b.Type {
			case llm.BlockToolUse:
				called[b.ToolUseID] = true
			case llm.BlockToolResult:
				if called[b.ToolResultID] {
					answered[b.ToolResultID] = true
				}
			}
		}
	}

	out := make([]llm.Message, 0, len(msgs))
	for _, m := range msgs {
		blocks := make([]llm.ContentBlock, 0, len(m.Content))
		for _, b := range m.Content {
			switch b.Type {
			case llm.BlockToolUse:
				if !answered[b.ToolUseID] {
					continue
				}
			case llm.BlockToolResult:
				if !answered[b.ToolResultID] {
					continue
				}
			}
			blocks = append(blocks, b)
		}
		if len(blocks) == 0 {
			continue
		}
		m.Content = blocks
		out = append(out, m)
	}
	return out
}
