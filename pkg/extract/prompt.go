package extract

import (
	"encoding/json"
	"strings"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/llm/tokenizer"
)

const instructions = `Extract objective facts from the conversation above.

Rules:
1. Only record things that actually happened. Do not infer.
2. Phrase every fact as subject-verb-object.
3. Record tool calls with their concrete arguments.
4. Record the concrete flow of the interaction.

Fact types:
- action: something the user or assistant did
- tool_call: a tool invocation and its arguments
- result: the outcome of an operation
- user_preference: a preference the user stated explicitly

Each fact may carry a "domain" tag (todo, writing, learning, travel, or another short topic word)
and a "confidence" between 0 and 1.

Respond with JSON only, in exactly this shape:
{"facts": [{"text": "user asked to create a task", "type": "action", "domain": "todo"}]}`

// transcriptLine renders one message as "role: text", with tool payloads
// appended as JSON.
func transcriptLine(m llm.Message) string {
	var sb strings.Builder
	sb.WriteString(m.Role)
	sb.WriteString(": ")
	sb.WriteString(m.GetText())

	if calls := m.ToolCalls(); len(calls) > 0 {
		sb.WriteString("\n[Tool Calls: ")
		sb.WriteString(compactJSON(calls))
		sb.WriteString("]")
	}
	if m.Role != llm.RoleTool {
		if results := m.ToolResults(); len(results) > 0 {
			sb.WriteString("\n[Tool Results: ")
			sb.WriteString(compactJSON(results))
			sb.WriteString("]")
		}
	}
	return sb.String()
}

func compactJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// Transcript renders messages one per block, dropping the oldest lines
// until the whole transcript fits in budget tokens. The newest message is
// always kept. A budget of zero or less disables the cap. It also returns
// how many messages were dropped.
func Transcript(messages []llm.Message, budget int, counter tokenizer.Counter) (string, int) {
	lines := make([]string, len(messages))
	for i, m := range messages {
		lines[i] = transcriptLine(m)
	}

	if budget > 0 && counter != nil {
		total := 0
		counts := make([]int, len(lines))
		for i, l := range lines {
			counts[i] = counter.Count(l)
			total += counts[i]
		}

		dropped := 0
		for total > budget && dropped < len(lines)-1 {
			total -= counts[dropped]
			dropped++
		}
		return strings.Join(lines[dropped:], "\n\n"), dropped
	}

	return strings.Join(lines, "\n\n"), 0
}

// Prompt builds the single user message sent to the model.
func Prompt(transcript string) string {
	return "Conversation:\n" + transcript + "\n\n" + instructions
}
