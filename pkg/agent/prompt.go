package agent

import (
	"strings"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage"
)

const basePrompt = `You are a helpful assistant that helps the user get things done through conversation.

Your replies are shown in a plain terminal where markdown is not rendered:
- Do not use headings, bold, italics or code fences.
- Do not narrate what you are about to do or explain your steps.
- Call tools directly when they are needed and then state the result.
- Keep answers short and conversational.`

// domainPrompts adds skill guidance for the detected domain.
var domainPrompts = map[memory.Domain]string{
	memory.DomainTodo: `Task management:
- Create exactly the tasks the user asks for, never more.
- List tasks before creating one that may already exist.
- When a duplicate exists, ask whether to keep it instead of creating another.`,

	memory.DomainWriting: `Writing:
- Help the user capture ideas, organize outlines and track drafts.
- Keep the user's voice; suggest rather than rewrite.`,

	memory.DomainLearning: `Learning:
- Break learning goals into concrete, ordered steps.
- Suggest an order and priority and track progress over time.`,

	memory.DomainTravel: `Travel:
- Keep track of destinations, dates, bookings and the user's travel preferences.
- Confirm dates and places before suggesting bookings.`,
}

const memoryHeading = "Relevant memories from past conversations:"

// SystemPrompt builds the system message: base instructions, the domain's
// section when one is known, and at most maxFacts memory lines.
func SystemPrompt(domain memory.Domain, facts []storage.ScoredFact, maxFacts int) string {
	parts := []string{basePrompt}

	if section, ok := domainPrompts[domain]; ok {
		parts = append(parts, section)
	}

	if n := min(len(facts), max(maxFacts, 0)); n > 0 {
		var sb strings.Builder
		sb.WriteString(memoryHeading)
		for _, f := range facts[:n] {
			sb.WriteString("\n- ")
			sb.WriteString(f.Text)
		}
		parts = append(parts, sb.String())
	}

	return strings.Join(parts, "\n\n")
}
