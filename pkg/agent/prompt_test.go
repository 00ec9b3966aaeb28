package agent_test

import (
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage"
)

var _ = Describe("SystemPrompt", func() {
	facts := func(texts ...string) []storage.ScoredFact {
		out := make([]storage.ScoredFact, len(texts))
		for i, t := range texts {
			out[i] = storage.ScoredFact{Fact: storage.Fact{Text: t}}
		}
		return out
	}

	It("has no memory section without facts", func() {
		p := agent.SystemPrompt(memory.DomainNone, nil, 5)
		Expect(p).NotTo(ContainSubstring("Relevant memories"))
	})

	It("adds the domain section", func() {
		Expect(agent.SystemPrompt(memory.DomainTodo, nil, 5)).To(ContainSubstring("Task management"))
		Expect(agent.SystemPrompt(memory.Domain("cooking"), nil, 5)).NotTo(ContainSubstring("Task management"))
	})

	It("caps the injected facts", func() {
		p := agent.SystemPrompt(memory.DomainNone, facts("a", "b", "c", "d", "e", "f", "g"), 5)
		Expect(strings.Count(p, "\n- ")).To(BeNumerically(">=", 5))
		Expect(p).To(ContainSubstring("\n- e"))
		Expect(p).NotTo(ContainSubstring("\n- f"))
	})
})
