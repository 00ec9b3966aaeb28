package memory_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/memory"
)

var _ = Describe("Classify", func() {
	DescribeTable("detects the domain",
		func(text string, want memory.Domain) {
			got, ok := memory.Classify(text)
			Expect(ok).To(BeTrue())
			Expect(got).To(Equal(want))
		},
		Entry("english todo", "Add a TASK to buy milk", memory.DomainTodo),
		Entry("chinese todo", "帮我列出所有待办", memory.DomainTodo),
		Entry("writing", "help me draft a blog post", memory.DomainWriting),
		Entry("chinese writing", "帮我写一篇文章", memory.DomainWriting),
		Entry("learning", "recommend a Go tutorial", memory.DomainLearning),
		Entry("travel", "book a flight to Tokyo", memory.DomainTravel),
	)

	It("lets table order break ties", func() {
		got, ok := memory.Classify("create a task to write my essay")
		Expect(ok).To(BeTrue())
		Expect(got).To(Equal(memory.DomainTodo))
	})

	It("reports no domain for unmatched text", func() {
		got, ok := memory.Classify("what's the weather like")
		Expect(ok).To(BeFalse())
		Expect(got).To(Equal(memory.DomainNone))
	})

	It("lists the known domains in table order", func() {
		Expect(memory.KnownDomains()).To(Equal([]memory.Domain{
			memory.DomainTodo, memory.DomainWriting, memory.DomainLearning, memory.DomainTravel,
		}))
	})

	It("normalizes caller tags", func() {
		Expect(memory.ParseDomain("  Travel ")).To(Equal(memory.DomainTravel))
		Expect(memory.DomainTodo.Matches("TODO")).To(BeTrue())
		Expect(memory.DomainTodo.Matches("")).To(BeFalse())
	})
})
