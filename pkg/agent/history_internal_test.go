package agent

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/llm"
)

var _ = Describe("sanitize", func() {
	call := func(id string) llm.Message {
		return llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.BlockText, Text: "checking"},
			{Type: llm.BlockToolUse, ToolUseID: id, ToolName: "list_tasks"},
		}}
	}
	result := func(id string) llm.Message {
		return llm.NewToolResultMessage(llm.ToolResult{ID: id, Output: "{}"})
	}

	It("keeps matched tool traffic", func() {
		msgs := []llm.Message{llm.NewTextMessage(llm.RoleUser, "hi"), call("a"), result("a")}
		Expect(sanitize(msgs)).To(Equal(msgs))
	})

	It("drops results whose call was truncated away", func() {
		msgs := []llm.Message{result("gone"), llm.NewTextMessage(llm.RoleUser, "hi")}
		out := sanitize(msgs)
		Expect(out).To(HaveLen(1))
		Expect(out[0].Role).To(Equal(llm.RoleUser))
	})

	It("strips calls that never got results but keeps their text", func() {
		out := sanitize([]llm.Message{call("pending")})
		Expect(out).To(HaveLen(1))
		Expect(out[0].Content).To(HaveLen(1))
		Expect(out[0].GetText()).To(Equal("checking"))
	})
})
