package llm_test

import (
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/llm"
)

var _ = Describe("Message", func() {
	It("concatenates text blocks", func() {
		m := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.BlockText, Text: "a"},
			{Type: llm.BlockToolUse, ToolName: "t"},
			{Type: llm.BlockText, Text: "b"},
		}}
		Expect(m.GetText()).To(Equal("ab"))
	})

	It("returns tool output as the text of tool messages", func() {
		m := llm.NewToolResultMessage(llm.ToolResult{ID: "1", Output: "done"})
		Expect(m.Role).To(Equal(llm.RoleTool))
		Expect(m.GetText()).To(Equal("done"))
	})

	It("extracts tool calls and results", func() {
		m := llm.Message{Role: llm.RoleAssistant, Content: []llm.ContentBlock{
			{Type: llm.BlockToolUse, ToolUseID: "c1", ToolName: "add_task", ToolInput: map[string]any{"title": "x"}},
			{Type: llm.BlockToolResult, ToolResultID: "c1", ToolOutput: "ok"},
		}}

		Expect(m.ToolCalls()).To(Equal([]llm.ToolCall{{ID: "c1", Name: "add_task", Input: map[string]any{"title": "x"}}}))
		Expect(m.ToolResults()).To(Equal([]llm.ToolResult{{ID: "c1", Output: "ok"}}))

		var calls []map[string]any
		Expect(json.Unmarshal(m.ToolCallsJSON(), &calls)).To(Succeed())
		Expect(calls[0]).To(HaveKeyWithValue("name", "add_task"))
		Expect(m.ToolResultsJSON()).NotTo(BeNil())
	})

	It("serializes absent tool data as nil", func() {
		m := llm.NewTextMessage(llm.RoleUser, "hi")
		Expect(m.ToolCallsJSON()).To(BeNil())
		Expect(m.ToolResultsJSON()).To(BeNil())
	})
})
