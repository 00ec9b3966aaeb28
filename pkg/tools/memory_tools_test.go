package tools_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	"github.com/papercomputeco/engram/pkg/tools"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

var _ = Describe("memory tools", func() {
	var (
		ctx   context.Context
		store *memory.Store
		r     *tools.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = memory.NewStore(memory.Config{
			Driver:     inmemory.NewDriver(),
			Embedder:   testutils.NewHashEmbedder(256),
			Dimensions: 256,
		})
		Expect(err).NotTo(HaveOccurred())

		r = tools.NewRegistry(nil)
		Expect(tools.RegisterMemoryTools(r, memory.NewComposer(store, nil), store)).To(Succeed())
	})

	It("registers both tools for every domain", func() {
		Expect(r.Names()).To(Equal([]string{tools.RecallMemoryToolName, tools.RememberFactToolName}))
		Expect(r.Definitions(memory.DomainTravel)).To(HaveLen(2))
	})

	It("remembers a fact and recalls it", func() {
		out := r.Execute(ctx, llm.ToolCall{ID: "1", Name: tools.RememberFactToolName, Input: map[string]any{
			"text":   "user requested a flight to Tokyo",
			"type":   "action",
			"domain": "travel",
		}})
		Expect(out.IsError).To(BeFalse())

		out = r.Execute(ctx, llm.ToolCall{ID: "2", Name: tools.RecallMemoryToolName, Input: map[string]any{
			"query": "flight to Tokyo",
			"top_k": float64(3),
		}})
		Expect(out.IsError).To(BeFalse())

		var env struct {
			Success bool         `json:"success"`
			Data    tools.Recall `json:"data"`
		}
		Expect(json.Unmarshal([]byte(out.Output), &env)).To(Succeed())
		Expect(env.Success).To(BeTrue())
		Expect(env.Data.Domain).To(Equal("travel"))
		Expect(env.Data.Facts).To(HaveLen(1))
		Expect(env.Data.Facts[0].Text).To(Equal("user requested a flight to Tokyo"))

		facts, err := store.ListFacts(ctx)
		Expect(err).NotTo(HaveOccurred())
		Expect(facts[0].SourceIDs).To(BeEmpty())
		Expect(facts[0].Confidence).To(Equal(1.0))
	})

	It("requires a query", func() {
		out := r.Execute(ctx, llm.ToolCall{ID: "1", Name: tools.RecallMemoryToolName})
		Expect(out.IsError).To(BeTrue())
	})
})
