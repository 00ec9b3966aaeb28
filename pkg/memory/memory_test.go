package memory_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

const dims = 256

var _ = Describe("Store", func() {
	var (
		ctx      context.Context
		driver   *inmemory.Driver
		embedder *testutils.HashEmbedder
		store    *memory.Store
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = inmemory.NewDriver(inmemory.WithDimensions(dims))
		embedder = testutils.NewHashEmbedder(dims)

		var err error
		store, err = memory.NewStore(memory.Config{
			Driver:     driver,
			Embedder:   embedder,
			Dimensions: dims,
		})
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewStore", func() {
		It("requires a driver and an embedder", func() {
			_, err := memory.NewStore(memory.Config{Embedder: embedder})
			Expect(err).To(MatchError(memory.ErrNotConfigured))

			_, err = memory.NewStore(memory.Config{Driver: driver})
			Expect(err).To(MatchError(memory.ErrNotConfigured))
		})
	})

	Describe("WriteTurn", func() {
		It("stores the turn with its tool payloads", func() {
			id, err := store.WriteTurn(ctx, memory.TurnInput{
				SessionID: "s1",
				Turn:      3,
				Speaker:   "assistant",
				Content:   "added the task",
				ToolCalls: json.RawMessage(`[{"id":"c1","name":"add_task"}]`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(id).To(BeNumerically(">", 0))

			sources, err := store.ListSources(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(HaveLen(1))
			Expect(sources[0].ID).To(Equal(id))
			Expect(sources[0].Turn).To(Equal(3))
			Expect(string(sources[0].ToolCalls)).To(MatchJSON(`[{"id":"c1","name":"add_task"}]`))
		})

		It("embeds tool-only turns from their transcript line", func() {
			strict := testutils.NewMockEmbedder()
			strict.RejectEmpty = true
			d := inmemory.NewDriver()
			s, err := memory.NewStore(memory.Config{Driver: d, Embedder: strict})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.WriteTurn(ctx, memory.TurnInput{
				SessionID: "s1",
				Turn:      3,
				Speaker:   "assistant",
				ToolCalls: json.RawMessage(`[{"id":"c1","name":"add_task"}]`),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(strict.Calls).To(HaveLen(1))
			Expect(strict.Calls[0]).To(HavePrefix("assistant:"))
			Expect(strict.Calls[0]).To(ContainSubstring(`"add_task"`))

			_, err = s.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Turn: 4, Speaker: "assistant"})
			Expect(err).NotTo(HaveOccurred())

			sources, err := d.ListSources(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(HaveLen(2))
			Expect(sources[0].Content).To(BeEmpty())
		})

		It("propagates embedding failures without writing", func() {
			failing := testutils.NewMockEmbedder()
			failing.FailOn = "boom"
			s, err := memory.NewStore(memory.Config{Driver: driver, Embedder: failing})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Content: "boom"})
			Expect(err).To(MatchError(memory.ErrEmbedding))

			sources, err := driver.ListSources(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(BeEmpty())
		})

		It("propagates storage failures", func() {
			failing := testutils.NewFailingDriver(driver)
			failing.FailSourceAfter = 0
			s, err := memory.NewStore(memory.Config{Driver: failing, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Content: "hi"})
			Expect(err).To(MatchError(storage.ErrStorage))
			Expect(err).To(MatchError(testutils.ErrInjected))
		})

		It("rejects embeddings of the wrong size", func() {
			short := testutils.NewMockEmbedder()
			s, err := memory.NewStore(memory.Config{Driver: driver, Embedder: short, Dimensions: dims})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Content: "hi"})
			Expect(err).To(MatchError(memory.ErrDimensionMismatch))
		})
	})

	Describe("WriteFact", func() {
		It("defaults confidence to 1.0 and stores empty source lists", func() {
			_, err := store.WriteFact(ctx, memory.FactInput{Text: "user likes coffee"})
			Expect(err).NotTo(HaveOccurred())

			facts, err := store.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Confidence).To(Equal(1.0))
			Expect(facts[0].SourceIDs).To(BeEmpty())
			Expect(facts[0].SourceIDs).NotTo(BeNil())
		})

		It("keeps dangling source ids verbatim", func() {
			_, err := store.WriteFact(ctx, memory.FactInput{
				Text:      "user requested a flight",
				SourceIDs: []int64{900, 901},
				Type:      "action",
				Domain:    "travel",
			})
			Expect(err).NotTo(HaveOccurred())

			facts, err := store.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts[0].SourceIDs).To(Equal([]int64{900, 901}))
			Expect(facts[0].Domain).To(Equal("travel"))
		})

		It("clamps confidence", func() {
			_, err := store.WriteFact(ctx, memory.FactInput{Text: "a", Confidence: 4})
			Expect(err).NotTo(HaveOccurred())

			facts, err := store.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts[0].Confidence).To(Equal(1.0))
		})
	})

	Describe("Retrieve", func() {
		It("returns a written turn first when queried with its own content", func() {
			for i, text := range []string{"user likes coffee", "book a flight to Tokyo", "the weather is nice"} {
				_, err := store.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Turn: i, Speaker: "user", Content: text})
				Expect(err).NotTo(HaveOccurred())
			}

			mem, err := store.Retrieve(ctx, "book a flight to Tokyo", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Sources).To(HaveLen(3))
			Expect(mem.Sources[0].Content).To(Equal("book a flight to Tokyo"))
			Expect(mem.Sources[0].Similarity).To(BeNumerically("~", 1.0, 1e-5))
			for _, other := range mem.Sources[1:] {
				Expect(mem.Sources[0].Similarity).To(BeNumerically(">=", other.Similarity))
			}
		})

		It("ranks the same way on repeated queries", func() {
			for _, text := range []string{"alpha beta", "beta gamma", "gamma delta"} {
				_, err := store.WriteFact(ctx, memory.FactInput{Text: text})
				Expect(err).NotTo(HaveOccurred())
			}

			first, err := store.Retrieve(ctx, "beta", 3)
			Expect(err).NotTo(HaveOccurred())
			second, err := store.Retrieve(ctx, "beta", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(second).To(Equal(first))
		})

		It("embeds the query exactly once", func() {
			counting := testutils.NewMockEmbedder()
			s, err := memory.NewStore(memory.Config{Driver: inmemory.NewDriver(), Embedder: counting})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Retrieve(ctx, "anything", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(counting.CallCount()).To(Equal(1))
		})

		It("skips the embedder when topK is zero", func() {
			counting := testutils.NewMockEmbedder()
			s, err := memory.NewStore(memory.Config{Driver: driver, Embedder: counting})
			Expect(err).NotTo(HaveOccurred())

			mem, err := s.Retrieve(ctx, "anything", 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Facts).To(BeEmpty())
			Expect(mem.Sources).To(BeEmpty())
			Expect(counting.CallCount()).To(BeZero())
		})

		It("returns empty lists on an empty store", func() {
			mem, err := store.Retrieve(ctx, "nothing here", 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Facts).NotTo(BeNil())
			Expect(mem.Sources).NotTo(BeNil())
			Expect(mem.Facts).To(BeEmpty())
		})

		It("fails when either query fails", func() {
			failing := testutils.NewFailingDriver(driver)
			failing.FailQuery = true
			s, err := memory.NewStore(memory.Config{Driver: failing, Embedder: embedder})
			Expect(err).NotTo(HaveOccurred())

			_, err = s.Retrieve(ctx, "anything", 5)
			Expect(err).To(MatchError(storage.ErrStorage))
		})

		It("ranks the travel fact above an unrelated one", func() {
			var ids []int64
			for i, t := range []struct{ speaker, content string }{
				{"user", "hi"},
				{"assistant", "hello"},
				{"user", "book a flight to Tokyo"},
			} {
				id, err := store.WriteTurn(ctx, memory.TurnInput{SessionID: "s1", Turn: i, Speaker: t.speaker, Content: t.content})
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, id)
			}

			_, err := store.WriteFact(ctx, memory.FactInput{Text: "user likes coffee", Type: "user_preference"})
			Expect(err).NotTo(HaveOccurred())
			tokyo, err := store.WriteFact(ctx, memory.FactInput{
				Text:      "user requested a flight to Tokyo",
				SourceIDs: ids,
				Type:      "action",
				Domain:    "travel",
			})
			Expect(err).NotTo(HaveOccurred())

			mem, err := store.Retrieve(ctx, "flight to Tokyo", 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(mem.Facts).To(HaveLen(2))
			Expect(mem.Facts[0].ID).To(Equal(tokyo))
			Expect(mem.Facts[0].SourceIDs).To(Equal(ids))
			Expect(mem.Facts[0].Similarity).To(BeNumerically(">", mem.Facts[1].Similarity))
		})
	})

	Describe("Clear", func() {
		It("empties the store", func() {
			_, err := store.WriteFact(ctx, memory.FactInput{Text: "x"})
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Clear(ctx)).To(Succeed())

			facts, err := store.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())
		})
	})
})

var _ = Describe("NormalizeConfidence", func() {
	DescribeTable("maps inputs into [0,1]",
		func(in, want float64) {
			Expect(memory.NormalizeConfidence(in)).To(Equal(want))
		},
		Entry("zero means unset", 0.0, 1.0),
		Entry("in range", 0.42, 0.42),
		Entry("above one", 1.5, 1.0),
		Entry("negative", -0.3, 0.0),
	)
})
