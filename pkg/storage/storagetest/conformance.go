// Package storagetest holds the behavioral specs every storage.Driver must
// pass. Backend test suites call DescribeDriver with a constructor for a
// fresh, empty, 3-dimensional store.
package storagetest

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/vector"
)

// Dimensions is the embedding size drivers under test must be built with.
const Dimensions = 3

// Source builds a valid turn for sessionID with the given embedding.
func Source(sessionID string, turn int, content string, embedding ...float32) *storage.Source {
	return &storage.Source{
		SessionID: sessionID,
		Turn:      turn,
		Speaker:   "user",
		Content:   content,
		Embedding: embedding,
	}
}

// Fact builds a valid fact with the given embedding.
func Fact(text string, sourceIDs []int64, embedding ...float32) *storage.Fact {
	return &storage.Fact{
		Text:       text,
		SourceIDs:  sourceIDs,
		Type:       "action",
		Confidence: 0.9,
		Embedding:  embedding,
	}
}

// DescribeDriver registers the conformance specs. newDriver is invoked
// before each spec and the returned driver is closed after it.
func DescribeDriver(newDriver func() storage.Driver) {
	var (
		driver storage.Driver
		ctx    context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		driver = newDriver()
	})

	AfterEach(func() {
		if driver != nil {
			driver.Close()
		}
	})

	Describe("InsertSource", func() {
		It("assigns increasing ids", func() {
			first, err := driver.InsertSource(ctx, Source("s1", 0, "hello", 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			second, err := driver.InsertSource(ctx, Source("s1", 1, "world", 0, 1, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(first).To(BeNumerically(">", 0))
			Expect(second).To(BeNumerically(">", first))
		})

		It("round-trips tool calls and results", func() {
			src := Source("s1", 0, "", 1, 0, 0)
			src.Speaker = "assistant"
			src.ToolCalls = json.RawMessage(`[{"id":"c1","name":"add_task","input":{"title":"milk"}}]`)
			src.ToolResults = json.RawMessage(`[{"id":"c1","output":"ok"}]`)

			_, err := driver.InsertSource(ctx, src)
			Expect(err).NotTo(HaveOccurred())

			listed, err := driver.ListSources(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(listed).To(HaveLen(1))
			Expect(listed[0].Speaker).To(Equal("assistant"))
			Expect(string(listed[0].ToolCalls)).To(MatchJSON(src.ToolCalls))
			Expect(string(listed[0].ToolResults)).To(MatchJSON(src.ToolResults))
			Expect(listed[0].CreatedAt.IsZero()).To(BeFalse())
		})

		It("leaves absent tool data empty", func() {
			_, err := driver.InsertSource(ctx, Source("s1", 0, "plain", 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())

			listed, err := driver.ListSources(ctx, "s1")
			Expect(err).NotTo(HaveOccurred())
			Expect(listed[0].ToolCalls).To(BeEmpty())
			Expect(listed[0].ToolResults).To(BeEmpty())
		})

		It("rejects a wrong dimensionality", func() {
			_, err := driver.InsertSource(ctx, Source("s1", 0, "bad", 1, 0))
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})

		It("rejects a missing embedding", func() {
			_, err := driver.InsertSource(ctx, Source("s1", 0, "bad"))
			Expect(err).To(MatchError(storage.ErrInvalidRecord))
		})
	})

	Describe("InsertFact", func() {
		It("round-trips source ids in order", func() {
			_, err := driver.InsertFact(ctx, Fact("user likes tea", []int64{7, 3, 9}, 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())

			facts, err := driver.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(HaveLen(1))
			Expect(facts[0].Text).To(Equal("user likes tea"))
			Expect(facts[0].SourceIDs).To(Equal([]int64{7, 3, 9}))
			Expect(facts[0].Type).To(Equal("action"))
			Expect(facts[0].Confidence).To(BeNumerically("~", 0.9, 1e-6))
		})

		It("stores an empty source list", func() {
			_, err := driver.InsertFact(ctx, Fact("orphan", nil, 0, 1, 0))
			Expect(err).NotTo(HaveOccurred())

			facts, err := driver.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts[0].SourceIDs).To(BeEmpty())
		})

		It("rejects empty text", func() {
			_, err := driver.InsertFact(ctx, Fact("", nil, 1, 0, 0))
			Expect(err).To(MatchError(storage.ErrInvalidRecord))
		})
	})

	Describe("QuerySources", func() {
		BeforeEach(func() {
			for i, emb := range [][]float32{{1, 0, 0}, {0, 1, 0}, {0.9, 0.1, 0}} {
				_, err := driver.InsertSource(ctx, Source("s1", i, "turn", emb...))
				Expect(err).NotTo(HaveOccurred())
			}
		})

		It("orders by descending similarity", func() {
			results, err := driver.QuerySources(ctx, []float32{1, 0, 0}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect(results[0].Turn).To(Equal(0))
			Expect(results[0].Similarity).To(BeNumerically("~", 1.0, 1e-4))
			Expect(results[1].Turn).To(Equal(2))
			Expect(results[2].Turn).To(Equal(1))
			Expect(results[2].Similarity).To(BeNumerically("~", 0.0, 1e-4))
		})

		It("returns at most topK results", func() {
			results, err := driver.QuerySources(ctx, []float32{1, 0, 0}, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(2))
		})

		It("returns everything when topK exceeds the store", func() {
			results, err := driver.QuerySources(ctx, []float32{1, 0, 0}, 50)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
		})

		It("returns nothing for topK zero", func() {
			results, err := driver.QuerySources(ctx, []float32{1, 0, 0}, 0)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})

		It("rejects a query of the wrong dimensionality", func() {
			_, err := driver.QuerySources(ctx, []float32{1, 0}, 3)
			Expect(err).To(MatchError(vector.ErrDimensionMismatch))
		})
	})

	Describe("QueryFacts", func() {
		It("breaks similarity ties by ascending id", func() {
			var ids []int64
			for _, text := range []string{"a", "b", "c"} {
				id, err := driver.InsertFact(ctx, Fact(text, nil, 0, 0, 1))
				Expect(err).NotTo(HaveOccurred())
				ids = append(ids, id)
			}

			results, err := driver.QueryFacts(ctx, []float32{0, 0, 1}, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(HaveLen(3))
			Expect([]int64{results[0].ID, results[1].ID, results[2].ID}).To(Equal(ids))
		})

		It("is empty on an empty store", func() {
			results, err := driver.QueryFacts(ctx, []float32{0, 0, 1}, 5)
			Expect(err).NotTo(HaveOccurred())
			Expect(results).To(BeEmpty())
		})
	})

	Describe("ListSources", func() {
		It("filters by session and keeps insertion order", func() {
			for i, session := range []string{"a", "b", "a"} {
				_, err := driver.InsertSource(ctx, Source(session, i, "turn", 1, 0, 0))
				Expect(err).NotTo(HaveOccurred())
			}

			onlyA, err := driver.ListSources(ctx, "a")
			Expect(err).NotTo(HaveOccurred())
			Expect(onlyA).To(HaveLen(2))
			Expect(onlyA[0].Turn).To(Equal(0))
			Expect(onlyA[1].Turn).To(Equal(2))

			all, err := driver.ListSources(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(all).To(HaveLen(3))
		})
	})

	Describe("Clear", func() {
		It("removes everything and never reuses ids", func() {
			before, err := driver.InsertSource(ctx, Source("s1", 0, "turn", 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			_, err = driver.InsertFact(ctx, Fact("fact", []int64{before}, 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())

			Expect(driver.Clear(ctx)).To(Succeed())

			sources, err := driver.ListSources(ctx, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(sources).To(BeEmpty())
			facts, err := driver.ListFacts(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(facts).To(BeEmpty())

			after, err := driver.InsertSource(ctx, Source("s1", 0, "turn", 1, 0, 0))
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(BeNumerically(">", before))
		})
	})
}
