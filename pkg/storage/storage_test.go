package storage_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/vector"
)

var _ = Describe("Validate", func() {
	It("requires a session id on sources", func() {
		s := &storage.Source{Content: "hi", Embedding: []float32{1}}
		Expect(s.Validate(0)).To(MatchError(storage.ErrInvalidRecord))
	})

	It("accepts any dimensionality when the store has none fixed", func() {
		s := &storage.Source{SessionID: "s", Embedding: []float32{1, 2, 3, 4}}
		Expect(s.Validate(0)).To(Succeed())
	})

	It("rejects facts whose embedding size differs from the store", func() {
		f := &storage.Fact{Text: "x", Embedding: []float32{1, 2}}
		Expect(f.Validate(3)).To(MatchError(vector.ErrDimensionMismatch))
	})

	It("rejects nil records", func() {
		var f *storage.Fact
		Expect(f.Validate(3)).To(MatchError(storage.ErrInvalidRecord))
	})
})

var _ = Describe("Rank", func() {
	It("sorts by similarity then id and truncates", func() {
		in := []storage.ScoredFact{
			{Fact: storage.Fact{ID: 4}, Similarity: 0.5},
			{Fact: storage.Fact{ID: 2}, Similarity: 0.9},
			{Fact: storage.Fact{ID: 1}, Similarity: 0.5},
			{Fact: storage.Fact{ID: 3}, Similarity: 0.1},
		}

		out := storage.RankFacts(in, 3)
		Expect(out).To(HaveLen(3))
		Expect(out[0].ID).To(Equal(int64(2)))
		Expect(out[1].ID).To(Equal(int64(1)))
		Expect(out[2].ID).To(Equal(int64(4)))
	})

	It("returns nothing for a negative topK", func() {
		in := []storage.ScoredSource{{Source: storage.Source{ID: 1}, Similarity: 1}}
		Expect(storage.RankSources(in, -1)).To(BeEmpty())
	})
})
