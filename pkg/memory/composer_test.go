package memory_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

type stubRetriever struct {
	mem   *memory.Memories
	err   error
	query string
	topK  int
}

func (s *stubRetriever) Retrieve(_ context.Context, query string, topK int) (*memory.Memories, error) {
	s.query = query
	s.topK = topK
	return s.mem, s.err
}

func scoredFact(id int64, domain string) storage.ScoredFact {
	return storage.ScoredFact{Fact: storage.Fact{ID: id, Text: "fact", Domain: domain}, Similarity: 0.5}
}

var _ = Describe("Composer", func() {
	var (
		ctx  context.Context
		stub *stubRetriever
	)

	BeforeEach(func() {
		ctx = context.Background()
		stub = &stubRetriever{mem: &memory.Memories{
			Facts: []storage.ScoredFact{
				scoredFact(1, "todo"),
				scoredFact(2, "writing"),
				scoredFact(3, ""),
				scoredFact(4, "todo"),
			},
			Sources: []storage.ScoredSource{
				{Source: storage.Source{ID: 10}},
				{Source: storage.Source{ID: 11}},
			},
		}}
	})

	It("keeps only facts of the hinted domain and never filters sources", func() {
		c, err := memory.NewComposer(stub, nil).Compose(ctx, "anything", memory.DomainTodo, 5)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Domain).To(Equal(memory.DomainTodo))
		Expect(c.Facts).To(HaveLen(2))
		Expect(c.Facts[0].ID).To(Equal(int64(1)))
		Expect(c.Facts[1].ID).To(Equal(int64(4)))
		Expect(c.Sources).To(HaveLen(2))
	})

	It("classifies the message when no hint is given", func() {
		c, err := memory.NewComposer(stub, nil).Compose(ctx, "help me write an article", memory.DomainNone, 5)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Domain).To(Equal(memory.DomainWriting))
		Expect(c.Facts).To(HaveLen(1))
		Expect(c.Facts[0].ID).To(Equal(int64(2)))
	})

	It("returns every fact when no domain is known", func() {
		c, err := memory.NewComposer(stub, nil).Compose(ctx, "hello there", memory.DomainNone, 5)
		Expect(err).NotTo(HaveOccurred())

		Expect(c.Domain).To(Equal(memory.DomainNone))
		Expect(c.Facts).To(HaveLen(4))
	})

	It("passes the message and topK through", func() {
		_, err := memory.NewComposer(stub, nil).Compose(ctx, "plan a trip", memory.DomainNone, 7)
		Expect(err).NotTo(HaveOccurred())
		Expect(stub.query).To(Equal("plan a trip"))
		Expect(stub.topK).To(Equal(7))
	})

	It("treats a filtered-out result as valid", func() {
		c, err := memory.NewComposer(stub, nil).Compose(ctx, "x", memory.Domain("cooking"), 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Facts).To(BeEmpty())
		Expect(c.Sources).To(HaveLen(2))
	})

	It("propagates retrieval errors", func() {
		stub.err = errors.New("down")
		_, err := memory.NewComposer(stub, nil).Compose(ctx, "x", memory.DomainNone, 5)
		Expect(err).To(MatchError("down"))
	})

	It("works end to end against a store", func() {
		store, err := memory.NewStore(memory.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: testutils.NewHashEmbedder(128),
		})
		Expect(err).NotTo(HaveOccurred())

		_, err = store.WriteFact(ctx, memory.FactInput{Text: "user added task buy milk", Domain: "todo"})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.WriteFact(ctx, memory.FactInput{Text: "user wrote a blog about milk", Domain: "writing"})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.WriteTurn(ctx, memory.TurnInput{SessionID: "s", Speaker: "user", Content: "milk"})
		Expect(err).NotTo(HaveOccurred())

		c, err := memory.NewComposer(store, nil).Compose(ctx, "what task about milk", memory.DomainNone, 5)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Domain).To(Equal(memory.DomainTodo))
		Expect(c.Facts).To(HaveLen(1))
		Expect(c.Facts[0].Domain).To(Equal("todo"))
		Expect(c.Sources).To(HaveLen(1))
	})
})
