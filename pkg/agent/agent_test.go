package agent_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/compaction"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	"github.com/papercomputeco/engram/pkg/tools"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

type failingCompactor struct{ calls int }

func (f *failingCompactor) CompactSession(context.Context, *session.State, int) (compaction.Result, error) {
	f.calls++
	return compaction.Result{}, errors.New("storage offline")
}

type cannedExtractor struct{ candidates []extract.Candidate }

func (c *cannedExtractor) Extract(context.Context, []llm.Message) ([]extract.Candidate, error) {
	return c.candidates, nil
}

var _ = Describe("Agent", func() {
	var (
		ctx       context.Context
		store     *memory.Store
		sessions  *session.Manager
		completer *testutils.MockCompleter
		registry  *tools.Registry
		cfg       agent.Config
	)

	build := func() *agent.Agent {
		a, err := agent.New(cfg)
		Expect(err).NotTo(HaveOccurred())
		return a
	}

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = memory.NewStore(memory.Config{
			Driver:     inmemory.NewDriver(),
			Embedder:   testutils.NewHashEmbedder(256),
			Dimensions: 256,
		})
		Expect(err).NotTo(HaveOccurred())

		sessions = session.NewManager()
		completer = &testutils.MockCompleter{}
		registry = tools.NewRegistry(nil)
		Expect(tools.RegisterTodoTools(registry, tools.NewTaskList())).To(Succeed())

		cfg = agent.Config{
			Client:   completer,
			Model:    "test-model",
			Sessions: sessions,
			Composer: memory.NewComposer(store, nil),
			Tools:    registry,
		}
	})

	It("requires its collaborators", func() {
		_, err := agent.New(agent.Config{Sessions: sessions})
		Expect(err).To(MatchError(agent.ErrNotConfigured))
	})

	It("rejects blank messages", func() {
		_, err := build().ProcessMessage(ctx, "", "   ")
		Expect(err).To(MatchError(agent.ErrEmptyMessage))
	})

	It("answers a plain message and records the exchange", func() {
		completer.Replies = append(completer.Replies, testutils.TextReply("Hello! How can I help?"))

		reply, err := build().ProcessMessage(ctx, "", "hi")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.SessionID).NotTo(BeEmpty())
		Expect(reply.Content).To(Equal("Hello! How can I help?"))
		Expect(reply.Iterations).To(Equal(1))

		req := completer.LastRequest()
		Expect(req.Model).To(Equal("test-model"))
		Expect(req.Messages[0].Role).To(Equal(llm.RoleSystem))
		Expect(req.Messages[1].GetText()).To(Equal("hi"))

		s, err := sessions.Get(reply.SessionID)
		Expect(err).NotTo(HaveOccurred())
		Expect(s.History().Len()).To(Equal(2))
	})

	It("injects domain memories into the system prompt", func() {
		_, err := store.WriteFact(ctx, memory.FactInput{Text: "user requested a flight to Tokyo", Type: "action", Domain: "travel"})
		Expect(err).NotTo(HaveOccurred())
		_, err = store.WriteFact(ctx, memory.FactInput{Text: "user wants a task list for flight prep", Domain: "todo"})
		Expect(err).NotTo(HaveOccurred())

		completer.Replies = append(completer.Replies, testutils.TextReply("Booked."))

		reply, err := build().ProcessMessage(ctx, "s1", "book a flight to Tokyo")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Domain).To(Equal(memory.DomainTravel))
		Expect(reply.Facts).To(Equal(1))

		system := completer.LastRequest().Messages[0].GetText()
		Expect(system).To(ContainSubstring("Relevant memories"))
		Expect(system).To(ContainSubstring("- user requested a flight to Tokyo"))
		Expect(system).NotTo(ContainSubstring("task list for flight prep"))
	})

	It("executes tool calls until the model answers", func() {
		completer.Replies = append(completer.Replies,
			testutils.ToolReply(llm.ToolCall{ID: "call_1", Name: tools.AddTaskToolName, Input: map[string]any{"title": "write weekly report"}}),
			testutils.TextReply("Created task: write weekly report"),
		)

		reply, err := build().ProcessMessage(ctx, "s1", "create a task: write weekly report")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Domain).To(Equal(memory.DomainTodo))
		Expect(reply.Iterations).To(Equal(2))
		Expect(reply.ToolCalls).To(HaveLen(1))
		Expect(reply.ToolCalls[0].Name).To(Equal(tools.AddTaskToolName))
		Expect(reply.ToolCalls[0].IsError).To(BeFalse())

		first := completer.Requests[0]
		Expect(first.Tools).To(HaveLen(3))

		second := completer.Requests[1]
		last := second.Messages[len(second.Messages)-1]
		Expect(last.Role).To(Equal(llm.RoleTool))
		Expect(last.GetText()).To(ContainSubstring(`"success":true`))

		s, err := sessions.Get("s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.History().Len()).To(Equal(4))
	})

	It("stops at the iteration cap", func() {
		cfg.MaxIterations = 2
		call := llm.ToolCall{ID: "c", Name: tools.ListTasksToolName}
		completer.Replies = append(completer.Replies, testutils.ToolReply(call), testutils.ToolReply(call), testutils.ToolReply(call))

		_, err := build().ProcessMessage(ctx, "s1", "list my tasks")
		Expect(err).To(MatchError(agent.ErrMaxIterations))
		Expect(completer.RequestCount()).To(Equal(2))
	})

	It("propagates completion failures", func() {
		completer.Err = llm.ErrCompletion

		_, err := build().ProcessMessage(ctx, "s1", "hi")
		Expect(errors.Is(err, llm.ErrCompletion)).To(BeTrue())
	})

	It("answers even when compaction fails", func() {
		compactor := &failingCompactor{}
		cfg.Compactor = compactor
		completer.Replies = append(completer.Replies, testutils.TextReply("still here"))

		reply, err := build().ProcessMessage(ctx, "s1", "hi")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Content).To(Equal("still here"))
		Expect(reply.Compaction).To(BeNil())
		Expect(compactor.calls).To(Equal(1))
	})

	It("compacts long sessions into memory before retrieval", func() {
		ctrl, err := compaction.New(compaction.Config{
			Memory: store,
			Extractor: &cannedExtractor{candidates: []extract.Candidate{
				{Text: "user prefers morning flights", Type: extract.TypeUserPreference, Domain: "travel"},
			}},
			RetainWindow: 1,
		})
		Expect(err).NotTo(HaveOccurred())
		cfg.Compactor = ctrl
		cfg.CompactionThreshold = 2

		a := build()
		completer.Replies = append(completer.Replies,
			testutils.TextReply("ok"),
			testutils.TextReply("Morning flight found."),
		)

		_, err = a.ProcessMessage(ctx, "s1", "I like early starts")
		Expect(err).NotTo(HaveOccurred())

		reply, err := a.ProcessMessage(ctx, "s1", "find me a flight")
		Expect(err).NotTo(HaveOccurred())
		Expect(reply.Compaction).NotTo(BeNil())
		Expect(reply.Compaction.TurnsWritten).To(Equal(3))
		Expect(reply.Compaction.FactsExtracted).To(Equal(1))

		system := completer.LastRequest().Messages[0].GetText()
		Expect(system).To(ContainSubstring("user prefers morning flights"))

		s, err := sessions.Get("s1")
		Expect(err).NotTo(HaveOccurred())
		Expect(s.History().Len()).To(Equal(2))
		Expect(s.Phase()).To(Equal(session.PhaseActive))
	})

	It("ends sessions", func() {
		completer.Replies = append(completer.Replies, testutils.TextReply("hi"))
		a := build()
		reply, err := a.ProcessMessage(ctx, "", "hello")
		Expect(err).NotTo(HaveOccurred())

		Expect(a.EndSession(reply.SessionID)).To(Succeed())
		Expect(a.EndSession(reply.SessionID)).To(MatchError(session.ErrNotFound))
	})
})
