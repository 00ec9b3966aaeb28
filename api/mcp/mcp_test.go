package mcp_test

import (
	"context"
	"encoding/json"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/engram/api/mcp"
	engramlogger "github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	testutils "github.com/papercomputeco/engram/pkg/utils/test"
)

func connect(ctx context.Context, server *mcp.Server) *sdkmcp.ClientSession {
	serverTransport, clientTransport := sdkmcp.NewInMemoryTransports()

	_, err := server.MCPServer().Connect(ctx, serverTransport, nil)
	Expect(err).NotTo(HaveOccurred())

	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, clientTransport, nil)
	Expect(err).NotTo(HaveOccurred())
	return session
}

func textOf(result *sdkmcp.CallToolResult) string {
	Expect(result.Content).To(HaveLen(1))
	text, ok := result.Content[0].(*sdkmcp.TextContent)
	Expect(ok).To(BeTrue())
	return text.Text
}

var _ = Describe("MCP Server", func() {
	var (
		ctx      context.Context
		store    *memory.Store
		composer *memory.Composer
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		store, err = memory.NewStore(memory.Config{
			Driver:   inmemory.NewDriver(),
			Embedder: testutils.NewHashEmbedder(256),
		})
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)

		composer = memory.NewComposer(store, engramlogger.Nop())
	})

	Describe("NewServer", func() {
		It("returns an error when the composer is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Logger: engramlogger.Nop()})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("memory composer is required"))
		})

		It("returns an error when logger is nil", func() {
			_, err := mcp.NewServer(mcp.Config{Composer: composer})
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("logger is required"))
		})

		It("allows an empty noop server", func() {
			server, err := mcp.NewServer(mcp.Config{Noop: true})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})

		It("returns an HTTP handler", func() {
			server, err := mcp.NewServer(mcp.Config{
				Composer: composer,
				Logger:   engramlogger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(server.Handler()).NotTo(BeNil())
		})
	})

	Describe("tools", func() {
		var session *sdkmcp.ClientSession

		BeforeEach(func() {
			server, err := mcp.NewServer(mcp.Config{
				Composer: composer,
				Writer:   store,
				Logger:   engramlogger.Nop(),
			})
			Expect(err).NotTo(HaveOccurred())

			session = connect(ctx, server)
			DeferCleanup(session.Close)
		})

		It("lists the memory tools", func() {
			res, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
			Expect(err).NotTo(HaveOccurred())

			names := make([]string, 0, len(res.Tools))
			for _, t := range res.Tools {
				names = append(names, t.Name)
			}
			Expect(names).To(ConsistOf("memory_retrieve", "memory_write_fact"))
		})

		It("writes a fact and retrieves it by domain", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name: "memory_write_fact",
				Arguments: map[string]any{
					"text":   "user prefers window seats on flights",
					"type":   "USER_PREFERENCE",
					"domain": "travel",
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var written mcp.MemoryWriteFactOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &written)).To(Succeed())
			Expect(written.FactID).To(BeNumerically(">", 0))

			_, err = store.WriteFact(ctx, memory.FactInput{Text: "user writes blog posts on sundays", Domain: "writing"})
			Expect(err).NotTo(HaveOccurred())

			res, err = session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name: "memory_retrieve",
				Arguments: map[string]any{
					"query":  "window seats on flights",
					"domain": "travel",
				},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeFalse())

			var out mcp.MemoryRetrieveOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Domain).To(Equal("travel"))
			Expect(out.Facts).To(HaveLen(1))
			Expect(out.Facts[0].ID).To(Equal(written.FactID))
			Expect(out.Facts[0].Type).To(Equal("user_preference"))
			Expect(out.Turns).To(BeEmpty())
		})

		It("returns turns alongside facts", func() {
			_, err := store.WriteTurn(ctx, memory.TurnInput{
				SessionID: "s1",
				Speaker:   "user",
				Content:   "remind me to renew my passport",
			})
			Expect(err).NotTo(HaveOccurred())

			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "memory_retrieve",
				Arguments: map[string]any{"query": "passport", "top_k": 3},
			})
			Expect(err).NotTo(HaveOccurred())

			var out mcp.MemoryRetrieveOutput
			Expect(json.Unmarshal([]byte(textOf(res)), &out)).To(Succeed())
			Expect(out.Turns).To(HaveLen(1))
			Expect(out.Turns[0].SessionID).To(Equal("s1"))
		})

		It("rejects an empty query", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "memory_retrieve",
				Arguments: map[string]any{"query": "  "},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("query is required"))
		})

		It("rejects an empty fact", func() {
			res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
				Name:      "memory_write_fact",
				Arguments: map[string]any{"text": ""},
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.IsError).To(BeTrue())
			Expect(textOf(res)).To(ContainSubstring("text is required"))
		})
	})

	It("leaves out memory_write_fact without a writer", func() {
		server, err := mcp.NewServer(mcp.Config{
			Composer: composer,
			Logger:   engramlogger.Nop(),
		})
		Expect(err).NotTo(HaveOccurred())

		session := connect(ctx, server)
		DeferCleanup(session.Close)

		res, err := session.ListTools(ctx, &sdkmcp.ListToolsParams{})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Tools).To(HaveLen(1))
		Expect(res.Tools[0].Name).To(Equal("memory_retrieve"))
	})
})
