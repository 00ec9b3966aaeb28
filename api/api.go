package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/storage"
)

const defaultTopK = 5

// MemoryStore is the memory surface the API serves.
type MemoryStore interface {
	WriteTurn(ctx context.Context, in memory.TurnInput) (int64, error)
	WriteFact(ctx context.Context, in memory.FactInput) (int64, error)
	Retrieve(ctx context.Context, query string, topK int) (*memory.Memories, error)
	ListFacts(ctx context.Context) ([]storage.Fact, error)
}

// Composer retrieves domain-scoped memories.
type Composer interface {
	Compose(ctx context.Context, message string, hint memory.Domain, topK int) (*memory.Composition, error)
}

// Agent answers chat messages.
type Agent interface {
	ProcessMessage(ctx context.Context, sessionID, text string) (*agent.Reply, error)
	EndSession(sessionID string) error
}

// SessionLister reports live sessions.
type SessionLister interface {
	List() []session.Info
}

// Deps are the components behind the API. Agent, Sessions and MCP are
// optional; their routes answer 503 when unset.
type Deps struct {
	Memory   MemoryStore
	Composer Composer
	Agent    Agent
	Sessions SessionLister

	// MCP is mounted at /mcp when set.
	MCP http.Handler
}

// Server is the API server for engram's memory and agent
type Server struct {
	config Config
	deps   Deps
	logger *slog.Logger
	app    *fiber.App
}

// NewServer creates a new API server.
// The dependencies are injected so they can be shared with the CLI
// commands that run in the same process.
func NewServer(config Config, deps Deps, log *slog.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	if config.DefaultTopK <= 0 {
		config.DefaultTopK = defaultTopK
	}

	s := &Server{
		config: config,
		deps:   deps,
		logger: logger.OrNop(log),
		app:    app,
	}

	app.Get("/ping", s.handlePing)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	v1 := app.Group("/v1")
	v1.Post("/memory/turns", s.handleWriteTurn)
	v1.Post("/memory/facts", s.handleWriteFact)
	v1.Get("/memory/facts", s.handleListFacts)
	v1.Post("/memory/retrieve", s.handleRetrieve)
	v1.Post("/memory/compose", s.handleCompose)
	v1.Post("/chat", s.handleChat)
	v1.Get("/sessions", s.handleListSessions)
	v1.Delete("/sessions/:id", s.handleDeleteSession)

	if deps.MCP != nil {
		app.All("/mcp", adaptor.HTTPHandler(deps.MCP))
	}

	return s
}

// App exposes the fiber app, mainly for in-process testing.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		"listen", s.config.ListenAddr,
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}
