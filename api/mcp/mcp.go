// Package mcp provides an MCP (Model Context Protocol) server exposing
// engram's long-term memory to external agents.
package mcp

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/utils"
)

// Composer retrieves domain-scoped memories.
type Composer interface {
	Compose(ctx context.Context, message string, hint memory.Domain, topK int) (*memory.Composition, error)
}

// FactWriter stores facts.
type FactWriter interface {
	WriteFact(ctx context.Context, in memory.FactInput) (int64, error)
}

type Config struct {
	// Composer backs the memory_retrieve tool.
	Composer Composer

	// Writer backs the memory_write_fact tool. Optional; the tool is left
	// out when nil.
	Writer FactWriter

	// DefaultTopK is used when a call does not give top_k.
	DefaultTopK int

	// Noop for empty MCP server
	Noop bool

	Logger *slog.Logger
}

type Server struct {
	config    Config
	mcpServer *mcp.Server
	handler   *mcp.StreamableHTTPHandler
}

// NewServer creates a new MCP server with the memory tools.
func NewServer(c Config) (*Server, error) {
	s := &Server{
		config: c,
	}

	mcpServer := mcp.NewServer(
		&mcp.Implementation{
			Name:    "engram",
			Version: utils.Version,
		},
		&mcp.ServerOptions{},
	)

	if !c.Noop {
		if c.Composer == nil {
			return nil, errors.New("memory composer is required")
		}
		if c.Logger == nil {
			return nil, errors.New("logger is required")
		}
		if s.config.DefaultTopK <= 0 {
			s.config.DefaultTopK = defaultTopK
		}

		mcp.AddTool(mcpServer, &mcp.Tool{
			Name:        memoryRetrieveToolName,
			Description: memoryRetrieveDescription,
		}, s.handleMemoryRetrieve)

		if c.Writer != nil {
			mcp.AddTool(mcpServer, &mcp.Tool{
				Name:        memoryWriteFactToolName,
				Description: memoryWriteFactDescription,
			}, s.handleMemoryWriteFact)
		}
	}

	s.mcpServer = mcpServer

	// Create a streamable HTTP net/http handler for stateless operations
	s.handler = mcp.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcp.Server {
			return mcpServer
		},
		&mcp.StreamableHTTPOptions{
			Stateless: true,
		},
	)

	return s, nil
}

// Handler returns the HTTP handler for the MCP server.
func (s *Server) Handler() http.Handler {
	return s.handler
}
