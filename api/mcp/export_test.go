package mcp

import "github.com/modelcontextprotocol/go-sdk/mcp"

// MCPServer exposes the underlying SDK server so tests can connect over
// in-memory transports.
func (s *Server) MCPServer() *mcp.Server {
	return s.mcpServer
}
