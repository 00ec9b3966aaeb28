package api

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/storage"
)

// ErrorResponse is the JSON body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// WriteTurnRequest is the body of POST /v1/memory/turns.
type WriteTurnRequest struct {
	SessionID   string          `json:"session_id"`
	Turn        int             `json:"turn"`
	Speaker     string          `json:"speaker"`
	Content     string          `json:"content"`
	ToolCalls   json.RawMessage `json:"tool_calls,omitempty"`
	ToolResults json.RawMessage `json:"tool_results,omitempty"`
}

// WriteTurnResponse is returned by POST /v1/memory/turns.
type WriteTurnResponse struct {
	SourceID int64 `json:"source_id"`
}

// WriteFactResponse is returned by POST /v1/memory/facts.
type WriteFactResponse struct {
	FactID int64 `json:"fact_id"`
}

// RetrieveRequest is the body of POST /v1/memory/retrieve.
type RetrieveRequest struct {
	Query string `json:"query"`
	TopK  int    `json:"top_k"`
}

// ComposeRequest is the body of POST /v1/memory/compose.
type ComposeRequest struct {
	Message string `json:"message"`
	Domain  string `json:"domain,omitempty"`
	TopK    int    `json:"top_k"`
}

// ChatRequest is the body of POST /v1/chat. An empty SessionID starts a
// new session.
type ChatRequest struct {
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message"`
}

func errorJSON(c *fiber.Ctx, status int, msg string) error {
	return c.Status(status).JSON(ErrorResponse{Error: msg})
}

// statusFor maps a component error to an HTTP status.
func statusFor(err error) int {
	switch {
	case errors.Is(err, storage.ErrInvalidRecord),
		errors.Is(err, agent.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, memory.ErrEmbedding),
		errors.Is(err, llm.ErrCompletion):
		return fiber.StatusBadGateway
	default:
		return fiber.StatusInternalServerError
	}
}

func (s *Server) fail(c *fiber.Ctx, op string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		s.logger.Error("api request failed", "op", op, "error", err)
	}
	return errorJSON(c, status, err.Error())
}

// MaxTopK caps top_k on retrieval requests.
const MaxTopK = 100

func (s *Server) topK(n int) int {
	if n <= 0 {
		return s.config.DefaultTopK
	}
	return min(n, MaxTopK)
}

// handlePing returns a simple health check response.
func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// handleWriteTurn stores one conversation turn.
func (s *Server) handleWriteTurn(c *fiber.Ctx) error {
	var req WriteTurnRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.SessionID == "" {
		return errorJSON(c, fiber.StatusBadRequest, "session_id is required")
	}

	id, err := s.deps.Memory.WriteTurn(c.UserContext(), memory.TurnInput{
		SessionID:   req.SessionID,
		Turn:        req.Turn,
		Speaker:     req.Speaker,
		Content:     req.Content,
		ToolCalls:   req.ToolCalls,
		ToolResults: req.ToolResults,
	})
	if err != nil {
		return s.fail(c, "write_turn", err)
	}

	return c.Status(fiber.StatusCreated).JSON(WriteTurnResponse{SourceID: id})
}

// handleWriteFact stores one fact.
func (s *Server) handleWriteFact(c *fiber.Ctx) error {
	var req memory.FactInput
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "text is required")
	}

	id, err := s.deps.Memory.WriteFact(c.UserContext(), req)
	if err != nil {
		return s.fail(c, "write_fact", err)
	}

	return c.Status(fiber.StatusCreated).JSON(WriteFactResponse{FactID: id})
}

// handleListFacts returns every stored fact.
func (s *Server) handleListFacts(c *fiber.Ctx) error {
	facts, err := s.deps.Memory.ListFacts(c.UserContext())
	if err != nil {
		return s.fail(c, "list_facts", err)
	}

	return c.JSON(map[string]any{
		"count": len(facts),
		"facts": facts,
	})
}

// handleRetrieve returns the nearest facts and turns for a query.
func (s *Server) handleRetrieve(c *fiber.Ctx) error {
	var req RetrieveRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Query) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "query is required")
	}

	mem, err := s.deps.Memory.Retrieve(c.UserContext(), req.Query, s.topK(req.TopK))
	if err != nil {
		return s.fail(c, "retrieve", err)
	}

	return c.JSON(mem)
}

// handleCompose retrieves memories narrowed to the message's domain.
func (s *Server) handleCompose(c *fiber.Ctx) error {
	var req ComposeRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Message) == "" {
		return errorJSON(c, fiber.StatusBadRequest, "message is required")
	}

	comp, err := s.deps.Composer.Compose(c.UserContext(), req.Message, memory.ParseDomain(req.Domain), s.topK(req.TopK))
	if err != nil {
		return s.fail(c, "compose", err)
	}

	return c.JSON(comp)
}

// handleChat runs one agent turn.
func (s *Server) handleChat(c *fiber.Ctx) error {
	if s.deps.Agent == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "chat is not enabled")
	}

	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return errorJSON(c, fiber.StatusBadRequest, "invalid request body")
	}

	reply, err := s.deps.Agent.ProcessMessage(c.UserContext(), req.SessionID, req.Message)
	if err != nil {
		return s.fail(c, "chat", err)
	}

	return c.JSON(reply)
}

// handleListSessions returns the live sessions.
func (s *Server) handleListSessions(c *fiber.Ctx) error {
	if s.deps.Sessions == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "sessions are not enabled")
	}

	sessions := s.deps.Sessions.List()
	return c.JSON(map[string]any{
		"count":    len(sessions),
		"sessions": sessions,
	})
}

// handleDeleteSession ends a session. Its history is dropped; anything
// already compacted stays in memory.
func (s *Server) handleDeleteSession(c *fiber.Ctx) error {
	if s.deps.Agent == nil {
		return errorJSON(c, fiber.StatusServiceUnavailable, "chat is not enabled")
	}

	id := c.Params("id")
	if id == "" {
		return errorJSON(c, fiber.StatusBadRequest, "id parameter required")
	}

	if err := s.deps.Agent.EndSession(id); err != nil {
		return s.fail(c, "delete_session", err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}
