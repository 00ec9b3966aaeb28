// Package chatcmder provides the chat command, an interactive terminal
// conversation with the memory-backed agent.
package chatcmder

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/cliui"
	"github.com/papercomputeco/engram/pkg/config"
)

var (
	userPrompt      = lipgloss.NewStyle().Foreground(lipgloss.Color("82")).Bold(true).Render("you> ")
	assistantPrompt = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Render("engram> ")
)

// responder answers one message in a session.
type responder interface {
	ProcessMessage(ctx context.Context, sessionID, text string) (*agent.Reply, error)
	EndSession(sessionID string) error
}

type chatCommander struct {
	storage   cmdutil.StorageFlagValues
	agent     cmdutil.AgentFlagValues
	sessionID string
	markdown  bool

	logger *slog.Logger
}

const chatLongDesc string = `Start an interactive chat session with the engram agent.

Each message is answered with the memories most relevant to it injected
into the prompt. Once the conversation grows past the compaction threshold,
older turns are written to long-term memory, facts are extracted from
them, and only the most recent turns are kept in the session.

Commands inside the session:
  /new     Start a fresh session (long-term memory is kept)
  /exit    Quit (Ctrl+D also works)

Examples:
  engram chat
  engram chat --model gpt-4o --top-k 8
  engram chat --completion-provider ollama --model llama3.2`

const chatShortDesc string = "Interactive chat with the memory-backed agent"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags, config.AgentFlags)
			if err != nil {
				return err
			}
			cmder.logger = cmdutil.NewLogger(cmd)
			cmder.markdown = cmdutil.IsTerminal(os.Stdout)
			return cmder.run(cmd, cfg)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddAgentFlags(cmd, &cmder.agent)
	cmd.Flags().StringVar(&cmder.sessionID, "session", "", "Session ID (default: a new random ID)")

	return cmd
}

func (c *chatCommander) run(cmd *cobra.Command, cfg *config.Config) error {
	ctx := cmd.Context()

	rt, err := bootstrap.Open(ctx, cfg, cmdutil.ConfigDir(cmd), c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Close(); err != nil {
			c.logger.Error("closing runtime", "error", err)
		}
	}()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintf(out, "  %s %s\n",
		cliui.KeyStyle.Render("Model:"),
		cliui.NameStyle.Render(cfg.Completion.Model),
	)
	fmt.Fprintf(out, "  %s %s\n\n",
		cliui.KeyStyle.Render("Memory:"),
		cliui.DimStyle.Render(cfg.Storage.Driver),
	)
	fmt.Fprintf(out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /new for a fresh session, /exit or Ctrl+D to quit."))

	return c.loop(ctx, cmd.InOrStdin(), out, rt.Agent)
}

// loop reads lines from in until EOF or /exit and answers each through r.
// A failed turn is reported and the loop continues.
func (c *chatCommander) loop(ctx context.Context, in io.Reader, out io.Writer, r responder) error {
	sessionID := c.sessionID

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(out)
			return nil
		case "/new":
			if sessionID != "" {
				_ = r.EndSession(sessionID)
			}
			sessionID = ""
			fmt.Fprintf(out, "  %s New session\n\n", cliui.SuccessMark)
			continue
		}

		reply, err := r.ProcessMessage(ctx, sessionID, input)
		if err != nil {
			fmt.Fprintf(out, "  %s %v\n\n", cliui.FailMark, err)
			continue
		}
		sessionID = reply.SessionID

		c.printReply(out, reply)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(out)
	return nil
}

func (c *chatCommander) printReply(out io.Writer, reply *agent.Reply) {
	for _, call := range reply.ToolCalls {
		mark := cliui.SuccessMark
		if call.IsError {
			mark = cliui.FailMark
		}
		fmt.Fprintf(out, "  %s %s\n", mark, cliui.DimStyle.Render(call.Name))
	}

	text := reply.Content
	if c.markdown {
		if rendered, err := cliui.RenderMarkdown(text); err == nil {
			text = strings.TrimSpace(rendered)
		}
	}
	fmt.Fprintf(out, "%s%s\n", assistantPrompt, text)

	if reply.Compaction != nil {
		fmt.Fprintf(out, "  %s %s\n",
			cliui.DimStyle.Render("●"),
			cliui.DimStyle.Render(fmt.Sprintf("memory compacted: %d turns stored, %d facts extracted",
				reply.Compaction.TurnsWritten, reply.Compaction.FactsExtracted)),
		)
	}
	fmt.Fprintln(out)
}
