// Package servecmder provides the serve command, which runs the engram HTTP
// API with the chat agent and the MCP memory server mounted.
package servecmder

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/engram/api"
	"github.com/papercomputeco/engram/api/mcp"
	"github.com/papercomputeco/engram/cmd/engram/cmdutil"
	"github.com/papercomputeco/engram/pkg/bootstrap"
	"github.com/papercomputeco/engram/pkg/config"
)

type serveCommander struct {
	storage cmdutil.StorageFlagValues
	agent   cmdutil.AgentFlagValues
	listen  string

	logger *slog.Logger
}

const serveLongDesc string = `Run the engram API server.

Serves the memory store, the chat agent and the MCP memory tools over HTTP:
  POST /v1/chat              Run one agent turn
  POST /v1/memory/retrieve   Nearest facts and turns for a query
  POST /v1/memory/compose    Domain-scoped memories for a message
  /mcp                       MCP server (memory_retrieve, memory_write_fact)
  GET  /metrics              Prometheus metrics

Examples:
  engram serve
  engram serve --listen :9000 --storage-driver postgres --postgres-dsn postgres://...`

const serveShortDesc string = "Run the engram API server"

func NewServeCmd() *cobra.Command {
	cmder := &serveCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := cmdutil.LoadConfig(cmd, config.StorageFlags, config.AgentFlags, config.ServeFlags)
			if err != nil {
				return err
			}
			cmder.logger = cmdutil.NewLogger(cmd)
			return cmder.run(cmd, cfg)
		},
	}

	cmdutil.AddStorageFlags(cmd, &cmder.storage)
	cmdutil.AddAgentFlags(cmd, &cmder.agent)
	config.AddStringFlag(cmd, config.ServeFlags, config.FlagAPIListen, &cmder.listen)

	return cmd
}

func (c *serveCommander) run(cmd *cobra.Command, cfg *config.Config) error {
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

	mcpServer, err := mcp.NewServer(mcp.Config{
		Composer:    rt.Composer,
		Writer:      rt.Store,
		DefaultTopK: int(cfg.Memory.TopK),
		Logger:      c.logger,
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}

	server := api.NewServer(api.Config{
		ListenAddr:  cfg.API.Listen,
		DefaultTopK: int(cfg.Memory.TopK),
	}, api.Deps{
		Memory:   rt.Store,
		Composer: rt.Composer,
		Agent:    rt.Agent,
		Sessions: rt.Sessions,
		MCP:      mcpServer.Handler(),
	}, c.logger)

	errChan := make(chan error, 1)
	go func() {
		if err := server.Run(); err != nil {
			errChan <- fmt.Errorf("API server error: %w", err)
		}
	}()

	// Wait for interrupt signal or error
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case err := <-errChan:
		return err
	case sig := <-sigChan:
		c.logger.Info("received signal, shutting down", "signal", sig.String())
	case <-ctx.Done():
		c.logger.Info("context cancelled, shutting down")
	}

	if err := server.Shutdown(); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
