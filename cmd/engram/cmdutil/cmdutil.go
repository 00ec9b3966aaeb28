// Package cmdutil holds the config and logger plumbing shared by the engram
// subcommands.
package cmdutil

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/logger"
)

// ConfigDir returns the --config-dir flag value, or "" when the flag is not
// registered on cmd's tree.
func ConfigDir(cmd *cobra.Command) string {
	dir, _ := cmd.Flags().GetString("config-dir")
	return dir
}

// Debug returns the --debug flag value.
func Debug(cmd *cobra.Command) bool {
	debug, _ := cmd.Flags().GetBool("debug")
	return debug
}

// LoadConfig resolves the effective config for cmd: defaults, then
// config.toml, then ENGRAM_* env vars, then any flags of the given sets
// that cmd registered.
func LoadConfig(cmd *cobra.Command, sets ...config.FlagSet) (*config.Config, error) {
	v, err := config.InitViper(ConfigDir(cmd))
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	for _, fs := range sets {
		config.BindRegisteredFlags(v, cmd, fs, fs.Keys())
	}

	cfg, err := config.FromViper(v)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// NewLogger builds the command logger. Records go to stderr so they never
// mix with command output; a terminal gets the pretty handler.
func NewLogger(cmd *cobra.Command) *slog.Logger {
	return logger.New(
		logger.WithDebug(Debug(cmd)),
		logger.WithPretty(IsTerminal(os.Stderr)),
		logger.WithWriter(os.Stderr),
	)
}

// IsTerminal reports whether f is attached to a terminal.
func IsTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

// AddStorageFlags registers the memory store flags on cmd.
func AddStorageFlags(cmd *cobra.Command, s *StorageFlagValues) {
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagStorageDriver, &s.Driver)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagSQLite, &s.SQLitePath)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagPostgresDSN, &s.PostgresDSN)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagQdrantTarget, &s.QdrantTarget)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagEmbeddingProv, &s.EmbeddingProvider)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagEmbeddingTgt, &s.EmbeddingTarget)
	config.AddStringFlag(cmd, config.StorageFlags, config.FlagEmbeddingModel, &s.EmbeddingModel)
	config.AddUintFlag(cmd, config.StorageFlags, config.FlagEmbeddingDims, &s.EmbeddingDimensions)
}

// StorageFlagValues receives the storage flags. The values only matter to
// cobra; the resolved config is read back through viper.
type StorageFlagValues struct {
	Driver              string
	SQLitePath          string
	PostgresDSN         string
	QdrantTarget        string
	EmbeddingProvider   string
	EmbeddingTarget     string
	EmbeddingModel      string
	EmbeddingDimensions uint
}

// AgentFlagValues receives the agent flags.
type AgentFlagValues struct {
	CompletionProvider  string
	CompletionTarget    string
	CompletionModel     string
	CompactionThreshold uint
	TopK                uint
	KafkaBrokers        string
}

// AddAgentFlags registers the agent flags on cmd.
func AddAgentFlags(cmd *cobra.Command, a *AgentFlagValues) {
	config.AddStringFlag(cmd, config.AgentFlags, config.FlagCompletionProv, &a.CompletionProvider)
	config.AddStringFlag(cmd, config.AgentFlags, config.FlagCompletionTgt, &a.CompletionTarget)
	config.AddStringFlag(cmd, config.AgentFlags, config.FlagCompletionModel, &a.CompletionModel)
	config.AddUintFlag(cmd, config.AgentFlags, config.FlagThreshold, &a.CompactionThreshold)
	config.AddUintFlag(cmd, config.AgentFlags, config.FlagTopK, &a.TopK)
	config.AddStringFlag(cmd, config.AgentFlags, config.FlagKafkaBrokers, &a.KafkaBrokers)
}
