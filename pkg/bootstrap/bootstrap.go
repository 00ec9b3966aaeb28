// Package bootstrap assembles engram's components from a resolved config.
//
// Commands and the API server build a [Runtime] once at startup and close
// it on shutdown. [OpenMemory] builds only the memory layer for commands
// that never call a chat model; [Open] adds the completion client, fact
// extractor, compaction controller, tool registry and agent on top.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/papercomputeco/engram/pkg/agent"
	"github.com/papercomputeco/engram/pkg/compaction"
	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/engram/pkg/embeddings/utils"
	"github.com/papercomputeco/engram/pkg/eventstream"
	"github.com/papercomputeco/engram/pkg/eventstream/kafka"
	"github.com/papercomputeco/engram/pkg/eventstream/nop"
	"github.com/papercomputeco/engram/pkg/extract"
	"github.com/papercomputeco/engram/pkg/llm"
	"github.com/papercomputeco/engram/pkg/llm/provider"
	"github.com/papercomputeco/engram/pkg/logger"
	"github.com/papercomputeco/engram/pkg/memory"
	"github.com/papercomputeco/engram/pkg/session"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/tools"
)

const embeddingTimeout = 30 * time.Second

// Runtime holds the wired components. Fields beyond the memory layer are
// nil when built with OpenMemory.
type Runtime struct {
	Config *config.Config

	Driver   storage.Driver
	Embedder embeddings.Embedder
	Store    *memory.Store
	Composer *memory.Composer

	Client    llm.Client
	Extractor *extract.Extractor
	Publisher eventstream.Publisher
	Compactor *compaction.Controller
	Sessions  *session.Manager
	Tasks     *tools.TaskList
	Tools     *tools.Registry
	Agent     *agent.Agent

	logger  *slog.Logger
	closers []func() error
}

// OpenMemory builds the storage driver, embedder, Store and Composer.
func OpenMemory(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*Runtime, error) {
	log = logger.OrNop(log)
	rt := &Runtime{Config: cfg, logger: log}

	embedder, err := embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       envValue(cfg.Embedding.APIKeyEnv),
		Dimensions:   cfg.Embedding.Dimensions,
		Timeout:      embeddingTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("creating embedder: %w", err)
	}
	rt.Embedder = embedder

	driver, err := NewDriver(ctx, cfg.Storage, cfg.Embedding.Dimensions, configDir, log)
	if err != nil {
		_ = embedder.Close()
		return nil, err
	}
	rt.Driver = driver

	store, err := memory.NewStore(memory.Config{
		Driver:     driver,
		Embedder:   embedder,
		Dimensions: int(cfg.Embedding.Dimensions),
		Logger:     log,
	})
	if err != nil {
		_ = driver.Close()
		_ = embedder.Close()
		return nil, err
	}
	rt.Store = store

	// Store.Close releases the driver and the embedder.
	rt.closers = append(rt.closers, store.Close)
	rt.Composer = memory.NewComposer(store, log)

	return rt, nil
}

// Open builds the full runtime, including the agent.
func Open(ctx context.Context, cfg *config.Config, configDir string, log *slog.Logger) (*Runtime, error) {
	rt, err := OpenMemory(ctx, cfg, configDir, log)
	if err != nil {
		return nil, err
	}
	log = rt.logger

	if err := rt.openAgent(cfg, log); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

func (rt *Runtime) openAgent(cfg *config.Config, log *slog.Logger) error {
	client, err := provider.New(provider.Opts{
		Provider: cfg.Completion.Provider,
		BaseURL:  cfg.Completion.Target,
		APIKey:   envValue(cfg.Completion.APIKeyEnv),
		Model:    cfg.Completion.Model,
		Timeout:  cfg.Completion.TimeoutDuration(),
	})
	if err != nil {
		return fmt.Errorf("creating completion client: %w", err)
	}
	rt.Client = client
	rt.closers = append(rt.closers, client.Close)

	rt.Extractor, err = extract.New(extract.Config{
		Client:              client,
		Model:               cfg.Completion.Model,
		Temperature:         cfg.Memory.ExtractionTemperature,
		MaxTranscriptTokens: int(cfg.Memory.ExtractionMaxTokens),
		Logger:              log,
	})
	if err != nil {
		return err
	}

	rt.Publisher, err = newPublisher(cfg.EventStream, log)
	if err != nil {
		return err
	}
	rt.closers = append(rt.closers, rt.Publisher.Close)

	rt.Compactor, err = compaction.New(compaction.Config{
		Memory:       rt.Store,
		Extractor:    rt.Extractor,
		RetainWindow: int(cfg.Memory.RetainWindow),
		Timeout:      cfg.Memory.CompactionTimeoutDuration(),
		Publisher:    rt.Publisher,
		Logger:       log,
	})
	if err != nil {
		return err
	}

	rt.Sessions = session.NewManager(session.WithLogger(log))
	rt.closers = append(rt.closers, rt.Sessions.Close)

	rt.Tasks = tools.NewTaskList()
	rt.Tools = tools.NewRegistry(log)
	if err := tools.RegisterMemoryTools(rt.Tools, rt.Composer, rt.Store); err != nil {
		return err
	}
	if err := tools.RegisterTodoTools(rt.Tools, rt.Tasks); err != nil {
		return err
	}

	rt.Agent, err = agent.New(agent.Config{
		Client:              client,
		Model:               cfg.Completion.Model,
		Sessions:            rt.Sessions,
		Composer:            rt.Composer,
		Compactor:           rt.Compactor,
		Tools:               rt.Tools,
		CompactionThreshold: int(cfg.Memory.CompactionThreshold),
		TopK:                int(cfg.Memory.TopK),
		MaxPromptFacts:      int(cfg.Memory.MaxPromptFacts),
		MaxIterations:       int(cfg.Agent.MaxIterations),
		Logger:              log,
	})
	return err
}

func newPublisher(c config.EventStreamConfig, log *slog.Logger) (eventstream.Publisher, error) {
	brokers := c.Brokers()
	if len(brokers) == 0 {
		return nop.NewPublisher(), nil
	}

	p, err := kafka.NewPublisher(kafka.Config{
		Brokers: brokers,
		Topic:   c.KafkaTopic,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("creating kafka publisher: %w", err)
	}
	log.Info("publishing memory events to kafka", "brokers", brokers, "topic", c.KafkaTopic)
	return p, nil
}

// Close releases every component in reverse construction order.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

func envValue(name string) string {
	if name == "" {
		return ""
	}
	return os.Getenv(name)
}
