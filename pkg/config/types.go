package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config represents the persistent engram configuration stored as config.toml
// in the .engram/ directory. The TOML layout uses sections for logical grouping.
type Config struct {
	Version     int               `toml:"version"`
	Storage     StorageConfig     `toml:"storage"`
	Embedding   EmbeddingConfig   `toml:"embedding"`
	Completion  CompletionConfig  `toml:"completion"`
	Memory      MemoryConfig      `toml:"memory"`
	Agent       AgentConfig       `toml:"agent"`
	API         APIConfig         `toml:"api"`
	EventStream EventStreamConfig `toml:"eventstream"`
}

// StorageConfig selects and configures the memory record backend.
type StorageConfig struct {
	Driver                 string `toml:"driver,omitempty"`
	SQLitePath             string `toml:"sqlite_path,omitempty"`
	PostgresDSN            string `toml:"postgres_dsn,omitempty"`
	QdrantTarget           string `toml:"qdrant_target,omitempty"`
	QdrantAPIKeyEnv        string `toml:"qdrant_api_key_env,omitempty"`
	QdrantCollectionPrefix string `toml:"qdrant_collection_prefix,omitempty"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider   string `toml:"provider,omitempty"`
	Target     string `toml:"target,omitempty"`
	Model      string `toml:"model,omitempty"`
	Dimensions uint   `toml:"dimensions,omitempty"`
	APIKeyEnv  string `toml:"api_key_env,omitempty"`
}

// CompletionConfig holds chat completion provider settings.
type CompletionConfig struct {
	Provider  string `toml:"provider,omitempty"`
	Target    string `toml:"target,omitempty"`
	Model     string `toml:"model,omitempty"`
	APIKeyEnv string `toml:"api_key_env,omitempty"`
	Timeout   string `toml:"timeout,omitempty"`
}

// TimeoutDuration parses Timeout, falling back to the default on bad input.
func (c CompletionConfig) TimeoutDuration() time.Duration {
	return parseDuration(c.Timeout, defaultCompletionTimeout)
}

// MemoryConfig tunes compaction, extraction, and retrieval.
type MemoryConfig struct {
	CompactionThreshold   uint    `toml:"compaction_threshold,omitempty"`
	RetainWindow          uint    `toml:"retain_window,omitempty"`
	TopK                  uint    `toml:"top_k,omitempty"`
	MaxPromptFacts        uint    `toml:"max_prompt_facts,omitempty"`
	ExtractionTemperature float64 `toml:"extraction_temperature,omitempty"`
	ExtractionMaxTokens   uint    `toml:"extraction_max_tokens,omitempty"`
	CompactionTimeout     string  `toml:"compaction_timeout,omitempty"`
}

// CompactionTimeoutDuration parses CompactionTimeout, falling back to the
// default on bad input.
func (m MemoryConfig) CompactionTimeoutDuration() time.Duration {
	return parseDuration(m.CompactionTimeout, defaultCompactionTimeout)
}

// AgentConfig holds settings for the tool-calling loop.
type AgentConfig struct {
	MaxIterations uint `toml:"max_iterations,omitempty"`
}

// APIConfig holds API server settings.
type APIConfig struct {
	Listen string `toml:"listen,omitempty"`
}

// EventStreamConfig configures the optional Kafka publisher. An empty broker
// list disables publishing.
type EventStreamConfig struct {
	KafkaBrokers string `toml:"kafka_brokers,omitempty"`
	KafkaTopic   string `toml:"kafka_topic,omitempty"`
}

// Brokers splits KafkaBrokers on commas, dropping blanks.
func (e EventStreamConfig) Brokers() []string {
	var out []string
	for _, b := range strings.Split(e.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func parseDuration(s, fallback string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	d, _ := time.ParseDuration(fallback)
	return d
}

// configKeyInfo maps a user-facing dotted key name to a getter and setter on *Config.
type configKeyInfo struct {
	get func(c *Config) string
	set func(c *Config, v string) error
}

func stringKey(field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error { *field(c) = v; return nil },
	}
}

func durationKey(name string, field func(c *Config) *string) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string { return *field(c) },
		set: func(c *Config, v string) error {
			if _, err := time.ParseDuration(v); err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = v
			return nil
		},
	}
}

func uintKey(name string, field func(c *Config) *uint) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatUint(uint64(*field(c)), 10)
		},
		set: func(c *Config, v string) error {
			n, err := strconv.ParseUint(v, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = uint(n)
			return nil
		},
	}
}

func floatKey(name string, field func(c *Config) *float64) configKeyInfo {
	return configKeyInfo{
		get: func(c *Config) string {
			if *field(c) == 0 {
				return ""
			}
			return strconv.FormatFloat(*field(c), 'f', -1, 64)
		},
		set: func(c *Config, v string) error {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %w", name, err)
			}
			*field(c) = f
			return nil
		},
	}
}

// configKeys is the authoritative map of all supported config keys.
// Keys use dotted notation matching the TOML section structure.
var configKeys = map[string]configKeyInfo{
	"storage.driver":                   stringKey(func(c *Config) *string { return &c.Storage.Driver }),
	"storage.sqlite_path":              stringKey(func(c *Config) *string { return &c.Storage.SQLitePath }),
	"storage.postgres_dsn":             stringKey(func(c *Config) *string { return &c.Storage.PostgresDSN }),
	"storage.qdrant_target":            stringKey(func(c *Config) *string { return &c.Storage.QdrantTarget }),
	"storage.qdrant_api_key_env":       stringKey(func(c *Config) *string { return &c.Storage.QdrantAPIKeyEnv }),
	"storage.qdrant_collection_prefix": stringKey(func(c *Config) *string { return &c.Storage.QdrantCollectionPrefix }),

	"embedding.provider":    stringKey(func(c *Config) *string { return &c.Embedding.Provider }),
	"embedding.target":      stringKey(func(c *Config) *string { return &c.Embedding.Target }),
	"embedding.model":       stringKey(func(c *Config) *string { return &c.Embedding.Model }),
	"embedding.dimensions":  uintKey("embedding.dimensions", func(c *Config) *uint { return &c.Embedding.Dimensions }),
	"embedding.api_key_env": stringKey(func(c *Config) *string { return &c.Embedding.APIKeyEnv }),

	"completion.provider":    stringKey(func(c *Config) *string { return &c.Completion.Provider }),
	"completion.target":      stringKey(func(c *Config) *string { return &c.Completion.Target }),
	"completion.model":       stringKey(func(c *Config) *string { return &c.Completion.Model }),
	"completion.api_key_env": stringKey(func(c *Config) *string { return &c.Completion.APIKeyEnv }),
	"completion.timeout":     durationKey("completion.timeout", func(c *Config) *string { return &c.Completion.Timeout }),

	"memory.compaction_threshold":   uintKey("memory.compaction_threshold", func(c *Config) *uint { return &c.Memory.CompactionThreshold }),
	"memory.retain_window":          uintKey("memory.retain_window", func(c *Config) *uint { return &c.Memory.RetainWindow }),
	"memory.top_k":                  uintKey("memory.top_k", func(c *Config) *uint { return &c.Memory.TopK }),
	"memory.max_prompt_facts":       uintKey("memory.max_prompt_facts", func(c *Config) *uint { return &c.Memory.MaxPromptFacts }),
	"memory.extraction_temperature": floatKey("memory.extraction_temperature", func(c *Config) *float64 { return &c.Memory.ExtractionTemperature }),
	"memory.extraction_max_tokens":  uintKey("memory.extraction_max_tokens", func(c *Config) *uint { return &c.Memory.ExtractionMaxTokens }),
	"memory.compaction_timeout":     durationKey("memory.compaction_timeout", func(c *Config) *string { return &c.Memory.CompactionTimeout }),

	"agent.max_iterations": uintKey("agent.max_iterations", func(c *Config) *uint { return &c.Agent.MaxIterations }),

	"api.listen": stringKey(func(c *Config) *string { return &c.API.Listen }),

	"eventstream.kafka_brokers": stringKey(func(c *Config) *string { return &c.EventStream.KafkaBrokers }),
	"eventstream.kafka_topic":   stringKey(func(c *Config) *string { return &c.EventStream.KafkaTopic }),
}

// orderedKeys lists configKeys in the order of the TOML section layout.
var orderedKeys = []string{
	"storage.driver",
	"storage.sqlite_path",
	"storage.postgres_dsn",
	"storage.qdrant_target",
	"storage.qdrant_api_key_env",
	"storage.qdrant_collection_prefix",
	"embedding.provider",
	"embedding.target",
	"embedding.model",
	"embedding.dimensions",
	"embedding.api_key_env",
	"completion.provider",
	"completion.target",
	"completion.model",
	"completion.api_key_env",
	"completion.timeout",
	"memory.compaction_threshold",
	"memory.retain_window",
	"memory.top_k",
	"memory.max_prompt_facts",
	"memory.extraction_temperature",
	"memory.extraction_max_tokens",
	"memory.compaction_timeout",
	"agent.max_iterations",
	"api.listen",
	"eventstream.kafka_brokers",
	"eventstream.kafka_topic",
}
