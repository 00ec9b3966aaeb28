package config

const (
	defaultStorageDriver          = "sqlite"
	defaultQdrantTarget           = "localhost:6334"
	defaultQdrantCollectionPrefix = "engram"

	defaultEmbeddingProvider   = "ollama"
	defaultEmbeddingTarget     = "http://localhost:11434"
	defaultEmbeddingModel      = "embeddinggemma"
	defaultEmbeddingDimensions = 768

	defaultCompletionProvider  = "openai"
	defaultCompletionTarget    = "https://api.openai.com/v1"
	defaultCompletionModel     = "gpt-4o-mini"
	defaultCompletionAPIKeyEnv = "OPENAI_API_KEY"
	defaultCompletionTimeout   = "60s"

	defaultCompactionThreshold   = 15
	defaultRetainWindow          = 5
	defaultTopK                  = 5
	defaultMaxPromptFacts        = 5
	defaultExtractionTemperature = 0.3
	defaultExtractionMaxTokens   = 6000
	defaultCompactionTimeout     = "2m"

	defaultMaxIterations = 20

	defaultAPIListen = ":8081"

	defaultKafkaTopic = "engram.memory"
)

// NewDefaultConfig returns a Config with sane defaults for all fields.
// This is the single source of truth for default values.
func NewDefaultConfig() *Config {
	return &Config{
		Version: CurrentV,
		Storage: StorageConfig{
			Driver:                 defaultStorageDriver,
			QdrantTarget:           defaultQdrantTarget,
			QdrantCollectionPrefix: defaultQdrantCollectionPrefix,
		},
		Embedding: EmbeddingConfig{
			Provider:   defaultEmbeddingProvider,
			Target:     defaultEmbeddingTarget,
			Model:      defaultEmbeddingModel,
			Dimensions: defaultEmbeddingDimensions,
		},
		Completion: CompletionConfig{
			Provider:  defaultCompletionProvider,
			Target:    defaultCompletionTarget,
			Model:     defaultCompletionModel,
			APIKeyEnv: defaultCompletionAPIKeyEnv,
			Timeout:   defaultCompletionTimeout,
		},
		Memory: MemoryConfig{
			CompactionThreshold:   defaultCompactionThreshold,
			RetainWindow:          defaultRetainWindow,
			TopK:                  defaultTopK,
			MaxPromptFacts:        defaultMaxPromptFacts,
			ExtractionTemperature: defaultExtractionTemperature,
			ExtractionMaxTokens:   defaultExtractionMaxTokens,
			CompactionTimeout:     defaultCompactionTimeout,
		},
		Agent: AgentConfig{
			MaxIterations: defaultMaxIterations,
		},
		API: APIConfig{
			Listen: defaultAPIListen,
		},
		EventStream: EventStreamConfig{
			KafkaTopic: defaultKafkaTopic,
		},
	}
}
