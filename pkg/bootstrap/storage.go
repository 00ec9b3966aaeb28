package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/papercomputeco/engram/pkg/config"
	"github.com/papercomputeco/engram/pkg/storage"
	"github.com/papercomputeco/engram/pkg/storage/inmemory"
	"github.com/papercomputeco/engram/pkg/storage/postgres"
	"github.com/papercomputeco/engram/pkg/storage/qdrant"
	"github.com/papercomputeco/engram/pkg/storage/sqlite"
)

// Storage driver names accepted in storage.driver.
const (
	DriverInMemory = "inmemory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverQdrant   = "qdrant"
)

// Drivers returns the supported storage driver names.
func Drivers() []string {
	return []string{DriverSQLite, DriverPostgres, DriverQdrant, DriverInMemory}
}

// NewDriver opens the storage backend selected in c.
func NewDriver(ctx context.Context, c config.StorageConfig, dimensions uint, configDir string, log *slog.Logger) (storage.Driver, error) {
	switch strings.ToLower(strings.TrimSpace(c.Driver)) {
	case DriverInMemory:
		log.Info("using in-memory storage")
		return inmemory.NewDriver(inmemory.WithDimensions(int(dimensions))), nil

	case DriverSQLite, "":
		path, err := ResolveSQLitePath(c.SQLitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
		driver, err := sqlite.NewDriver(sqlite.Config{DBPath: path, Dimensions: dimensions}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create SQLite storage: %w", err)
		}
		log.Info("using SQLite storage", "path", path)
		return driver, nil

	case DriverPostgres:
		driver, err := postgres.NewDriver(ctx, postgres.Config{DSN: c.PostgresDSN, Dimensions: dimensions}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create PostgreSQL storage: %w", err)
		}
		log.Info("using PostgreSQL storage")
		return driver, nil

	case DriverQdrant:
		var apiKey string
		if c.QdrantAPIKeyEnv != "" {
			apiKey = os.Getenv(c.QdrantAPIKeyEnv)
		}
		driver, err := qdrant.NewDriver(ctx, qdrant.Config{
			Target:           c.QdrantTarget,
			APIKey:           apiKey,
			UseTLS:           apiKey != "",
			CollectionPrefix: c.QdrantCollectionPrefix,
			Dimensions:       dimensions,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create Qdrant storage: %w", err)
		}
		log.Info("using Qdrant storage", "target", c.QdrantTarget)
		return driver, nil

	default:
		return nil, fmt.Errorf("unsupported storage driver: %s (available: %s)", c.Driver, strings.Join(Drivers(), ", "))
	}
}
