package freshness

import (
	"context"
	"fmt"
)

// Persister mirrors the registry to durable storage.
type Persister interface {
	// Load returns the persisted stamps. A mirror that does not exist yet is
	// reported as an empty map and a nil error.
	Load(ctx context.Context) (map[string]int64, error)

	// Save writes the full set of stamps.
	Save(ctx context.Context, stamps map[string]int64) error

	Close() error
}

// Backend names accepted by NewPersister.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
)

// Config selects the persistence backend.
type Config struct {
	// Backend is "file" (default) or "redis".
	Backend string
	// Path is the JSON file used by the file backend.
	Path  string
	Redis RedisConfig
}

// NewPersister builds the persister named by cfg.Backend.
func NewPersister(cfg Config) (Persister, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFilePersister(cfg.Path), nil
	case BackendRedis:
		return NewRedisPersister(cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown freshness backend: %s (valid: file, redis)", cfg.Backend)
	}
}
