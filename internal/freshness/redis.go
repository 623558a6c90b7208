package freshness

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisKey is the hash holding the registry mirror.
const DefaultRedisKey = "vendorrisk:freshness"

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// URL is the Redis connection URL (e.g., "redis://localhost:6379/0")
	URL string
	// Key is the hash key (defaults to "vendorrisk:freshness")
	Key string
}

// saveMax raises each field to the given stamp but never lowers it, so
// instances sharing the hash cannot roll back each other's stamps.
var saveMax = redis.NewScript(`
for i = 1, #ARGV, 2 do
  local current = tonumber(redis.call('HGET', KEYS[1], ARGV[i]) or '0')
  if tonumber(ARGV[i + 1]) > current then
    redis.call('HSET', KEYS[1], ARGV[i], ARGV[i + 1])
  end
end
return #ARGV / 2
`)

// RedisPersister mirrors the registry into one Redis hash. The hash is a
// shared durable copy only: a registry reads it once in Load, so touches made
// by another instance afterwards are not seen and cross-instance freshness is
// not provided.
type RedisPersister struct {
	client *redis.Client
	key    string
}

// NewRedisPersister connects to Redis and verifies the connection.
func NewRedisPersister(cfg RedisConfig) (*RedisPersister, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return NewRedisPersisterFromClient(client, cfg.Key), nil
}

// NewRedisPersisterFromClient wraps an existing client.
func NewRedisPersisterFromClient(client *redis.Client, key string) *RedisPersister {
	if key == "" {
		key = DefaultRedisKey
	}
	slog.Info("freshness registry mirrored to redis", "key", key)
	return &RedisPersister{client: client, key: key}
}

// Load reads every field of the hash. Fields that are not integers are skipped.
func (p *RedisPersister) Load(ctx context.Context) (map[string]int64, error) {
	fields, err := p.client.HGetAll(ctx, p.key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read freshness hash: %w", err)
	}

	stamps := make(map[string]int64, len(fields))
	for key, raw := range fields {
		stamp, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			slog.Warn("skipping malformed freshness stamp", "key", key, "value", raw)
			continue
		}
		stamps[key] = stamp
	}
	return stamps, nil
}

// Save merges stamps into the hash, keeping the larger value per field.
func (p *RedisPersister) Save(ctx context.Context, stamps map[string]int64) error {
	if len(stamps) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(stamps)*2)
	for key, stamp := range stamps {
		args = append(args, key, stamp)
	}
	if err := saveMax.Run(ctx, p.client, []string{p.key}, args...).Err(); err != nil {
		return fmt.Errorf("failed to write freshness hash: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (p *RedisPersister) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
