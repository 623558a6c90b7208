//go:build integration

package integration

import (
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vendorrisk/internal/freshness"
)

func newRedisRegistry(t *testing.T, key string, now int64) *freshness.Registry {
	t.Helper()
	p, err := freshness.NewRedisPersister(freshness.RedisConfig{URL: redisURL, Key: key})
	require.NoError(t, err)
	return freshness.New(p, freshness.WithClock(func() int64 { return now }))
}

func redisClient(t *testing.T) *redis.Client {
	t.Helper()
	opts, err := redis.ParseURL(redisURL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func TestRedisPersister_SurvivesRestart(t *testing.T) {
	const key = "test:freshness:restart"

	first := newRedisRegistry(t, key, 1_000)
	first.TouchAll("client:c1:vendors", "company:all:users")
	require.NoError(t, first.Close())

	second := newRedisRegistry(t, key, 2_000)
	second.Load(testCtx)
	defer second.Close()

	stamp, ok := second.Get("client:c1:vendors")
	require.True(t, ok)
	assert.Equal(t, int64(1_000), stamp)
	assert.Equal(t, 2, second.Len())
}

func TestRedisPersister_NeverLowersSharedStamp(t *testing.T) {
	const key = "test:freshness:max"
	client := redisClient(t)

	// Another instance already recorded a newer mutation.
	require.NoError(t, client.HSet(testCtx, key, "vendor:v1:questionnaire", 5_000).Err())

	stale := newRedisRegistry(t, key, 3_000)
	stale.Touch("vendor:v1:questionnaire")
	stale.Touch("vendor:v1:stats")
	require.NoError(t, stale.Close())

	fields, err := client.HGetAll(testCtx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "5000", fields["vendor:v1:questionnaire"])
	assert.Equal(t, "3000", fields["vendor:v1:stats"])
}

func TestRedisPersister_SkipsMalformedStamps(t *testing.T) {
	const key = "test:freshness:malformed"
	client := redisClient(t)
	require.NoError(t, client.HSet(testCtx, key, "good", 42, "bad", "not-a-number").Err())

	p, err := freshness.NewRedisPersister(freshness.RedisConfig{URL: redisURL, Key: key})
	require.NoError(t, err)
	defer p.Close()

	stamps, err := p.Load(testCtx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{"good": 42}, stamps)
}

func TestRedisPersister_ReadOnlyAtLoad(t *testing.T) {
	const key = "test:freshness:load-once"

	a := newRedisRegistry(t, key, 1_000)
	a.Load(testCtx)
	b := newRedisRegistry(t, key, 1_000)
	b.Load(testCtx)
	defer b.Close()

	a.Touch("company:all:users")
	require.NoError(t, a.Close())

	fields, err := redisClient(t).HGetAll(testCtx, key).Result()
	require.NoError(t, err)
	assert.Equal(t, "1000", fields["company:all:users"])

	// b loaded before a's write and keeps its own view until it reloads.
	_, ok := b.Get("company:all:users")
	assert.False(t, ok)

	c := newRedisRegistry(t, key, 2_000)
	c.Load(testCtx)
	defer c.Close()
	stamp, ok := c.Get("company:all:users")
	require.True(t, ok)
	assert.Equal(t, int64(1_000), stamp)
}
