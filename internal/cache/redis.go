package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/concordia/internal/store"
)

// RedisCache handles caching and fast state storage
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new Redis cache connection
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	return &RedisCache{
		client: client,
	}, nil
}

// Close closes the Redis connection
func (rc *RedisCache) Close() error {
	return rc.client.Close()
}

// Client returns the underlying Redis client
func (rc *RedisCache) Client() *redis.Client {
	return rc.client
}

// HealthCheck pings Redis to verify connection
func (rc *RedisCache) HealthCheck(ctx context.Context) error {
	return rc.client.Ping(ctx).Err()
}

// SetLatestRun stores the most recent run log for a provider so the
// dashboard can read it without hitting Postgres.
func (rc *RedisCache) SetLatestRun(ctx context.Context, run *store.ImportRun) error {
	data, err := json.Marshal(run)
	if err != nil {
		return err
	}
	key := fmt.Sprintf("concordia:runs:latest:%s", run.ProviderID)
	return rc.client.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetLatestRun retrieves the most recent cached run log for a provider.
// Returns nil when nothing is cached.
func (rc *RedisCache) GetLatestRun(ctx context.Context, providerID string) (*store.ImportRun, error) {
	key := fmt.Sprintf("concordia:runs:latest:%s", providerID)
	data, err := rc.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var run store.ImportRun
	if err := json.Unmarshal([]byte(data), &run); err != nil {
		return nil, err
	}
	return &run, nil
}

// Delete removes a key
func (rc *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return rc.client.Del(ctx, keys...).Err()
}
