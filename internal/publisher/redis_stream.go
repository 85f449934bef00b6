package publisher

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/fortuna/concordia/internal/store"
)

// RedisStreamPublisher publishes events to Redis streams for the
// downstream ranking engine.
type RedisStreamPublisher struct {
	client *redis.Client
}

// NewRedisStreamPublisher creates a new Redis stream publisher from existing client
func NewRedisStreamPublisher(client *redis.Client) *RedisStreamPublisher {
	return &RedisStreamPublisher{
		client: client,
	}
}

// PublishRunSummary publishes a finished import run to the stream. The
// ranking engine uses it to know which providers have fresh games.
func (rsp *RedisStreamPublisher) PublishRunSummary(ctx context.Context, run *store.ImportRun) error {
	streamName := "games.imports.youth_soccer"

	data, err := json.Marshal(run)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}

// PublishMatchedGame publishes a fully matched game to the stream.
// Partial and failed games are withheld; the ranking engine only wants
// games with both sides resolved.
func (rsp *RedisStreamPublisher) PublishMatchedGame(ctx context.Context, game *store.Game) error {
	if game.Status != store.MatchStatusMatched {
		return nil
	}

	streamName := "games.matched.youth_soccer"

	data, err := json.Marshal(game)
	if err != nil {
		return err
	}

	return rsp.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"data":      string(data),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
}
