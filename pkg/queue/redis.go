package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// redisListClient is the narrow slice of *redis.Client the RedisQueue
// depends on, kept small so tests can fake it without a live server.
type redisListClient interface {
	RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd
	LPopCount(ctx context.Context, key string, count int) *redis.StringSliceCmd
	LLen(ctx context.Context, key string) *redis.IntCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisQueue is the shared-across-replicas queue backend: entries for
// one sync live in a single Redis list, keyed by the sync name, pushed
// on the right and popped from the left to preserve FIFO order.
type RedisQueue struct {
	client   redisListClient
	syncName string
}

// NewRedisQueue wraps an existing *redis.Client for syncName.
func NewRedisQueue(client *redis.Client, syncName string) *RedisQueue {
	return &RedisQueue{client: client, syncName: syncName}
}

func (q *RedisQueue) key() string {
	return "pgsyncd:queue:" + q.syncName
}

func (q *RedisQueue) Push(ctx context.Context, entries []types.Payload) error {
	if len(entries) == 0 {
		return nil
	}
	values := make([]interface{}, len(entries))
	for i, entry := range entries {
		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("marshaling queue entry: %w", err)
		}
		values[i] = data
	}
	if err := q.client.RPush(ctx, q.key(), values...).Err(); err != nil {
		return fmt.Errorf("pushing to redis queue %q: %w", q.key(), err)
	}
	return nil
}

func (q *RedisQueue) Pop(ctx context.Context, max int) ([]types.Payload, error) {
	if max <= 0 {
		return nil, nil
	}
	raw, err := q.client.LPopCount(ctx, q.key(), max).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("popping from redis queue %q: %w", q.key(), err)
	}
	out := make([]types.Payload, 0, len(raw))
	for _, item := range raw {
		var entry types.Payload
		if err := json.Unmarshal([]byte(item), &entry); err != nil {
			return nil, fmt.Errorf("unmarshaling queue entry: %w", err)
		}
		out = append(out, entry)
	}
	return out, nil
}

func (q *RedisQueue) Size(ctx context.Context) (int, error) {
	n, err := q.client.LLen(ctx, q.key()).Result()
	if err != nil {
		return 0, fmt.Errorf("sizing redis queue %q: %w", q.key(), err)
	}
	return int(n), nil
}

func (q *RedisQueue) Delete(ctx context.Context) error {
	if err := q.client.Del(ctx, q.key()).Err(); err != nil {
		return fmt.Errorf("deleting redis queue %q: %w", q.key(), err)
	}
	return nil
}
