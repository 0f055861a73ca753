package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/pgsyncd/pkg/log"
)

// redisClient is the narrow slice of *redis.Client this package depends
// on. Depending on this instead of redis.Cmdable keeps the surface small
// enough to fake in tests without a live server.
type redisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration int64) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Ping(ctx context.Context) *redis.StatusCmd
}

// redisClientAdapter adapts *redis.Client's Set (which takes a
// time.Duration) to the int64-expiration shape redisClient declares, so
// callers never need to import time just to pass 0.
type redisClientAdapter struct {
	*redis.Client
}

func (a redisClientAdapter) Set(ctx context.Context, key string, value interface{}, _ int64) *redis.StatusCmd {
	return a.Client.Set(ctx, key, value, 0)
}

// RedisStore persists the checkpoint under a single namespaced key,
// shared across every replica racing for leadership on the same sync
// name. Namespace defaults to "pgsyncd" when empty, matching the
// original implementation's default.
type RedisStore struct {
	client    redisClient
	namespace string
	name      string
}

// NewRedisStore wraps an existing *redis.Client for sync name under
// namespace.
func NewRedisStore(client *redis.Client, namespace, name string) *RedisStore {
	if namespace == "" {
		namespace = "pgsyncd"
	}
	return &RedisStore{client: redisClientAdapter{client}, namespace: namespace, name: name}
}

func (r *RedisStore) key() string {
	return fmt.Sprintf("%s:%s", r.namespace, r.name)
}

func (r *RedisStore) Validate(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis checkpoint store unreachable: %w", err)
	}
	return nil
}

func (r *RedisStore) Get(ctx context.Context) (*int64, error) {
	result, err := r.client.Get(ctx, r.key()).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading redis checkpoint key %q: %w", r.key(), err)
	}
	value, err := strconv.ParseInt(result, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing redis checkpoint key %q: %w", r.key(), err)
	}
	return &value, nil
}

func (r *RedisStore) Set(ctx context.Context, value int64) error {
	if err := r.client.Set(ctx, r.key(), strconv.FormatInt(value, 10), 0).Err(); err != nil {
		return fmt.Errorf("writing redis checkpoint key %q: %w", r.key(), err)
	}
	return nil
}

func (r *RedisStore) Teardown(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key()).Err(); err != nil {
		log.WithComponent("checkpoint").Warn().Err(err).Str("key", r.key()).Msg("deleting checkpoint key during teardown failed")
	}
	return nil
}
