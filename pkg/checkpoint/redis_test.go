package checkpoint

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

// fakeRedisClient is an in-memory stand-in for redisClient, letting the
// store's logic be tested without a live Redis server.
type fakeRedisClient struct {
	data      map[string]string
	pingErr   error
	forceNext error
}

func newFakeRedisClient() *fakeRedisClient {
	return &fakeRedisClient{data: make(map[string]string)}
}

func (f *fakeRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	cmd := redis.NewStringCmd(ctx)
	v, ok := f.data[key]
	if !ok {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	cmd.SetVal(v)
	return cmd
}

func (f *fakeRedisClient) Set(ctx context.Context, key string, value interface{}, _ int64) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.forceNext != nil {
		cmd.SetErr(f.forceNext)
		f.forceNext = nil
		return cmd
	}
	f.data[key] = value.(string)
	cmd.SetVal("OK")
	return cmd
}

func (f *fakeRedisClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := f.data[k]; ok {
			delete(f.data, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func (f *fakeRedisClient) Ping(ctx context.Context) *redis.StatusCmd {
	cmd := redis.NewStatusCmd(ctx)
	if f.pingErr != nil {
		cmd.SetErr(f.pingErr)
		return cmd
	}
	cmd.SetVal("PONG")
	return cmd
}

func newTestRedisStore(client redisClient, namespace, name string) *RedisStore {
	return &RedisStore{client: client, namespace: namespace, name: name}
}

func TestRedisStoreGetReturnsNilBeforeAnySet(t *testing.T) {
	store := newTestRedisStore(newFakeRedisClient(), "pgsyncd", "mydb_myindex")
	value, err := store.Get(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value != nil {
		t.Fatalf("expected nil checkpoint, got %d", *value)
	}
}

func TestRedisStoreSetThenGetRoundTrips(t *testing.T) {
	store := newTestRedisStore(newFakeRedisClient(), "pgsyncd", "mydb_myindex")
	ctx := context.Background()

	if err := store.Set(ctx, 99); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	value, err := store.Get(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if value == nil || *value != 99 {
		t.Fatalf("expected checkpoint 99, got %v", value)
	}
}

func TestRedisStoreKeyIncludesNamespaceAndName(t *testing.T) {
	store := newTestRedisStore(newFakeRedisClient(), "myns", "mydb_myindex")
	if got, want := store.key(), "myns:mydb_myindex"; got != want {
		t.Errorf("expected key %q, got %q", want, got)
	}
}

func TestRedisStoreTeardownToleratesMissingKey(t *testing.T) {
	store := newTestRedisStore(newFakeRedisClient(), "pgsyncd", "mydb_myindex")
	if err := store.Teardown(context.Background()); err != nil {
		t.Fatalf("expected teardown to tolerate missing key, got %v", err)
	}
}

func TestRedisStoreValidateSurfacesPingFailure(t *testing.T) {
	client := newFakeRedisClient()
	client.pingErr = context.DeadlineExceeded
	store := newTestRedisStore(client, "pgsyncd", "mydb_myindex")

	if err := store.Validate(context.Background()); err == nil {
		t.Fatal("expected validate to surface ping failure")
	}
}
