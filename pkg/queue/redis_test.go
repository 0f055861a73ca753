package queue

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// fakeRedisListClient is an in-memory stand-in for redisListClient.
type fakeRedisListClient struct {
	lists map[string][]string
}

func newFakeRedisListClient() *fakeRedisListClient {
	return &fakeRedisListClient{lists: make(map[string][]string)}
}

func (f *fakeRedisListClient) RPush(ctx context.Context, key string, values ...interface{}) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	for _, v := range values {
		switch vv := v.(type) {
		case []byte:
			f.lists[key] = append(f.lists[key], string(vv))
		case string:
			f.lists[key] = append(f.lists[key], vv)
		}
	}
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedisListClient) LPopCount(ctx context.Context, key string, count int) *redis.StringSliceCmd {
	cmd := redis.NewStringSliceCmd(ctx)
	items := f.lists[key]
	if len(items) == 0 {
		cmd.SetErr(redis.Nil)
		return cmd
	}
	if count > len(items) {
		count = len(items)
	}
	popped := items[:count]
	f.lists[key] = items[count:]
	cmd.SetVal(popped)
	return cmd
}

func (f *fakeRedisListClient) LLen(ctx context.Context, key string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	cmd.SetVal(int64(len(f.lists[key])))
	return cmd
}

func (f *fakeRedisListClient) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	cmd := redis.NewIntCmd(ctx)
	var n int64
	for _, k := range keys {
		if _, ok := f.lists[k]; ok {
			delete(f.lists, k)
			n++
		}
	}
	cmd.SetVal(n)
	return cmd
}

func newTestRedisQueue(client redisListClient, syncName string) *RedisQueue {
	return &RedisQueue{client: client, syncName: syncName}
}

func TestRedisQueuePushPopPreservesOrder(t *testing.T) {
	q := newTestRedisQueue(newFakeRedisListClient(), "mydb_myindex")
	ctx := context.Background()

	if err := q.Push(ctx, []types.Payload{samplePayload(1), samplePayload(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	popped, err := q.Pop(ctx, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(popped) != 1 || popped[0].New["id"] != float64(1) {
		t.Fatalf("unexpected pop result: %+v", popped)
	}
}

func TestRedisQueuePopOnEmptyReturnsEmpty(t *testing.T) {
	q := newTestRedisQueue(newFakeRedisListClient(), "mydb_myindex")
	popped, err := q.Pop(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(popped) != 0 {
		t.Fatalf("expected no entries, got %+v", popped)
	}
}

func TestRedisQueueSizeAndDelete(t *testing.T) {
	q := newTestRedisQueue(newFakeRedisListClient(), "mydb_myindex")
	ctx := context.Background()

	if err := q.Push(ctx, []types.Payload{samplePayload(1), samplePayload(2)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	size, err := q.Size(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 2 {
		t.Fatalf("expected size 2, got %d", size)
	}

	if err := q.Delete(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	size, err = q.Size(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected size 0 after delete, got %d", size)
	}
}
