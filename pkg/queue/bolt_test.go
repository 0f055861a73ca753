package queue

import (
	"context"
	"path/filepath"
	"testing"

	bolt "go.etcd.io/bbolt"

	"github.com/cuemby/pgsyncd/pkg/types"
)

func openTestDB(t *testing.T) *bolt.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "queue.db")
	db, err := bolt.Open(path, 0o600, nil)
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func samplePayload(id int) types.Payload {
	return types.Payload{
		TgOp:   types.OpInsert,
		Schema: "public",
		Table:  "book",
		New:    types.Row{"id": id},
	}
}

func TestBoltQueuePushPopPreservesOrder(t *testing.T) {
	db := openTestDB(t)
	q, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	entries := []types.Payload{samplePayload(1), samplePayload(2), samplePayload(3)}
	if err := q.Push(ctx, entries); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	popped, err := q.Pop(ctx, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(popped) != 2 || popped[0].New["id"] != float64(1) || popped[1].New["id"] != float64(2) {
		t.Fatalf("unexpected pop order: %+v", popped)
	}

	rest, err := q.Pop(ctx, 10)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rest) != 1 || rest[0].New["id"] != float64(3) {
		t.Fatalf("expected one remaining entry, got %+v", rest)
	}
}

func TestBoltQueuePopOnEmptyReturnsEmpty(t *testing.T) {
	db := openTestDB(t)
	q, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	popped, err := q.Pop(context.Background(), 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(popped) != 0 {
		t.Fatalf("expected no entries, got %+v", popped)
	}
}

func TestBoltQueueSizeTracksPushAndPop(t *testing.T) {
	db := openTestDB(t)
	q, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
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

	if _, err := q.Pop(ctx, 1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	size, err = q.Size(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 1 {
		t.Fatalf("expected size 1 after pop, got %d", size)
	}
}

func TestBoltQueueDeleteRemovesNamespace(t *testing.T) {
	db := openTestDB(t)
	q, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	ctx := context.Background()

	if err := q.Push(ctx, []types.Payload{samplePayload(1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Delete(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Delete tolerates an already-empty namespace, and a fresh queue
	// reopens the bucket cleanly.
	if err := q.Delete(ctx); err != nil {
		t.Fatalf("expected repeated delete to be a no-op, got %v", err)
	}
	q2, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error reopening queue: %v", err)
	}
	size, err := q2.Size(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected empty queue after delete, got size %d", size)
	}
}

func TestBoltQueuePushEmptyIsNoop(t *testing.T) {
	db := openTestDB(t)
	q, err := NewBoltQueue(db, "mydb_myindex")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := q.Push(context.Background(), nil); err != nil {
		t.Fatalf("expected pushing no entries to succeed, got %v", err)
	}
}
