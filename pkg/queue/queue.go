package queue

import (
	"context"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// Queue is the C2 event queue contract: a durable FIFO of Payloads
// namespaced by sync name, safe for concurrent producers and a pool of
// consumers (see the concurrency model's "queue is the only required
// synchronization point").
type Queue interface {
	// Push appends entries to the tail of the queue, in order.
	Push(ctx context.Context, entries []types.Payload) error

	// Pop removes and returns up to max entries from the head of the
	// queue, in FIFO order. Non-blocking: returns whatever is available
	// when fewer than max entries are queued, and an empty slice (not an
	// error) when the queue is empty.
	Pop(ctx context.Context, max int) ([]types.Payload, error)

	// Size returns the number of entries currently queued.
	Size(ctx context.Context) (int, error)

	// Delete removes the entire backing namespace for this sync. Only
	// called during teardown.
	Delete(ctx context.Context) error
}
