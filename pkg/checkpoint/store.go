package checkpoint

import "context"

// Store is the C1 checkpoint contract: a single optional signed integer
// per sync, created lazily on first write, read at startup, and removed
// at teardown.
type Store interface {
	// Validate checks the backend is usable (directory exists and is
	// read/writable, or the KV store is reachable) and returns a
	// descriptive error otherwise. Called once at startup; failures are
	// fatal per the error-handling design.
	Validate(ctx context.Context) error

	// Get returns the current checkpoint value, or nil if none has ever
	// been set.
	Get(ctx context.Context) (*int64, error)

	// Set overwrites the checkpoint value. Never called with a nil
	// value — callers must check before calling.
	Set(ctx context.Context, value int64) error

	// Teardown removes the backing file or key, tolerating it already
	// being absent.
	Teardown(ctx context.Context) error
}
