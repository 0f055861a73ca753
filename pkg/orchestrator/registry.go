package orchestrator

import (
	"fmt"
	"sync"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// Registry enforces spec.md §3/§5's "exactly one live sync instance per
// name per process" invariant. It replaces the Python original's
// metaclass singleton with an explicit, mutex-guarded map: registering
// a name is an operation on the registry, not a side effect of
// constructing an Orchestrator.
type Registry struct {
	mu      sync.Mutex
	running map[string]bool
}

// NewRegistry returns an empty process-wide registry. Callers typically
// keep a single instance for the process's lifetime.
func NewRegistry() *Registry {
	return &Registry{running: make(map[string]bool)}
}

// Acquire marks name as running, returning ErrAlreadyRunning if another
// Orchestrator for the same name is already registered.
func (r *Registry) Acquire(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running[name] {
		return fmt.Errorf("%w: %q", types.ErrAlreadyRunning, name)
	}
	r.running[name] = true
	return nil
}

// Release clears name, allowing a future Acquire to succeed again.
func (r *Registry) Release(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.running, name)
}
