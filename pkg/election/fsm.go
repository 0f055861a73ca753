package election

import (
	"io"

	"github.com/hashicorp/raft"
)

// noopFSM satisfies raft.FSM without applying any state. Leadership is
// the only thing this package's callers care about; the log itself
// carries no commands.
type noopFSM struct{}

func (noopFSM) Apply(*raft.Log) interface{} { return nil }

func (noopFSM) Snapshot() (raft.FSMSnapshot, error) { return noopSnapshot{}, nil }

func (noopFSM) Restore(rc io.ReadCloser) error { return rc.Close() }

type noopSnapshot struct{}

func (noopSnapshot) Persist(sink raft.SnapshotSink) error { return sink.Close() }

func (noopSnapshot) Release() {}
