package orchestrator

import "sync/atomic"

// Stats accumulates the counts the status worker logs every
// LogInterval: doc writes to the index and the last checkpoint value
// observed. All fields are safe for concurrent use by the producer,
// consumer workers, and the status worker.
type Stats struct {
	indexed    atomic.Int64
	deleted    atomic.Int64
	checkpoint atomic.Int64
	queueSize  atomic.Int64
}

func (s *Stats) AddIndexed(n int) { s.indexed.Add(int64(n)) }
func (s *Stats) AddDeleted(n int) { s.deleted.Add(int64(n)) }

func (s *Stats) RecordCheckpoint(v int64) { s.checkpoint.Store(v) }
func (s *Stats) RecordQueueSize(n int)    { s.queueSize.Store(int64(n)) }

// Snapshot is a point-in-time read of Stats, suitable for logging or
// exporting as Prometheus gauges.
type Snapshot struct {
	Indexed    int64
	Deleted    int64
	Checkpoint int64
	QueueSize  int64
}

func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Indexed:    s.indexed.Load(),
		Deleted:    s.deleted.Load(),
		Checkpoint: s.checkpoint.Load(),
		QueueSize:  s.queueSize.Load(),
	}
}
