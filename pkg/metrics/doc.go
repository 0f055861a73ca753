/*
Package metrics provides Prometheus metrics collection and exposition for pgsyncd.

It defines and registers per-sync counters, gauges, and histograms covering the
producer (replication lag, NOTIFY/WAL event counts), the queue (depth,
enqueued total), the checkpoint (last committed txid), the consumer
(resolve/execute latency, documents indexed/deleted, bulk errors), and HA
leader election. Every metric except WALChangesTotal (labeled by "op")
carries a "sync" label so one process running multiple sync documents
reports them separately; ResolveDuration, ExecuteDuration and
BulkErrorsTotal fill that label with the index name.

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                            │
	│  Producer        Queue         Checkpoint      Consumer    │
	│  replication_lag queue_depth   checkpoint_value resolve/   │
	│  notify_events   enqueued_total                execute_*   │
	│  wal_changes                                   indexed/    │
	│                                                 deleted     │
	│       │              │               │             │       │
	│       └──────────────┴───────────────┴─────────────┘       │
	│                          │                                  │
	│                 Prometheus Registry                         │
	│                 (MustRegister at init)                      │
	│                          │                                  │
	│                   GET /metrics                              │
	└────────────────────────────────────────────────────────────┘

Collector polls a StatsSource (cmd/pgsyncd adapts *orchestrator.Orchestrator
to it, converting orchestrator.Snapshot to the package's own Snapshot type
so this package never imports pkg/orchestrator directly and cycles back
through pkg/resolver/pkg/executor/pkg/searchindex importing pkg/metrics)
on a fixed interval and republishes its running counters (queue depth,
checkpoint value, documents indexed/deleted) as the corresponding
gauges/counters above. ResolveDuration, ExecuteDuration, WALChangesTotal,
and BulkErrorsTotal are recorded directly by pkg/resolver, pkg/executor,
pkg/querybuilder, and pkg/searchindex at the point the work happens; the
two durations are measured with the Timer helper. cmd/pgsyncd/sync.go starts the /metrics, /health,
/ready, and /live HTTP server and registers the source/queue/index
components as each dependency comes up.

health.go's HealthChecker is domain-agnostic: callers register the
components they actually run (source connection, queue, index) and the
/health, /ready, and /live HTTP handlers aggregate them the same way
regardless of what component names are in use.
*/
package metrics
