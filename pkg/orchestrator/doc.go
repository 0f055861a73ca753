/*
Package orchestrator implements C7: the component that wires the
checkpoint (C1), queue (C2), tree (C3), tailer (C4), resolver (C5),
executor (C6), and search index (C8) together into a running sync.

	   notify ──▶ producer ──▶ queue ──▶ consumer ──▶ resolver ──▶ executor ──▶ index
	(C4, LISTEN)    (buffer+flush)  (C2)    (pop+split)   (C5)         (C6)      (C8)
	                                           │
	                             slot drain ◀───┘ (C4, logical slot)
	                             status line (LOG_INTERVAL)

An Orchestrator runs in one of three mutually exclusive modes: daemon
(producer and consumer loops run indefinitely), polling (pull() on a
fixed interval), or one-shot (pull() once). A process-wide Registry
enforces spec.md §3's "exactly one live sync instance per name per
process" invariant; §4.7's "per name across a fleet of replicas" half of
that invariant is provided by pkg/election instead.
*/
package orchestrator
