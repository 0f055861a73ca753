/*
Package checkpoint persists the single integer that anchors recovery for
one sync instance: the highest source transaction id already known to be
reflected in the search index, minus one. It is read once at startup and
written by the orchestrator's pull() and by its consumer workers after
each successfully applied run; with more than one worker, Set is called
from several goroutines. Neither implementation locks: each Set replaces
the whole stored value in one step (a temp-file rename, or one Redis SET).

Two backends are provided, selected by configuration, mirroring the
teacher's BoltDB-backed Store and the original implementation's choice
between a local file and a shared Redis key:

	┌──────────────── CHECKPOINT STORE ────────────────┐
	│                                                     │
	│   FileStore                    RedisStore          │
	│   <dir>/.<sync_name>           <ns>:<sync_name>    │
	│   ASCII decimal, no newline    decimal string      │
	│   single-process deployments   shared across       │
	│                                 replicas/restarts   │
	└─────────────────────────────────────────────────┘
*/
package checkpoint
