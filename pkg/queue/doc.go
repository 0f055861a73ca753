/*
Package queue holds the durable FIFO of change-event payloads between the
source tailer (the producer) and the orchestrator's consumer workers.
Entries are namespaced by sync name so multiple syncs can share one
backing store without colliding:

	┌──────────────────── EVENT QUEUE ────────────────────┐
	│                                                       │
	│   BoltQueue                     RedisQueue            │
	│   one bbolt bucket per sync     one Redis list key    │
	│   name, monotonic key order     per sync name         │
	│   single-process deployments    shared across         │
	│                                  replicas/restarts     │
	└───────────────────────────────────────────────────┘

Push and pop operate on whole batches of types.Payload, matching the
source tailer's REDIS_WRITE_CHUNK_SIZE batching and the consumer's
pop(max=n) contract. Delete removes the entire namespace and is only
called during teardown.
*/
package queue
