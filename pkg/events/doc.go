/*
Package events provides an in-memory event broker for broadcasting a
sync's lifecycle notifications (pull completed, batch applied,
checkpoint advanced, leadership changed) to interested subscribers.

	Publisher → eventCh (buffer 100) → broadcast → Subscriber channels (buffer 50)

Publish is non-blocking per subscriber: a full subscriber buffer drops
the event rather than stalling the broker. Publish is also safe to call
on a nil *Broker, so pkg/orchestrator can hold an optional Events field
and publish unconditionally.

Nothing in pgsyncd subscribes by default; the broker exists for
operators to attach their own consumer (a webhook forwarder, a log
sink) without changing the orchestrator.
*/
package events
