/*
Package election provides the HA leader-election primitive for a sync:
when multiple pgsyncd replicas run the same sync for availability, only
the elected leader may pull from the source and write to the index. The
others stand by and take over if the leader's Raft lease expires.

Unlike a cluster manager coordinating replicated resource state, a sync
replica set has nothing to replicate through the log — durability comes
from the checkpoint store and the event queue, not from Raft-applied
commands. So the FSM here is a no-op: Raft is used purely for its
leader-election guarantee (a single voter holds the lease at a time),
grounded on the same raft.NewRaft/BoltDB-backed transport wiring the
teacher's cluster manager uses, with the command-application machinery
stripped out.
*/
package election
