package election

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"time"

	"github.com/hashicorp/raft"
	raftboltdb "github.com/hashicorp/raft-boltdb"

	"github.com/cuemby/pgsyncd/pkg/log"
)

// Config configures an Elector for one sync's replica set.
type Config struct {
	// SyncName tags this Elector's log lines (DataDir is used as
	// given); one Elector exists per sync, not per process.
	SyncName string
	// NodeID must be unique across the replica set (hostname:pid is a
	// reasonable default).
	NodeID string
	// BindAddr is this replica's Raft transport address, host:port.
	BindAddr string
	// DataDir holds the Raft log, stable store, and snapshots for this
	// sync's election state.
	DataDir string
	// Peers lists every other replica's NodeID/BindAddr pair. Bootstrap
	// uses this to seed the initial configuration; leave empty for a
	// single-replica deployment (the only member wins the election
	// immediately).
	Peers []Peer
}

// Peer identifies one other replica in the election.
type Peer struct {
	NodeID   string
	BindAddr string
}

// Elector wraps a Raft instance whose sole purpose is to decide which
// replica in a sync's replica set is the active leader. Non-leaders
// should stay idle (no pull, no write) until they observe leadership
// change.
type Elector struct {
	cfg  Config
	raft *raft.Raft
}

// New creates an Elector and bootstraps (or rejoins) the Raft cluster
// for cfg.SyncName. It blocks only long enough to stand up the local
// Raft instance — it does not wait for a leader to be elected.
func New(cfg Config) (*Elector, error) {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating election data directory: %w", err)
	}

	raftConfig := raft.DefaultConfig()
	raftConfig.LocalID = raft.ServerID(cfg.NodeID)
	raftConfig.HeartbeatTimeout = 500 * time.Millisecond
	raftConfig.ElectionTimeout = 500 * time.Millisecond
	raftConfig.LeaderLeaseTimeout = 250 * time.Millisecond

	addr, err := net.ResolveTCPAddr("tcp", cfg.BindAddr)
	if err != nil {
		return nil, fmt.Errorf("resolving election bind address: %w", err)
	}
	transport, err := raft.NewTCPTransport(cfg.BindAddr, addr, 3, 10*time.Second, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft transport: %w", err)
	}

	snapshotStore, err := raft.NewFileSnapshotStore(cfg.DataDir, 2, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating raft snapshot store: %w", err)
	}

	logStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-log.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft log store: %w", err)
	}
	stableStore, err := raftboltdb.NewBoltStore(filepath.Join(cfg.DataDir, "raft-stable.db"))
	if err != nil {
		return nil, fmt.Errorf("creating raft stable store: %w", err)
	}

	r, err := raft.NewRaft(raftConfig, noopFSM{}, logStore, stableStore, snapshotStore, transport)
	if err != nil {
		return nil, fmt.Errorf("creating raft instance: %w", err)
	}

	servers := []raft.Server{{ID: raftConfig.LocalID, Address: transport.LocalAddr()}}
	for _, p := range cfg.Peers {
		servers = append(servers, raft.Server{ID: raft.ServerID(p.NodeID), Address: raft.ServerAddress(p.BindAddr)})
	}
	future := r.BootstrapCluster(raft.Configuration{Servers: servers})
	if err := future.Error(); err != nil && err != raft.ErrCantBootstrap {
		return nil, fmt.Errorf("bootstrapping election cluster: %w", err)
	}

	log.WithSync(cfg.SyncName).Info().Str("node_id", cfg.NodeID).Msg("election raft instance started")
	return &Elector{cfg: cfg, raft: r}, nil
}

// IsLeader reports whether this replica currently holds the lease.
func (e *Elector) IsLeader() bool {
	return e.raft.State() == raft.Leader
}

// LeaderChanges returns a channel that emits true when this replica
// becomes leader and false when it loses leadership, mirroring
// raft.Raft's LeaderCh.
func (e *Elector) LeaderChanges() <-chan bool {
	return e.raft.LeaderCh()
}

// LeaderAddr returns the current leader's Raft transport address, or
// empty if none is known.
func (e *Elector) LeaderAddr() string {
	addr, _ := e.raft.LeaderWithID()
	return string(addr)
}

// Shutdown releases the Raft instance's resources.
func (e *Elector) Shutdown() error {
	future := e.raft.Shutdown()
	if err := future.Error(); err != nil {
		return fmt.Errorf("shutting down election raft instance: %w", err)
	}
	return nil
}
