package main

import (
	"fmt"
	"strings"

	"github.com/cuemby/pgsyncd/pkg/election"
)

// parsePeers parses "--peers" values of the form
// "node1=host1:port1,node2=host2:port2" into election.Peer entries.
func parsePeers(raw string) ([]election.Peer, error) {
	var peers []election.Peer
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, "=", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid --peers entry %q, expected node=host:port", entry)
		}
		peers = append(peers, election.Peer{NodeID: parts[0], BindAddr: parts[1]})
	}
	return peers, nil
}
