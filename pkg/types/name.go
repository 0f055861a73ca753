package types

import (
	"regexp"
	"strings"
)

var nameDisallowed = regexp.MustCompile(`[^0-9A-Za-z_]+`)

// SyncName derives the stable name identifying one sync instance from
// (database, index), per §3: restricted to [0-9A-Za-z_] and truncated
// to 63 bytes. The same name doubles as the replication-slot name and
// the queue/checkpoint key namespace, so it must be a pure function of
// its inputs — no randomness, no process state.
func SyncName(database, index string) string {
	raw := strings.ToLower(database) + "_" + index
	cleaned := nameDisallowed.ReplaceAllString(raw, "")
	if len(cleaned) > 63 {
		cleaned = cleaned[:63]
	}
	return cleaned
}
