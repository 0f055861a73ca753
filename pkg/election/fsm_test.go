package election

import (
	"io"
	"strings"
	"testing"

	"github.com/hashicorp/raft"
)

func TestNoopFSMApplyIgnoresLogEntries(t *testing.T) {
	fsm := noopFSM{}
	if resp := fsm.Apply(&raft.Log{Data: []byte("anything")}); resp != nil {
		t.Fatalf("expected nil response, got %v", resp)
	}
}

func TestNoopFSMRestoreReturnsNoError(t *testing.T) {
	fsm := noopFSM{}
	rc := io.NopCloser(strings.NewReader("snapshot bytes"))
	if err := fsm.Restore(rc); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestNoopSnapshotReleaseIsSafeToCall(t *testing.T) {
	noopSnapshot{}.Release()
}
