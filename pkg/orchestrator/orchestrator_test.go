package orchestrator

import (
	"context"
	"testing"

	"github.com/cuemby/pgsyncd/pkg/executor"
	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/resolver"
	"github.com/cuemby/pgsyncd/pkg/searchindex"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

type fakeCheckpoint struct {
	value *int64
}

func (f *fakeCheckpoint) Validate(ctx context.Context) error { return nil }
func (f *fakeCheckpoint) Get(ctx context.Context) (*int64, error) {
	return f.value, nil
}
func (f *fakeCheckpoint) Set(ctx context.Context, v int64) error {
	f.value = &v
	return nil
}
func (f *fakeCheckpoint) Teardown(ctx context.Context) error {
	f.value = nil
	return nil
}

func bookTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.Build(&tree.Spec{
		Table:       "book",
		Schema:      "public",
		PrimaryKeys: []string{"id"},
		Columns:     []string{"id"},
		Children: []*tree.Spec{
			{
				Table:       "author",
				Schema:      "public",
				PrimaryKeys: []string{"id"},
				Columns:     []string{"id", "book_id"},
				Relationship: &tree.RelationshipSpec{
					ForeignKey: tree.ForeignKeySpec{Parent: []string{"id"}, Child: []string{"book_id"}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func newTestOrchestrator(t *testing.T, qb *querybuilder.FakeQueryBuilder, idx *searchindex.FakeClient, cp *fakeCheckpoint) *Orchestrator {
	t.Helper()
	tr := bookTree(t)
	res := resolver.New(tr, qb, idx, resolver.Config{Index: "books", FilterChunkSize: 100})
	exec := executor.New(qb, executor.Config{Index: "books", MetaField: "_meta"})

	cfg := Config{SyncName: "books", Index: "books", NumWorkers: 1}
	deps := Deps{
		Tree:       tr,
		Checkpoint: cp,
		Source:     qb,
		Resolver:   res,
		Executor:   exec,
		Index:      idx,
	}
	return New(cfg, deps)
}

func TestPullForwardScanAdvancesCheckpointToTxMax(t *testing.T) {
	qb := querybuilder.NewFakeQueryBuilder()
	qb.TxID = 150
	qb.WALLSN = "0/16B3748"
	qb.Rows = []querybuilder.RootRow{
		{PrimaryKeys: []string{"7"}, Row: map[string]any{"id": "7"}, Meta: types.MetaSection{"book": {"id": {"7"}}}},
	}
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	cp := &fakeCheckpoint{}

	o := newTestOrchestrator(t, qb, idx, cp)
	if err := o.Pull(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.value == nil || *cp.value != 150 {
		t.Fatalf("expected checkpoint advanced to 150, got %v", cp.value)
	}
	if got := o.Stats().Indexed; got != 1 {
		t.Fatalf("expected 1 indexed doc, got %d", got)
	}
	if !o.truncateArmed.Load() {
		t.Fatal("expected pull to arm the truncation worker")
	}
}

func TestSplitRunsGroupsPureInsertBatchByTable(t *testing.T) {
	payloads := []types.Payload{
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "10"}},
		{TgOp: types.OpInsert, Schema: "public", Table: "author", New: types.Row{"id": "4"}},
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "11"}},
	}
	runs := splitRuns(payloads)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs (book, author), got %d: %+v", len(runs), runs)
	}
	if len(runs[0]) != 2 || runs[0][0].Table != "book" {
		t.Fatalf("expected the book run to have both book inserts, got %+v", runs[0])
	}
}

func TestSplitRunsPreservesOrderBoundariesForMixedOps(t *testing.T) {
	payloads := []types.Payload{
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "1"}},
		{TgOp: types.OpUpdate, Schema: "public", Table: "book", Old: types.Row{"id": "1"}, New: types.Row{"id": "1"}},
		{TgOp: types.OpUpdate, Schema: "public", Table: "book", Old: types.Row{"id": "2"}, New: types.Row{"id": "2"}},
	}
	runs := splitRuns(payloads)
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs split on (tg_op,table) boundary, got %d: %+v", len(runs), runs)
	}
	if len(runs[0]) != 1 || len(runs[1]) != 2 {
		t.Fatalf("unexpected run sizes: %+v", runs)
	}
}

func TestSubstituteViewTablesRewritesBaseTable(t *testing.T) {
	tr, err := tree.Build(&tree.Spec{
		Table:       "book_view",
		Schema:      "public",
		PrimaryKeys: []string{"id"},
		BaseTables:  []string{"book_raw"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	payloads := []types.Payload{{TgOp: types.OpInsert, Schema: "public", Table: "book_raw", New: types.Row{"id": "1"}}}
	substituteViewTables(tr, payloads)
	if payloads[0].Table != "book_view" {
		t.Fatalf("expected table rewritten to book_view, got %q", payloads[0].Table)
	}
}

func TestAdvanceCheckpointForRunSkipsAllNilXmins(t *testing.T) {
	qb := querybuilder.NewFakeQueryBuilder()
	qb.TxID = 200
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	cp := &fakeCheckpoint{}
	v := int64(99)
	cp.value = &v

	o := newTestOrchestrator(t, qb, idx, cp)
	run := []types.Payload{{TgOp: types.OpTruncate, Schema: "public", Table: "book"}}
	if err := o.advanceCheckpointForRun(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if *cp.value != 99 {
		t.Fatalf("expected checkpoint unchanged for all-nil-xmin run, got %d", *cp.value)
	}
}

func TestAdvanceCheckpointForRunUsesMinXminMinusOne(t *testing.T) {
	qb := querybuilder.NewFakeQueryBuilder()
	qb.TxID = 200
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	cp := &fakeCheckpoint{}

	o := newTestOrchestrator(t, qb, idx, cp)
	x1, x2 := int64(101), int64(104)
	run := []types.Payload{
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "1"}, Xmin: &x1},
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "2"}, Xmin: &x2},
	}
	if err := o.advanceCheckpointForRun(context.Background(), run); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cp.value == nil || *cp.value != 100 {
		t.Fatalf("expected checkpoint = min(xmins)-1 = 100, got %v", cp.value)
	}
}
