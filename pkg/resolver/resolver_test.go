package resolver

import (
	"context"
	"testing"

	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/searchindex"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

func bookAuthorTree(t *testing.T) *tree.Tree {
	t.Helper()
	tr, err := tree.Build(&tree.Spec{
		Table:       "book",
		Schema:      "public",
		PrimaryKeys: []string{"id"},
		Children: []*tree.Spec{
			{
				Table:       "author",
				Schema:      "public",
				PrimaryKeys: []string{"id"},
				Relationship: &tree.RelationshipSpec{
					ForeignKey: tree.ForeignKeySpec{Parent: []string{"id"}, Child: []string{"author_id"}},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func TestResolveRootInsertPopulatesRootFilter(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{
		{TgOp: types.OpInsert, Schema: "public", Table: "book", New: types.Row{"id": "1"}},
	}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Filters["book"]) != 1 || result.Filters["book"][0]["id"] != "1" {
		t.Fatalf("unexpected filters: %+v", result.Filters)
	}
}

func TestResolveChildInsertPopulatesParentFilterAndQueriesForeignKeys(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	// Only foreign-key pairs whose two sides share a column name carry a
	// value up to the parent, so the fake reports such a pair.
	qb.ForeignKeys["book.author"] = []querybuilder.ColumnPair{{ParentColumn: "author_id", ChildColumn: "author_id"}}
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{
		{TgOp: types.OpInsert, Schema: "public", Table: "author", New: types.Row{"id": "7", "author_id": "1"}},
	}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Filters["book"]) != 1 || result.Filters["book"][0]["author_id"] != "1" {
		t.Fatalf("expected parent filter from foreign key, got %+v", result.Filters)
	}
}

func TestResolveRootDeleteEmitsDirectBulkDelete(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{
		{TgOp: types.OpDelete, Schema: "public", Table: "book", Old: types.Row{"id": "1"}},
	}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.DirectOps) != 1 || result.DirectOps[0].OpType != types.BulkDelete || result.DirectOps[0].ID != "1" {
		t.Fatalf("expected a direct bulk delete for doc 1, got %+v", result.DirectOps)
	}
	if len(result.Filters) != 0 || !result.Filters.IsEmpty() {
		t.Fatalf("expected no filters from a root delete, got %+v", result.Filters)
	}
}

func TestResolveChildDeleteUsesRootPrimaryKeyResolver(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	idx.PutDoc("books", "42", types.MetaSection{"author": {"id": {"7"}}})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{
		{TgOp: types.OpDelete, Schema: "public", Table: "author", Old: types.Row{"id": "7"}},
	}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Filters["book"]) != 1 || result.Filters["book"][0]["id"] != "42" {
		t.Fatalf("expected root filter id=42 from meta back-reference, got %+v", result.Filters)
	}
}

func TestResolveRootTruncateEmitsDeleteForEveryDoc(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	idx.PutDoc("books", "1", types.MetaSection{})
	idx.PutDoc("books", "2", types.MetaSection{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{{TgOp: types.OpTruncate, Schema: "public", Table: "book"}}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.DirectOps) != 2 {
		t.Fatalf("expected 2 direct deletes, got %+v", result.DirectOps)
	}
	if result.CheckpointEligible {
		t.Fatal("expected a truncate run to not be checkpoint-eligible")
	}
}

func TestResolveUnknownTableDropsRun(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{{TgOp: types.OpInsert, Schema: "public", Table: "nonexistent", New: types.Row{"id": "1"}}}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Filters.IsEmpty() || len(result.DirectOps) != 0 {
		t.Fatalf("expected an empty result for an unknown table, got %+v", result)
	}
}

func TestResolveUpdateRootDifferingPrimaryKeyDeletesOldDoc(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books"})

	run := []types.Payload{
		{TgOp: types.OpUpdate, Schema: "public", Table: "book", Old: types.Row{"id": "1"}, New: types.Row{"id": "2"}},
	}
	result, err := res.Resolve(context.Background(), run)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Filters["book"]) != 1 || result.Filters["book"][0]["id"] != "2" {
		t.Fatalf("expected new-id filter, got %+v", result.Filters)
	}
	foundDelete := false
	for _, op := range result.DirectOps {
		if op.OpType == types.BulkDelete && op.ID == "1" {
			foundDelete = true
		}
	}
	if !foundDelete {
		t.Fatalf("expected a direct delete for the old doc id, got %+v", result.DirectOps)
	}
}

func TestChunkForExecutionCrossProductsTableChunks(t *testing.T) {
	tr := bookAuthorTree(t)
	qb := querybuilder.NewFakeQueryBuilder()
	idx := searchindex.NewFakeClient(searchindex.Capability{})
	res := New(tr, qb, idx, Config{Index: "books", FilterChunkSize: 1})

	filters := types.NewFilterSet()
	filters.Add("book", types.Predicate{"id": "1"})
	filters.Add("book", types.Predicate{"id": "2"})
	filters.Add("author", types.Predicate{"id": "7"})

	combos := res.ChunkForExecution(filters)
	if len(combos) != 2 {
		t.Fatalf("expected 2 combinations (2 book chunks x 1 author chunk), got %d: %+v", len(combos), combos)
	}
}
