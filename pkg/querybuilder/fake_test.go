package querybuilder

import (
	"context"
	"testing"

	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

func buildBookAuthorTree(t *testing.T) *tree.Tree {
	t.Helper()
	spec := &tree.Spec{
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
	}
	tr, err := tree.Build(spec)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return tr
}

func TestFakeQueryBuilderGetForeignKeysFallsBackToTreeRelationship(t *testing.T) {
	tr := buildBookAuthorTree(t)
	root, _ := tr.GetNode("book", "public")
	author, _ := tr.GetNode("author", "public")

	fqb := NewFakeQueryBuilder()
	pairs, err := fqb.GetForeignKeys(context.Background(), root, author)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(pairs) != 1 || pairs[0].ParentColumn != "id" || pairs[0].ChildColumn != "author_id" {
		t.Fatalf("unexpected foreign key pairs: %+v", pairs)
	}
}

func TestFakeQueryBuilderFetchRootDocumentsStreamsSeededRows(t *testing.T) {
	tr := buildBookAuthorTree(t)
	fqb := NewFakeQueryBuilder()
	fqb.Rows = []RootRow{
		{PrimaryKeys: []string{"1"}, Row: map[string]any{"id": 1}},
		{PrimaryKeys: []string{"2"}, Row: map[string]any{"id": 2}},
	}

	filters := types.NewFilterSet()
	filters.Add("book", types.Predicate{"id": 1})

	iter, err := fqb.FetchRootDocuments(context.Background(), tr, filters, nil, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer iter.Close()

	var got []string
	for {
		row, err := iter.Next(context.Background())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if row == nil {
			break
		}
		got = append(got, row.PrimaryKeys[0])
	}
	if len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("unexpected rows: %+v", got)
	}
	if fqb.LastFilters["book"][0]["id"] != 1 {
		t.Fatalf("expected FetchRootDocuments to record the filters it was called with")
	}
}
