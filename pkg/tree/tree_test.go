package tree

import "testing"

func bookAuthorSpec() *Spec {
	return &Spec{
		Table:       "book",
		Schema:      "public",
		PrimaryKeys: []string{"id"},
		Children: []*Spec{
			{
				Table:       "author",
				Schema:      "public",
				PrimaryKeys: []string{"id"},
				Relationship: &RelationshipSpec{
					ForeignKey: ForeignKeySpec{Parent: []string{"id"}, Child: []string{"author_id"}},
				},
			},
		},
	}
}

func TestBuildSimpleTree(t *testing.T) {
	tr, err := Build(bookAuthorSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if tr.Root().Table != "book" {
		t.Errorf("expected root table book, got %s", tr.Root().Table)
	}
	if !tr.Root().IsRoot() {
		t.Error("expected root.IsRoot() == true")
	}

	author, ok := tr.GetNode("author", "public")
	if !ok {
		t.Fatal("expected to find author node")
	}
	if author.IsRoot() {
		t.Error("author should not be root")
	}
	if author.Parent != tr.Root() {
		t.Error("author's parent should be the root node")
	}

	if !tr.HasTable("book") || !tr.HasTable("author") {
		t.Error("expected both book and author in tree tables")
	}
	if !tr.HasSchema("public") {
		t.Error("expected public schema registered")
	}
}

func TestBuildRejectsMissingPrimaryKey(t *testing.T) {
	spec := &Spec{Table: "book", Schema: "public"}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for base table with no primary keys")
	}
}

func TestBuildRejectsRootWithRelationship(t *testing.T) {
	spec := &Spec{
		Table:        "book",
		PrimaryKeys:  []string{"id"},
		Relationship: &RelationshipSpec{ForeignKey: ForeignKeySpec{Parent: []string{"id"}, Child: []string{"id"}}},
	}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for root node declaring a relationship")
	}
}

func TestBuildRejectsChildWithoutRelationship(t *testing.T) {
	spec := &Spec{
		Table:       "book",
		PrimaryKeys: []string{"id"},
		Children: []*Spec{
			{Table: "author", PrimaryKeys: []string{"id"}},
		},
	}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for non-root node missing a relationship")
	}
}

func TestBuildRejectsForeignKeyColumnCountMismatch(t *testing.T) {
	spec := &Spec{
		Table:       "book",
		PrimaryKeys: []string{"id"},
		Children: []*Spec{
			{
				Table:       "author",
				PrimaryKeys: []string{"id"},
				Relationship: &RelationshipSpec{
					ForeignKey: ForeignKeySpec{Parent: []string{"id"}, Child: []string{"author_id", "extra"}},
				},
			},
		},
	}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for parent/child column count mismatch")
	}
}

func TestBuildValidatesForeignKeyColumnsAgainstKnownColumns(t *testing.T) {
	spec := &Spec{
		Table:       "book",
		PrimaryKeys: []string{"id"},
		Columns:     []string{"id", "title"},
		Children: []*Spec{
			{
				Table:       "author",
				PrimaryKeys: []string{"id"},
				Columns:     []string{"id", "name"},
				Relationship: &RelationshipSpec{
					ForeignKey: ForeignKeySpec{Parent: []string{"nonexistent"}, Child: []string{"id"}},
				},
			},
		},
	}
	if _, err := Build(spec); err == nil {
		t.Fatal("expected error for foreign_key.parent column not present on parent")
	}
}

func TestTraversalOrders(t *testing.T) {
	tr, err := Build(bookAuthorSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	bfs := tr.TraverseBreadthFirst()
	if len(bfs) != 2 || bfs[0].Table != "book" || bfs[1].Table != "author" {
		t.Errorf("unexpected BFS order: %+v", bfs)
	}

	post := tr.TraversePostOrder()
	if len(post) != 2 || post[0].Table != "author" || post[1].Table != "book" {
		t.Errorf("unexpected post-order: %+v", post)
	}
}

func TestGetNodeDefaultsToPublicSchema(t *testing.T) {
	tr, err := Build(bookAuthorSpec())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := tr.GetNode("book", ""); !ok {
		t.Error("expected GetNode to default empty schema to public")
	}
}
