package searchindex

import (
	"context"
	"testing"

	"github.com/cuemby/pgsyncd/pkg/types"
)

func TestFakeClientBulkIndexThenSearchByMeta(t *testing.T) {
	client := NewFakeClient(Capability{})
	ctx := context.Background()

	meta := types.MetaSection{"author": {"id": {"7"}}}
	_, err := client.Bulk(ctx, "books", []types.BulkOp{
		{OpType: types.BulkIndex, ID: "1", Source: map[string]any{"_meta": meta}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ids, err := client.SearchByMeta(ctx, "books", "author", map[string][]string{"id": {"7"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("expected to find doc 1, got %+v", ids)
	}
}

func TestFakeClientSearchByMetaRequiresAllColumns(t *testing.T) {
	client := NewFakeClient(Capability{})
	ctx := context.Background()

	meta := types.MetaSection{"author": {"id": {"7"}, "rev": {"2"}}}
	client.PutDoc("books", "1", meta)

	ids, err := client.SearchByMeta(ctx, "books", "author", map[string][]string{"id": {"7"}, "rev": {"3"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no match when one column fails to intersect, got %+v", ids)
	}
}

func TestFakeClientBulkDeleteRemovesDoc(t *testing.T) {
	client := NewFakeClient(Capability{})
	ctx := context.Background()
	client.PutDoc("books", "1", types.MetaSection{})

	result, err := client.Bulk(ctx, "books", []types.BulkOp{{OpType: types.BulkDelete, ID: "1"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deletion, got %+v", result)
	}

	ids, err := client.ScanAllDocIDs(ctx, "books")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 0 {
		t.Fatalf("expected no docs left, got %+v", ids)
	}
}

func TestFakeClientBulkDeleteMissingDocSuppressedWhenCapable(t *testing.T) {
	client := NewFakeClient(Capability{SuppressDeleteErrors: true})
	ctx := context.Background()

	result, err := client.Bulk(ctx, "books", []types.BulkOp{{OpType: types.BulkDelete, ID: "missing"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Deleted != 0 {
		t.Fatalf("expected no deletion recorded for an already-missing doc, got %+v", result)
	}
}

func TestFakeClientScanDocIDsByMetaTable(t *testing.T) {
	client := NewFakeClient(Capability{})
	client.PutDoc("books", "1", types.MetaSection{"author": {"id": {"7"}}})
	client.PutDoc("books", "2", types.MetaSection{"publisher": {"id": {"9"}}})

	ids, err := client.ScanDocIDsByMetaTable(context.Background(), "books", "author")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(ids) != 1 || ids[0] != "1" {
		t.Fatalf("expected only doc 1, got %+v", ids)
	}
}
