package types

import "testing"

func TestFilterSetIsEmpty(t *testing.T) {
	f := NewFilterSet()
	if !f.IsEmpty() {
		t.Error("expected new filter set to be empty")
	}
	f.Add("book", Predicate{"id": 1})
	if f.IsEmpty() {
		t.Error("expected filter set with a predicate to be non-empty")
	}
}

func TestChunkSplitsIntoBoundedGroups(t *testing.T) {
	preds := []Predicate{{"id": 1}, {"id": 2}, {"id": 3}, {"id": 4}, {"id": 5}}
	chunks := Chunk(preds, 2)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 2 || len(chunks[1]) != 2 || len(chunks[2]) != 1 {
		t.Fatalf("unexpected chunk sizes: %+v", chunks)
	}
}

func TestChunkWithNonPositiveSizeReturnsSingleGroup(t *testing.T) {
	preds := []Predicate{{"id": 1}, {"id": 2}}
	chunks := Chunk(preds, 0)
	if len(chunks) != 1 || len(chunks[0]) != 2 {
		t.Fatalf("expected one unchunked group, got %+v", chunks)
	}
}

func TestChunkEmptyInputReturnsNoChunks(t *testing.T) {
	if chunks := Chunk(nil, 2); chunks != nil {
		t.Fatalf("expected nil chunks for empty input, got %+v", chunks)
	}
}
