package querybuilder

import (
	"context"

	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// FakeQueryBuilder serves RootRows from an in-memory slice seeded by
// tests, and ColumnPair answers from a table keyed by "parent.child".
type FakeQueryBuilder struct {
	ForeignKeys map[string][]ColumnPair
	Rows        []RootRow
	LastFilters types.FilterSet

	TxID   int64
	WALLSN string
}

// NewFakeQueryBuilder returns an empty FakeQueryBuilder.
func NewFakeQueryBuilder() *FakeQueryBuilder {
	return &FakeQueryBuilder{ForeignKeys: make(map[string][]ColumnPair)}
}

func (f *FakeQueryBuilder) GetForeignKeys(ctx context.Context, parent, child *tree.Node) ([]ColumnPair, error) {
	if pairs, ok := f.ForeignKeys[parent.Table+"."+child.Table]; ok {
		return pairs, nil
	}
	fk := child.Relationship.ForeignKey
	pairs := make([]ColumnPair, 0, len(fk.Parent))
	for i := range fk.Parent {
		pairs = append(pairs, ColumnPair{ParentColumn: fk.Parent[i], ChildColumn: fk.Child[i]})
	}
	return pairs, nil
}

func (f *FakeQueryBuilder) FetchRootDocuments(ctx context.Context, tr *tree.Tree, filters types.FilterSet, txmin, txmax *int64) (RootRowIterator, error) {
	f.LastFilters = filters
	rows := make([]RootRow, len(f.Rows))
	copy(rows, f.Rows)
	return &fakeRootRowIterator{rows: rows}, nil
}

type fakeRootRowIterator struct {
	rows []RootRow
	pos  int
}

func (it *fakeRootRowIterator) Next(ctx context.Context) (*RootRow, error) {
	if it.pos >= len(it.rows) {
		return nil, nil
	}
	row := it.rows[it.pos]
	it.pos++
	return &row, nil
}

func (it *fakeRootRowIterator) Close() {}

// CurrentTxID returns the seeded TxID, letting tests control pull()'s
// txmax without a live database.
func (f *FakeQueryBuilder) CurrentTxID(ctx context.Context) (int64, error) {
	return f.TxID, nil
}

// CurrentWALLSN returns the seeded WALLSN.
func (f *FakeQueryBuilder) CurrentWALLSN(ctx context.Context) (string, error) {
	return f.WALLSN, nil
}
