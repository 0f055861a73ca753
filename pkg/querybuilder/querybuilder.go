package querybuilder

import (
	"context"

	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// ColumnPair is one (parent column, child column) foreign-key leg.
type ColumnPair struct {
	ParentColumn string
	ChildColumn  string
}

// RootRow is one materialized root document, as produced by the
// root-to-leaf join query: the row's column values, the primary-key
// values that identify it, and the META section recording which
// primary keys from each table in the tree contributed to it.
type RootRow struct {
	PrimaryKeys []string
	Row         map[string]any
	Meta        types.MetaSection
}

// RootRowIterator is a pull-style cursor over RootRows, so the executor
// never has to materialize an entire result set in memory. Next returns
// (nil, nil) when exhausted.
type RootRowIterator interface {
	Next(ctx context.Context) (*RootRow, error)
	Close()
}

// QueryBuilder is the C6 external collaborator contract.
type QueryBuilder interface {
	// GetForeignKeys resolves the foreign key between parent and child,
	// preferring live schema introspection and falling back to the
	// tree's declared Relationship on lookup failure (see §7's
	// "foreign-key lookup failure" error kind).
	GetForeignKeys(ctx context.Context, parent, child *tree.Node) ([]ColumnPair, error)

	// FetchRootDocuments runs the root-to-leaf join query restricted by
	// filters (and, if non-nil, by the [txmin, txmax] commit range) and
	// returns a lazy cursor over the resulting root documents.
	FetchRootDocuments(ctx context.Context, tr *tree.Tree, filters types.FilterSet, txmin, txmax *int64) (RootRowIterator, error)
}
