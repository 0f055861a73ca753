package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/tree"
)

// runAnalyze implements "pgsyncd sync --analyze": for every non-root
// node, check whether an index covers its join columns and print a
// CREATE INDEX suggestion when one is missing. Grounded on the
// original implementation's Sync.analyze.
func runAnalyze(ctx context.Context, pool *pgxpool.Pool, tr *tree.Tree) error {
	for _, node := range tr.TraverseBreadthFirst() {
		if node.IsRoot() {
			continue
		}

		columns := node.Relationship.ForeignKey.Child
		indexes, err := querybuilder.Indexes(ctx, pool, node.Schema, node.Table)
		if err != nil {
			return err
		}

		if name, ok := querybuilder.ColumnsIndexed(indexes, columns); ok {
			fmt.Fprintf(os.Stdout, "Found index %q for table %q on columns %v: OK\n", name, node.Table, columns)
			continue
		}
		if name, ok := querybuilder.ColumnsIndexed(indexes, node.PrimaryKeys); ok {
			fmt.Fprintf(os.Stdout, "Found index %q for table %q on primary key %v: OK\n", name, node.Table, node.PrimaryKeys)
			continue
		}

		fmt.Fprintf(os.Stdout, "Missing index on table %q for columns: %v\n", node.Table, columns)
		fmt.Fprintf(os.Stdout, "  CREATE INDEX idx_%s_%s ON %s.%s (%s);\n",
			node.Table, strings.Join(columns, "_"), node.Schema, node.Table, strings.Join(columns, ", "))
	}
	return nil
}
