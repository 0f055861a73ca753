package querybuilder

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// IndexInfo is one index's name and the columns it covers, in index
// column order.
type IndexInfo struct {
	Name    string
	Columns []string
}

// Indexes lists every index on schema.table, for the "sync --analyze"
// index-coverage check (see cmd/pgsyncd's analyze command).
func Indexes(ctx context.Context, pool *pgxpool.Pool, schema, table string) ([]IndexInfo, error) {
	const sql = `
SELECT i.relname, array_agg(a.attname ORDER BY a.attnum)
FROM pg_class t
JOIN pg_namespace n ON n.oid = t.relnamespace
JOIN pg_index ix ON ix.indrelid = t.oid
JOIN pg_class i ON i.oid = ix.indexrelid
JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
WHERE n.nspname = $1 AND t.relname = $2
GROUP BY i.relname`

	rows, err := pool.Query(ctx, sql, schema, table)
	if err != nil {
		return nil, fmt.Errorf("listing indexes for %s.%s: %w", schema, table, err)
	}
	defer rows.Close()

	var out []IndexInfo
	for rows.Next() {
		var info IndexInfo
		if err := rows.Scan(&info.Name, &info.Columns); err != nil {
			return nil, fmt.Errorf("scanning index row for %s.%s: %w", schema, table, err)
		}
		out = append(out, info)
	}
	return out, rows.Err()
}

// ColumnsIndexed reports whether some index in indexes covers every
// column in need, in any order.
func ColumnsIndexed(indexes []IndexInfo, need []string) (string, bool) {
	for _, idx := range indexes {
		if columnsSubset(need, idx.Columns) {
			return idx.Name, true
		}
	}
	return "", false
}

func columnsSubset(need, have []string) bool {
	for _, col := range need {
		if !containsCol(have, col) {
			return false
		}
	}
	return true
}
