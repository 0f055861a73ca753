package querybuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/cuemby/pgsyncd/pkg/log"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// PgQueryBuilder runs against a live source database through a pooled
// pgx connection.
type PgQueryBuilder struct {
	pool *pgxpool.Pool
}

// NewPgQueryBuilder wraps an existing pool. The caller owns its
// lifecycle.
func NewPgQueryBuilder(pool *pgxpool.Pool) *PgQueryBuilder {
	return &PgQueryBuilder{pool: pool}
}

func (q *PgQueryBuilder) GetForeignKeys(ctx context.Context, parent, child *tree.Node) ([]ColumnPair, error) {
	const query = `
SELECT kcu.column_name AS child_column, ccu.column_name AS parent_column
FROM information_schema.table_constraints tc
JOIN information_schema.key_column_usage kcu
  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
JOIN information_schema.constraint_column_usage ccu
  ON tc.constraint_name = ccu.constraint_name AND tc.table_schema = ccu.table_schema
WHERE tc.constraint_type = 'FOREIGN KEY'
  AND tc.table_schema = $1 AND tc.table_name = $2
  AND ccu.table_schema = $3 AND ccu.table_name = $4
ORDER BY kcu.ordinal_position`

	rows, err := q.pool.Query(ctx, query, child.Schema, child.Table, parent.Schema, parent.Table)
	if err != nil {
		log.WithComponent("querybuilder").Warn().Err(err).
			Str("parent", parent.Table).Str("child", child.Table).
			Msg("foreign key introspection failed, falling back to configured relationship")
		return fallbackForeignKeys(child), nil
	}
	defer rows.Close()

	var pairs []ColumnPair
	for rows.Next() {
		var childCol, parentCol string
		if err := rows.Scan(&childCol, &parentCol); err != nil {
			return nil, fmt.Errorf("scanning foreign key introspection row: %w", err)
		}
		pairs = append(pairs, ColumnPair{ParentColumn: parentCol, ChildColumn: childCol})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading foreign key introspection rows: %w", err)
	}
	if len(pairs) == 0 {
		return fallbackForeignKeys(child), nil
	}
	return pairs, nil
}

func fallbackForeignKeys(child *tree.Node) []ColumnPair {
	fk := child.Relationship.ForeignKey
	pairs := make([]ColumnPair, 0, len(fk.Parent))
	for i := range fk.Parent {
		pairs = append(pairs, ColumnPair{ParentColumn: fk.Parent[i], ChildColumn: fk.Child[i]})
	}
	return pairs
}

// FetchRootDocuments builds one LEFT JOIN query walking the tree from
// root to every node, restricts it by filters (table -> OR'd equality
// predicates) and, when given, by the root table's system xmin column
// falling in [txmin, txmax], then streams the rows through pgx.
func (q *PgQueryBuilder) FetchRootDocuments(ctx context.Context, tr *tree.Tree, filters types.FilterSet, txmin, txmax *int64) (RootRowIterator, error) {
	b := newQueryBuilder(tr)
	sql, args := b.build(filters, txmin, txmax)

	rows, err := q.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("querying root documents: %w", err)
	}
	return &pgRootRowIterator{rows: rows, b: b}, nil
}

type pgRootRowIterator struct {
	rows pgx.Rows
	b    *sqlBuilder
}

func (it *pgRootRowIterator) Next(ctx context.Context) (*RootRow, error) {
	if !it.rows.Next() {
		if err := it.rows.Err(); err != nil {
			return nil, fmt.Errorf("reading root document row: %w", err)
		}
		return nil, nil
	}
	values, err := it.rows.Values()
	if err != nil {
		return nil, fmt.Errorf("reading root document row values: %w", err)
	}
	return it.b.rowFromValues(values), nil
}

func (it *pgRootRowIterator) Close() {
	it.rows.Close()
}

// sqlBuilder assembles the join SQL once per FetchRootDocuments call and
// remembers the column layout so pgRootRowIterator can turn each
// returned row of values back into a RootRow.
type sqlBuilder struct {
	tr         *tree.Tree
	aliases    map[string]string // table -> alias
	selectCols []selectColumn
	rootAlias  string
}

type selectColumn struct {
	table  string
	column string
	isPK   bool
}

func newQueryBuilder(tr *tree.Tree) *sqlBuilder {
	b := &sqlBuilder{tr: tr, aliases: make(map[string]string)}
	i := 0
	for _, n := range tr.TraverseBreadthFirst() {
		b.aliases[n.Table] = fmt.Sprintf("t%d", i)
		i++
	}
	b.rootAlias = b.aliases[tr.Root().Table]
	return b
}

func (b *sqlBuilder) build(filters types.FilterSet, txmin, txmax *int64) (string, []any) {
	var sb strings.Builder
	var args []any

	sb.WriteString("SELECT ")
	first := true
	for _, n := range b.tr.TraverseBreadthFirst() {
		alias := b.aliases[n.Table]
		cols := n.Columns
		if len(cols) == 0 {
			cols = n.PrimaryKeys
		}
		for _, col := range cols {
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%s.%s", quoteIdent(alias), quoteIdent(col))
			b.selectCols = append(b.selectCols, selectColumn{table: n.Table, column: col, isPK: containsCol(n.PrimaryKeys, col)})
		}
		for _, pk := range n.PrimaryKeys {
			if containsCol(cols, pk) {
				continue
			}
			if !first {
				sb.WriteString(", ")
			}
			first = false
			fmt.Fprintf(&sb, "%s.%s", quoteIdent(alias), quoteIdent(pk))
			b.selectCols = append(b.selectCols, selectColumn{table: n.Table, column: pk, isPK: true})
		}
	}

	root := b.tr.Root()
	fmt.Fprintf(&sb, " FROM %s.%s AS %s", quoteIdent(root.Schema), quoteIdent(root.Table), quoteIdent(b.rootAlias))

	for _, n := range b.tr.TraverseBreadthFirst() {
		if n.Parent == nil {
			continue
		}
		alias := b.aliases[n.Table]
		parentAlias := b.aliases[n.Parent.Table]
		fk := n.Relationship.ForeignKey
		var onClauses []string
		for i := range fk.Parent {
			onClauses = append(onClauses, fmt.Sprintf("%s.%s = %s.%s",
				quoteIdent(parentAlias), quoteIdent(fk.Parent[i]), quoteIdent(alias), quoteIdent(fk.Child[i])))
		}
		fmt.Fprintf(&sb, " LEFT JOIN %s.%s AS %s ON %s",
			quoteIdent(n.Schema), quoteIdent(n.Table), quoteIdent(alias), strings.Join(onClauses, " AND "))
	}

	var whereClauses []string
	for table, predicates := range filters {
		if len(predicates) == 0 {
			continue
		}
		alias, ok := b.aliases[table]
		if !ok {
			continue
		}
		whereClauses = append(whereClauses, predicateGroupSQL(alias, predicates, &args))
	}
	if txmin != nil && txmax != nil {
		args = append(args, *txmin, *txmax)
		whereClauses = append(whereClauses, fmt.Sprintf(
			"%s.xmin::text::bigint BETWEEN $%d AND $%d", quoteIdent(b.rootAlias), len(args)-1, len(args)))
	}

	if len(whereClauses) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(whereClauses, " AND "))
	}

	return sb.String(), args
}

func predicateGroupSQL(alias string, predicates []types.Predicate, args *[]any) string {
	var orClauses []string
	for _, pred := range predicates {
		var andClauses []string
		for col, val := range pred {
			*args = append(*args, val)
			andClauses = append(andClauses, fmt.Sprintf("%s.%s = $%d", quoteIdent(alias), quoteIdent(col), len(*args)))
		}
		orClauses = append(orClauses, "("+strings.Join(andClauses, " AND ")+")")
	}
	return "(" + strings.Join(orClauses, " OR ") + ")"
}

func (b *sqlBuilder) rowFromValues(values []any) *RootRow {
	row := make(map[string]any, len(values))
	meta := make(types.MetaSection)
	var rootPKs []string

	for i, col := range b.selectCols {
		if i >= len(values) {
			continue
		}
		v := values[i]
		if col.table == b.tr.Root().Table {
			row[col.column] = v
		}
		if col.isPK {
			if meta[col.table] == nil {
				meta[col.table] = make(map[string][]string)
			}
			meta[col.table][col.column] = append(meta[col.table][col.column], fmt.Sprint(v))
			if col.table == b.tr.Root().Table {
				rootPKs = append(rootPKs, fmt.Sprint(v))
			}
		}
	}

	return &RootRow{PrimaryKeys: rootPKs, Row: row, Meta: meta}
}

func containsCol(cols []string, target string) bool {
	for _, c := range cols {
		if c == target {
			return true
		}
	}
	return false
}

func quoteIdent(s string) string {
	return pgx.Identifier{s}.Sanitize()
}

// CurrentTxID returns txid_current(), the upper bound of the forward
// scan a pull() performs per spec.md §4.7 step 1.
func (q *PgQueryBuilder) CurrentTxID(ctx context.Context) (int64, error) {
	var txid int64
	if err := q.pool.QueryRow(ctx, "SELECT txid_current()").Scan(&txid); err != nil {
		return 0, fmt.Errorf("querying txid_current: %w", err)
	}
	return txid, nil
}

// CurrentWALLSN returns current_wal_lsn(), falling back to
// pg_last_wal_replay_lsn() when the connection is a read replica (where
// current_wal_lsn() does not exist).
func (q *PgQueryBuilder) CurrentWALLSN(ctx context.Context) (string, error) {
	var lsn string
	err := q.pool.QueryRow(ctx, "SELECT pg_current_wal_lsn()::text").Scan(&lsn)
	if err == nil {
		return lsn, nil
	}
	if err := q.pool.QueryRow(ctx, "SELECT pg_last_wal_replay_lsn()::text").Scan(&lsn); err != nil {
		return "", fmt.Errorf("querying wal lsn (primary and replica forms both failed): %w", err)
	}
	return lsn, nil
}
