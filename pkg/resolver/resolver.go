package resolver

import (
	"context"
	"fmt"

	"github.com/cuemby/pgsyncd/pkg/metrics"
	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/searchindex"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// Result is what a resolved run hands to the sync executor: a FilterSet
// to materialize, and zero or more bulk ops the resolver can issue
// directly without going through the executor at all (root deletes and
// truncates).
type Result struct {
	Filters   types.FilterSet
	DirectOps []types.BulkOp
	// CheckpointEligible is false when every Payload in the run was a
	// TRUNCATE (xmin is always null for TRUNCATE, so this run cannot
	// advance the checkpoint).
	CheckpointEligible bool
}

// Config configures one Resolver for one sync. Delete-error suppression
// for cooperative mode lives on the searchindex.Client's Capability, not
// here, since it's the bulk write that needs to tolerate an
// already-missing document.
type Config struct {
	Index           string
	FilterChunkSize int
}

// Resolver is the C5 component.
type Resolver struct {
	tr  *tree.Tree
	qb  querybuilder.QueryBuilder
	idx searchindex.Client
	cfg Config
}

// New returns a Resolver bound to tr, qb and idx.
func New(tr *tree.Tree, qb querybuilder.QueryBuilder, idx searchindex.Client, cfg Config) *Resolver {
	return &Resolver{tr: tr, qb: qb, idx: idx, cfg: cfg}
}

// Resolve processes a run of Payloads that all share the same (tg_op,
// table). The caller (the orchestrator's consumer) is responsible for
// splitting a dequeued batch into such runs.
func (r *Resolver) Resolve(ctx context.Context, run []types.Payload) (*Result, error) {
	timer := metrics.NewTimer()
	defer timer.ObserveDurationVec(metrics.ResolveDuration, r.cfg.Index)

	if len(run) == 0 {
		return &Result{Filters: types.NewFilterSet()}, nil
	}

	op := run[0].TgOp
	schema, table := run[0].Schema, run[0].Table
	result := &Result{Filters: types.NewFilterSet(), CheckpointEligible: op != types.OpTruncate}

	node, isNode := r.tr.GetNode(table, schema)
	through, throughParent := r.findPureThroughNode(schema, table)

	if !isNode && through == nil {
		// Table is neither a tree node nor referenced via a through
		// relationship: this run cannot affect any root document.
		return result, nil
	}

	if isNode {
		if err := r.assertPrimaryKeysPresent(node, run); err != nil {
			return nil, err
		}
	}

	root := r.tr.Root()

	switch op {
	case types.OpInsert:
		if isNode {
			return r.resolveInsert(ctx, node, root, run, result)
		}
		return r.resolveThroughInsert(ctx, through, throughParent, run, result)
	case types.OpUpdate:
		if !isNode {
			return result, nil
		}
		return r.resolveUpdate(ctx, node, root, run, result)
	case types.OpDelete:
		if !isNode {
			return result, nil
		}
		return r.resolveDelete(ctx, node, root, run, result)
	case types.OpTruncate:
		if !isNode {
			return result, nil
		}
		return r.resolveTruncate(ctx, node, root, result)
	default:
		return nil, fmt.Errorf("%w: %s", types.ErrUnknownTgOp, op)
	}
}

func (r *Resolver) assertPrimaryKeysPresent(node *tree.Node, run []types.Payload) error {
	for _, p := range run {
		data := p.Data()
		if len(data) == 0 {
			continue
		}
		if !p.HasPrimaryKeys(node.PrimaryKeys) {
			return fmt.Errorf("%w: table %s.%s missing primary keys in payload data", types.ErrMissingPrimaryKey, node.Schema, node.Table)
		}
	}
	return nil
}

// findPureThroughNode looks for a node whose Relationship declares a
// Through matching (schema, table); the node is not itself in the tree
// (it is the join table), so callers treat its parent as the affected
// entity. Returns (through, parentOfDeclaringNode).
func (r *Resolver) findPureThroughNode(schema, table string) (*tree.Through, *tree.Node) {
	if _, ok := r.tr.GetNode(table, schema); ok {
		return nil, nil
	}
	for _, n := range r.tr.TraverseBreadthFirst() {
		for i := range n.Relationship.Throughs {
			th := n.Relationship.Throughs[i]
			if th.Table == table && th.Schema == schema {
				return &n.Relationship.Throughs[i], n.Parent
			}
		}
	}
	return nil, nil
}

func (r *Resolver) resolveInsert(ctx context.Context, node, root *tree.Node, run []types.Payload, result *Result) (*Result, error) {
	if node.IsRoot() {
		for _, p := range run {
			keys, err := p.PrimaryKeyValues(node.PrimaryKeys)
			if err != nil {
				return nil, err
			}
			result.Filters.Add(root.Table, predicateFromKeys(node.PrimaryKeys, keys))
		}
		return result, nil
	}

	parent := node.Parent
	fkPairs, err := r.qb.GetForeignKeys(ctx, parent, node)
	if err != nil {
		return nil, fmt.Errorf("resolving foreign keys for %s -> %s: %w", parent.Table, node.Table, err)
	}

	for _, p := range run {
		data := p.Data()
		for _, fk := range fkPairs {
			if fk.ParentColumn != fk.ChildColumn {
				continue
			}
			if v, ok := data[fk.ChildColumn]; ok {
				result.Filters.Add(parent.Table, types.Predicate{fk.ParentColumn: v})
			}
		}
	}

	if err := r.rootForeignKeyResolver(ctx, node, parent, fkPairs, run, result); err != nil {
		return nil, err
	}
	if err := r.throughNodeResolver(ctx, node, root, run, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Resolver) resolveThroughInsert(ctx context.Context, through *tree.Through, parent *tree.Node, run []types.Payload, result *Result) (*Result, error) {
	if through == nil || parent == nil || len(through.Columns) < 2 {
		return result, nil
	}
	parentCol, childCol := through.Columns[0], through.Columns[1]
	for _, p := range run {
		data := p.Data()
		if v, ok := data[childCol]; ok {
			result.Filters.Add(parent.Table, types.Predicate{parentCol: v})
		}
	}
	return result, nil
}

func (r *Resolver) resolveUpdate(ctx context.Context, node, root *tree.Node, run []types.Payload, result *Result) (*Result, error) {
	if node.IsRoot() {
		for _, p := range run {
			keys, err := p.PrimaryKeyValues(node.PrimaryKeys)
			if err != nil {
				return nil, err
			}
			result.Filters.Add(root.Table, predicateFromKeys(node.PrimaryKeys, keys))

			if p.HasPrimaryKeys(node.PrimaryKeys) && oldPrimaryKeysDiffer(p, node.PrimaryKeys) {
				oldKeys, err := oldPrimaryKeyValues(p, node.PrimaryKeys)
				if err == nil {
					docID, err := types.DocID(oldKeys)
					if err == nil {
						op := types.BulkOp{OpType: types.BulkDelete, ID: docID, Index: r.cfg.Index}
						result.DirectOps = append(result.DirectOps, op)
					}
				}
			}
		}
		return result, nil
	}

	if err := r.rootPrimaryKeyResolver(ctx, node, run, result); err != nil {
		return nil, err
	}
	if node.Parent != nil {
		fkPairs, err := r.qb.GetForeignKeys(ctx, node.Parent, node)
		if err != nil {
			return nil, fmt.Errorf("resolving foreign keys for %s -> %s: %w", node.Parent.Table, node.Table, err)
		}
		if err := r.rootForeignKeyResolver(ctx, node, node.Parent, fkPairs, run, result); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (r *Resolver) resolveDelete(ctx context.Context, node, root *tree.Node, run []types.Payload, result *Result) (*Result, error) {
	if node.IsRoot() {
		for _, p := range run {
			keys, err := p.PrimaryKeyValues(node.PrimaryKeys)
			if err != nil {
				return nil, err
			}
			docID, err := types.DocID(keys)
			if err != nil {
				return nil, err
			}
			result.DirectOps = append(result.DirectOps, types.BulkOp{
				OpType: types.BulkDelete,
				ID:     docID,
				Index:  r.cfg.Index,
			})
		}
		return result, nil
	}
	if err := r.rootPrimaryKeyResolver(ctx, node, run, result); err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Resolver) resolveTruncate(ctx context.Context, node, root *tree.Node, result *Result) (*Result, error) {
	if node.IsRoot() {
		ids, err := r.idx.ScanAllDocIDs(ctx, r.cfg.Index)
		if err != nil {
			return nil, fmt.Errorf("scanning all doc ids for truncate: %w", err)
		}
		for _, id := range ids {
			result.DirectOps = append(result.DirectOps, types.BulkOp{OpType: types.BulkDelete, ID: id, Index: r.cfg.Index})
		}
		return result, nil
	}

	ids, err := r.idx.ScanDocIDsByMetaTable(ctx, r.cfg.Index, node.Table)
	if err != nil {
		return nil, fmt.Errorf("scanning doc ids referencing %s for truncate: %w", node.Table, err)
	}
	for _, id := range ids {
		keys := splitDocID(id)
		if len(keys) != len(root.PrimaryKeys) {
			continue
		}
		result.Filters.Add(root.Table, predicateFromKeys(root.PrimaryKeys, keys))
	}
	return result, nil
}

// rootPrimaryKeyResolver looks up, via the search index's META section
// for node.Table, which root documents currently reference each
// Payload's primary-key tuple.
func (r *Resolver) rootPrimaryKeyResolver(ctx context.Context, node *tree.Node, run []types.Payload, result *Result) error {
	root := r.tr.Root()
	keyValues := make(map[string][]string, len(node.PrimaryKeys))
	for _, p := range run {
		values, err := p.PrimaryKeyValues(node.PrimaryKeys)
		if err != nil {
			continue
		}
		for i, col := range node.PrimaryKeys {
			keyValues[col] = append(keyValues[col], values[i])
		}
	}
	if len(keyValues) == 0 {
		return nil
	}
	ids, err := r.idx.SearchByMeta(ctx, r.cfg.Index, node.Table, keyValues)
	if err != nil {
		return fmt.Errorf("root primary-key resolver: searching meta for %s: %w", node.Table, err)
	}
	for _, id := range ids {
		keys := splitDocID(id)
		if len(keys) != len(root.PrimaryKeys) {
			continue
		}
		result.Filters.Add(root.Table, predicateFromKeys(root.PrimaryKeys, keys))
	}
	return nil
}

// rootForeignKeyResolver is symmetric to rootPrimaryKeyResolver but
// keyed by the child's foreign-key values, looked up under the parent
// table's META entries. Used for n-tier leaf inserts/updates where the
// direct parent is not the root.
func (r *Resolver) rootForeignKeyResolver(ctx context.Context, node, parent *tree.Node, fkPairs []querybuilder.ColumnPair, run []types.Payload, result *Result) error {
	if parent.IsRoot() {
		return nil
	}
	root := r.tr.Root()
	keyValues := make(map[string][]string)
	for _, p := range run {
		data := p.Data()
		for _, fk := range fkPairs {
			if v, ok := data[fk.ChildColumn]; ok {
				keyValues[fk.ParentColumn] = append(keyValues[fk.ParentColumn], fmt.Sprint(v))
			}
		}
	}
	if len(keyValues) == 0 {
		return nil
	}
	ids, err := r.idx.SearchByMeta(ctx, r.cfg.Index, parent.Table, keyValues)
	if err != nil {
		return fmt.Errorf("root foreign-key resolver: searching meta for %s: %w", parent.Table, err)
	}
	for _, id := range ids {
		keys := splitDocID(id)
		if len(keys) != len(root.PrimaryKeys) {
			continue
		}
		result.Filters.Add(root.Table, predicateFromKeys(root.PrimaryKeys, keys))
	}
	return nil
}

// throughNodeResolver appends directly to filters[root.table] when node
// declares a through relationship naming the root table itself.
func (r *Resolver) throughNodeResolver(ctx context.Context, node, root *tree.Node, run []types.Payload, result *Result) error {
	for _, th := range node.Relationship.Throughs {
		if th.Table != root.Table || th.Schema != root.Schema || len(th.Columns) < 2 {
			continue
		}
		rootCol, nodeCol := th.Columns[0], th.Columns[1]
		for _, p := range run {
			data := p.Data()
			if v, ok := data[nodeCol]; ok {
				result.Filters.Add(root.Table, types.Predicate{rootCol: v})
			}
		}
	}
	return nil
}

func predicateFromKeys(columns, values []string) types.Predicate {
	pred := make(types.Predicate, len(columns))
	for i, col := range columns {
		if i < len(values) {
			pred[col] = values[i]
		}
	}
	return pred
}

func splitDocID(id string) []string {
	var out []string
	start := 0
	for i := 0; i < len(id); i++ {
		if id[i] == types.PrimaryKeyDelimiter[0] {
			out = append(out, id[start:i])
			start = i + 1
		}
	}
	out = append(out, id[start:])
	return out
}

func oldPrimaryKeysDiffer(p types.Payload, primaryKeys []string) bool {
	for _, col := range primaryKeys {
		if fmt.Sprint(p.Old[col]) != fmt.Sprint(p.New[col]) {
			return true
		}
	}
	return false
}

func oldPrimaryKeyValues(p types.Payload, primaryKeys []string) ([]string, error) {
	out := make([]string, 0, len(primaryKeys))
	for _, col := range primaryKeys {
		v, ok := p.Old[col]
		if !ok {
			return nil, fmt.Errorf("%w: old row missing primary key %q", types.ErrMissingPrimaryKey, col)
		}
		out = append(out, fmt.Sprint(v))
	}
	return out, nil
}

// ChunkForExecution splits a resolved FilterSet into the cross product
// of per-table chunks bounded by chunkSize, implementing §4.5's
// "Filter execution" rule: chunking prevents pathological SQL with
// thousands of OR clauses, and the cross product ensures every
// combination of root/node/parent chunks is covered. If only one table
// slot is populated, the result is just that table's chunks.
func (r *Resolver) ChunkForExecution(filters types.FilterSet) []types.FilterSet {
	tables := make([]string, 0, len(filters))
	for table, preds := range filters {
		if len(preds) > 0 {
			tables = append(tables, table)
		}
	}
	if len(tables) == 0 {
		return nil
	}

	chunksPerTable := make([][]types.FilterSet, len(tables))
	for i, table := range tables {
		for _, chunk := range types.Chunk(filters[table], r.cfg.FilterChunkSize) {
			fs := types.NewFilterSet()
			fs[table] = chunk
			chunksPerTable[i] = append(chunksPerTable[i], fs)
		}
	}

	combos := []types.FilterSet{types.NewFilterSet()}
	for _, options := range chunksPerTable {
		var next []types.FilterSet
		for _, combo := range combos {
			for _, option := range options {
				merged := types.NewFilterSet()
				for t, preds := range combo {
					merged[t] = preds
				}
				for t, preds := range option {
					merged[t] = preds
				}
				next = append(next, merged)
			}
		}
		combos = next
	}
	return combos
}
