package tree

import (
	"fmt"

	"github.com/cuemby/pgsyncd/pkg/types"
)

// Tree is the immutable, constructed view of a sync config's node tree.
// Build is the only way to obtain one; every method on Tree is safe for
// concurrent use since nothing mutates after construction.
type Tree struct {
	root    *Node
	byKey   map[nodeKey]*Node
	schemas map[string]struct{}
	tables  map[string]struct{}
}

// Root returns the tree's single root node.
func (t *Tree) Root() *Node { return t.root }

// GetNode looks up a node by (table, schema). schema defaults to
// "public" when empty, matching Spec's default.
func (t *Tree) GetNode(table, schema string) (*Node, bool) {
	if schema == "" {
		schema = defaultSchema
	}
	n, ok := t.byKey[nodeKey{schema: schema, table: table}]
	return n, ok
}

// Schemas returns the set of schemas referenced anywhere in the tree.
func (t *Tree) Schemas() []string {
	out := make([]string, 0, len(t.schemas))
	for s := range t.schemas {
		out = append(out, s)
	}
	return out
}

// HasSchema reports whether schema is referenced by some node in the tree.
func (t *Tree) HasSchema(schema string) bool {
	_, ok := t.schemas[schema]
	return ok
}

// Tables returns the set of table names the tree has a Node for. This
// does not include pure through-tables, which never become Nodes.
func (t *Tree) Tables() []string {
	out := make([]string, 0, len(t.tables))
	for tb := range t.tables {
		out = append(out, tb)
	}
	return out
}

// HasTable reports whether table has a Node in the tree (regardless of
// schema — callers that need schema-qualified lookups should use
// GetNode).
func (t *Tree) HasTable(table string) bool {
	_, ok := t.tables[table]
	return ok
}

// TraverseBreadthFirst visits the root first, then each depth level in
// turn.
func (t *Tree) TraverseBreadthFirst() []*Node {
	var out []*Node
	queue := []*Node{t.root}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		out = append(out, n)
		queue = append(queue, n.Children...)
	}
	return out
}

// TraversePostOrder visits every node's children before the node itself,
// ending with the root. The query builder does not use it: its join
// query walks the tree with TraverseBreadthFirst.
func (t *Tree) TraversePostOrder() []*Node {
	var out []*Node
	var visit func(*Node)
	visit = func(n *Node) {
		for _, c := range n.Children {
			visit(c)
		}
		out = append(out, n)
	}
	visit(t.root)
	return out
}

// Build constructs and validates a Tree from a root Spec, enforcing the
// invariants in §3: every referenced schema is recorded, every base
// table has at least one primary key, a node's foreign key resolves to
// columns that exist on both endpoints (when column metadata is known),
// and the declared tree contains no cycles.
func Build(root *Spec) (*Tree, error) {
	if root == nil {
		return nil, fmt.Errorf("%w: nil root spec", types.ErrSchemaValidation)
	}

	t := &Tree{
		byKey:   make(map[nodeKey]*Node),
		schemas: make(map[string]struct{}),
		tables:  make(map[string]struct{}),
	}

	rootNode, err := t.buildNode(root, nil, map[nodeKey]bool{})
	if err != nil {
		return nil, err
	}
	t.root = rootNode
	return t, nil
}

func (t *Tree) buildNode(spec *Spec, parent *Node, ancestry map[nodeKey]bool) (*Node, error) {
	if spec.Table == "" {
		return nil, fmt.Errorf("%w: node under parent %v has no table name", types.ErrSchemaValidation, parentTable(parent))
	}
	schema := spec.schemaOrDefault()
	key := nodeKey{schema: schema, table: spec.Table}

	if ancestry[key] {
		return nil, fmt.Errorf("%w: cycle detected at %s.%s", types.ErrSchemaValidation, schema, spec.Table)
	}
	if _, exists := t.byKey[key]; exists {
		return nil, fmt.Errorf("%w: duplicate node %s.%s", types.ErrSchemaValidation, schema, spec.Table)
	}

	isBaseTable := len(spec.BaseTables) == 0
	if isBaseTable && len(spec.PrimaryKeys) == 0 {
		return nil, fmt.Errorf("%w: base table %s.%s has no primary keys", types.ErrSchemaValidation, schema, spec.Table)
	}

	n := &Node{
		Table:       spec.Table,
		Schema:      schema,
		PrimaryKeys: spec.PrimaryKeys,
		Columns:     spec.Columns,
		BaseTables:  spec.BaseTables,
		Parent:      parent,
	}

	if parent == nil {
		if spec.Relationship != nil {
			return nil, fmt.Errorf("%w: root node %s.%s must not declare a relationship", types.ErrSchemaValidation, schema, spec.Table)
		}
	} else {
		if spec.Relationship == nil {
			return nil, fmt.Errorf("%w: non-root node %s.%s must declare a relationship", types.ErrSchemaValidation, schema, spec.Table)
		}
		rel, err := buildRelationship(parent, n, spec.Relationship)
		if err != nil {
			return nil, err
		}
		n.Relationship = rel
	}

	t.byKey[key] = n
	t.schemas[schema] = struct{}{}
	t.tables[spec.Table] = struct{}{}

	childAncestry := make(map[nodeKey]bool, len(ancestry)+1)
	for k := range ancestry {
		childAncestry[k] = true
	}
	childAncestry[key] = true

	for _, childSpec := range spec.Children {
		child, err := t.buildNode(childSpec, n, childAncestry)
		if err != nil {
			return nil, err
		}
		n.Children = append(n.Children, child)
	}

	return n, nil
}

func buildRelationship(parent, child *Node, spec *RelationshipSpec) (Relationship, error) {
	if len(spec.ForeignKey.Parent) == 0 || len(spec.ForeignKey.Child) == 0 {
		return Relationship{}, fmt.Errorf("%w: relationship for %s.%s is missing foreign_key.parent/child", types.ErrSchemaValidation, child.Schema, child.Table)
	}
	if len(spec.ForeignKey.Parent) != len(spec.ForeignKey.Child) {
		return Relationship{}, fmt.Errorf("%w: foreign_key.parent/child column count mismatch for %s.%s", types.ErrSchemaValidation, child.Schema, child.Table)
	}

	if parent.Columns != nil {
		for _, col := range spec.ForeignKey.Parent {
			if !containsString(parent.Columns, col) {
				return Relationship{}, fmt.Errorf("%w: foreign_key.parent column %q not found on %s.%s", types.ErrSchemaValidation, col, parent.Schema, parent.Table)
			}
		}
	}
	if child.Columns != nil {
		for _, col := range spec.ForeignKey.Child {
			if !containsString(child.Columns, col) {
				return Relationship{}, fmt.Errorf("%w: foreign_key.child column %q not found on %s.%s", types.ErrSchemaValidation, col, child.Schema, child.Table)
			}
		}
	}

	rel := Relationship{
		ForeignKey: ForeignKey{Parent: spec.ForeignKey.Parent, Child: spec.ForeignKey.Child},
	}
	for _, ts := range spec.Throughs {
		schema := ts.Schema
		if schema == "" {
			schema = defaultSchema
		}
		rel.Throughs = append(rel.Throughs, Through{Table: ts.Table, Schema: schema, Columns: ts.Columns})
	}
	return rel, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func parentTable(n *Node) string {
	if n == nil {
		return "<root>"
	}
	return n.Table
}
