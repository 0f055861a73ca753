package tree

// ForeignKey declares the column lists joining a child node to its
// parent. Parent and Child are ordered and zipped by index, matching
// §3's "foreign_key.parent and foreign_key.child column lists."
type ForeignKey struct {
	Parent []string
	Child  []string
}

// Through is a join-only table sitting between a node and its parent.
// It never becomes a Node in the tree itself (it has no identity beyond
// the join), but its changes must reparent to the node that declares it.
type Through struct {
	Table   string
	Schema  string
	Columns []string
}

// Relationship describes how a non-root node attaches to its parent.
type Relationship struct {
	ForeignKey ForeignKey
	Throughs   []Through
}

// Node is one table (or view) in the tree.
type Node struct {
	Table  string
	Schema string

	// PrimaryKeys is ordered and must be non-empty for base tables
	// (tables that are not themselves a view over other tables).
	PrimaryKeys []string

	// Columns is the known column set, used only for the foreign-key
	// endpoint validation at construction time; nil means "unknown,
	// skip validation" (the query builder is the source of truth for
	// schema introspection, which is out of this package's scope).
	Columns []string

	// BaseTables lists the underlying tables when Node is a view.
	BaseTables []string

	Parent       *Node
	Children     []*Node
	Relationship Relationship
}

// IsRoot reports whether this node has no parent.
func (n *Node) IsRoot() bool {
	return n.Parent == nil
}

func (n *Node) key() nodeKey {
	return nodeKey{schema: n.Schema, table: n.Table}
}

type nodeKey struct {
	schema string
	table  string
}
