/*
Package tree is the read-only view of a sync's configured table tree: one
root table, its descendants, the through-tables that join them, and the
foreign keys connecting each child to its parent.

A Tree is built once from the "nodes" section of a sync's JSON config and
is not changed afterwards: Tree has no mutating methods and nothing in
this package alters a Node after Build. The traversal and lookup methods
return the tree's shared *Node values themselves, not copies.

	┌────────────────────────── TREE ───────────────────────────┐
	│                                                              │
	│                         root (book)                         │
	│                        /            \                       │
	│              author (child)      review (child)             │
	│             /                                                │
	│   book_author (through, no tree identity of its own)         │
	│                                                              │
	└──────────────────────────────────────────────────────────┘

Nodes whose Relationship.Throughs is non-empty reach their parent via an
intermediate join-only table; that through table itself is never a Node
— changes to it are reparented to the node that declares it, per the
"through-table" handling in the resolver.
*/
package tree
