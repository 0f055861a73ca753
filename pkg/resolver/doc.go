/*
Package resolver implements the algorithmic heart of the pipeline (C5):
given a contiguous run of change-event Payloads that all share the same
(tg_op, table), it walks the tree to work out which root documents the
change affects, populating a FilterSet for the sync executor and, for
some paths, emitting direct delete bulk ops.

The back-reference lookups ("which root doc currently references this
child row") are answered by querying the search index's META section
through a searchindex.Client rather than the source database, matching
the original implementation's use of the index itself as the reverse
index during incremental sync.
*/
package resolver
