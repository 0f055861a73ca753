/*
Package types holds the wire and domain types shared across pgsyncd: the
change-event payload emitted by the source database, the bulk operations
sent to the search index, and the small set of errors that distinguish
the failure kinds described in the project's error-handling design.

These are plain data types with no behavior beyond validation and
derivation (Payload.Data, sync-name derivation). Everything that acts on
them — the tree, the resolver, the executor — lives in its own package.
*/
package types
