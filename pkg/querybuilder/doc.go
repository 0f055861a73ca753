/*
Package querybuilder is the external collaborator the sync executor (C6)
and resolver (C5) drive to talk SQL: it resolves a node pair's foreign
key columns against the live schema, and assembles + runs the join query
(nodes joined in breadth-first order from the root) that materializes
root documents for a FilterSet.

PgQueryBuilder is grounded against the source database via
github.com/jackc/pgx/v5, the same driver the retrieval pack's
replication tooling pairs with pglogrepl. A FakeQueryBuilder backed by
in-memory rows lives alongside it for resolver/executor tests that never
need a live Postgres.
*/
package querybuilder
