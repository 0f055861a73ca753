/*
Package searchindex is the thin, version-aware sink adapter (C8): it
turns types.BulkOp batches into a search engine's bulk wire format, and
answers the resolver's back-reference queries against a document's meta
section. The rest of the pipeline never branches on engine identity —
the Capability struct returned by a Client absorbs that so the resolver
and executor stay engine-agnostic.

Client is implemented here against Elasticsearch via
github.com/elastic/go-elasticsearch/v8, the same library the retrieval
pack's Postgres-replication tooling pairs with pgx for this kind of
sink. FakeClient (fake.go) is an in-memory Client used by the resolver
and orchestrator unit tests.
*/
package searchindex
