/*
Package executor implements the sync executor (C6): given a FilterSet
(and an optional commit-range bound), it drives a querybuilder.QueryBuilder
to stream root documents, runs each one through an optional transform
plugin, annotates it with a META section, and emits the resulting
types.BulkOp as a lazy, pull-style sequence — mirroring the generator
`sync()` the pipeline is distilled from, but expressed as Go channels
the way the teacher's reconciler and event broker stream work to
callers.
*/
package executor
