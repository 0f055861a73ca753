/*
Package tailer implements the source tailer (C4): it owns the two
logical channels to the source database described in §4.4 — a LISTEN
connection that decodes NOTIFY payloads into types.Payload, and a
logical replication slot that supports a non-destructive Peek followed
by an Advance whose bounds must equal the preceding Peek's.

Both channels are driven through github.com/jackc/pgx/v5, with slot
peek/advance built on the pg_logical_slot_peek_changes /
pg_logical_slot_get_changes functions and github.com/jackc/pglogrepl's
LSN helpers for parsing the slot's reported position.
*/
package tailer
