package types

import "fmt"

// TgOp is the trigger operation that produced a change event, matching
// Postgres's TG_OP values as delivered by the row-change trigger.
type TgOp string

const (
	OpInsert   TgOp = "INSERT"
	OpUpdate   TgOp = "UPDATE"
	OpDelete   TgOp = "DELETE"
	OpTruncate TgOp = "TRUNCATE"
)

// Valid reports whether op is one of the four operations pgsyncd knows
// how to resolve.
func (op TgOp) Valid() bool {
	switch op {
	case OpInsert, OpUpdate, OpDelete, OpTruncate:
		return true
	default:
		return false
	}
}

// Row is a column-name to value mapping decoded from a logical change
// row or a NOTIFY payload. Values come back as strings or numbers from
// JSON decoding; resolvers treat them as opaque and only compare or
// forward them.
type Row map[string]any

// Payload is one committed row-level change, decoded either from a
// NOTIFY message or from a logical replication change row.
type Payload struct {
	TgOp   TgOp   `json:"tg_op"`
	Schema string `json:"schema"`
	Table  string `json:"table"`
	Old    Row    `json:"old,omitempty"`
	New    Row    `json:"new,omitempty"`
	// Xmin is the source transaction id. Absent (nil) for TRUNCATE.
	Xmin *int64 `json:"xmin,omitempty"`
}

// Data returns New if it is non-empty, otherwise Old. The resolvers read
// row values through Data, since the only invariant the payload
// guarantees is that the affected table's primary keys appear in Data;
// the one exception is the root-UPDATE check for a changed primary key,
// which compares Old with New directly.
func (p Payload) Data() Row {
	if len(p.New) > 0 {
		return p.New
	}
	return p.Old
}

// HasPrimaryKeys reports whether every column in keys is present in
// Data(). Truncate payloads are exempt by convention — callers should
// not invoke this for TgOp == OpTruncate.
func (p Payload) HasPrimaryKeys(keys []string) bool {
	data := p.Data()
	for _, k := range keys {
		if _, ok := data[k]; !ok {
			return false
		}
	}
	return true
}

// PrimaryKeyValues extracts keys from Data in order, erroring if any is
// missing. Values are stringified the same way the search index's doc
// id join does.
func (p Payload) PrimaryKeyValues(keys []string) ([]string, error) {
	data := p.Data()
	values := make([]string, len(keys))
	for i, k := range keys {
		v, ok := data[k]
		if !ok {
			return nil, fmt.Errorf("%w: %q missing from payload data for %s.%s", ErrMissingPrimaryKey, k, p.Schema, p.Table)
		}
		values[i] = fmt.Sprint(v)
	}
	return values, nil
}
