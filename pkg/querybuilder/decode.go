package querybuilder

import (
	"encoding/json"
	"fmt"

	"github.com/cuemby/pgsyncd/pkg/metrics"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// wal2jsonChange is one element of wal2json's "change" array, the
// logical decoding output format pg_logical_slot_peek_changes /
// pg_logical_slot_get_changes return when the slot was created with the
// wal2json output plugin.
type wal2jsonChange struct {
	Kind         string        `json:"kind"`
	Schema       string        `json:"schema"`
	Table        string        `json:"table"`
	ColumnNames  []string      `json:"columnnames"`
	ColumnValues []any         `json:"columnvalues"`
	OldKeys      *wal2jsonKeys `json:"oldkeys"`
}

type wal2jsonKeys struct {
	KeyNames  []string `json:"keynames"`
	KeyValues []any    `json:"keyvalues"`
}

type wal2jsonEnvelope struct {
	Change []wal2jsonChange `json:"change"`
}

// DecodeChange turns one wal2json-formatted logical change row into a
// Payload, leaving Xmin unset (the caller fills it in from the xid
// column pg_logical_slot_*_changes returns alongside data).
func DecodeChange(data string) (types.Payload, error) {
	var envelope wal2jsonEnvelope
	if err := json.Unmarshal([]byte(data), &envelope); err != nil {
		return types.Payload{}, fmt.Errorf("%w: decoding wal2json change: %v", types.ErrParse, err)
	}
	if len(envelope.Change) == 0 {
		return types.Payload{}, fmt.Errorf("%w: wal2json envelope has no changes", types.ErrParse)
	}

	c := envelope.Change[0]
	var tgOp types.TgOp
	switch c.Kind {
	case "insert":
		tgOp = types.OpInsert
	case "update":
		tgOp = types.OpUpdate
	case "delete":
		tgOp = types.OpDelete
	case "truncate":
		tgOp = types.OpTruncate
	default:
		return types.Payload{}, fmt.Errorf("%w: unrecognized wal2json kind %q", types.ErrUnknownTgOp, c.Kind)
	}

	payload := types.Payload{TgOp: tgOp, Schema: c.Schema, Table: c.Table}
	if tgOp != types.OpDelete && tgOp != types.OpTruncate {
		payload.New = rowFromColumns(c.ColumnNames, c.ColumnValues)
	}
	if c.OldKeys != nil {
		payload.Old = rowFromColumns(c.OldKeys.KeyNames, c.OldKeys.KeyValues)
	} else if tgOp == types.OpDelete {
		payload.Old = rowFromColumns(c.ColumnNames, c.ColumnValues)
	}
	metrics.WALChangesTotal.WithLabelValues(string(tgOp)).Inc()
	return payload, nil
}

func rowFromColumns(names []string, values []any) types.Row {
	row := make(types.Row, len(names))
	for i, name := range names {
		if i < len(values) {
			row[name] = values[i]
		}
	}
	return row
}
