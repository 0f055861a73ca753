package tailer

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pglogrepl"
	"github.com/jackc/pgx/v5"

	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// SlotBounds names the bounds a Peek or Advance call is limited to: at
// most MaxChanges rows, none past UptoLSN. An UptoLSN of
// pglogrepl.LSN(0) means unbounded.
type SlotBounds struct {
	MaxChanges int
	UptoLSN    pglogrepl.LSN
}

func (b SlotBounds) equal(other SlotBounds) bool {
	return b.MaxChanges == other.MaxChanges && b.UptoLSN == other.UptoLSN
}

// SlotTailer owns the logical replication slot connection. It exposes
// the Peek/Advance pair described in §4.4: Peek is a non-destructive
// read of the next batch bounded by upto_lsn, and Advance re-reads the
// same rows destructively. Advance's bounds must equal the immediately
// preceding Peek's — calling it with different bounds, or calling it
// without a preceding Peek, is a programming error the tailer refuses
// rather than silently reinterpreting.
type SlotTailer struct {
	conn     *pgx.Conn
	slotName string
	lastPeek *SlotBounds
}

// NewSlotTailer returns a SlotTailer bound to conn, reading the named
// logical replication slot. The slot is expected to already exist,
// created with the wal2json output plugin.
func NewSlotTailer(conn *pgx.Conn, slotName string) *SlotTailer {
	return &SlotTailer{conn: conn, slotName: slotName}
}

// Peek non-destructively reads up to bounds.MaxChanges rows from the
// slot, none past bounds.UptoLSN, decoding each into a types.Payload.
// It remembers bounds so a subsequent Advance can be checked against
// it.
func (s *SlotTailer) Peek(ctx context.Context, bounds SlotBounds) ([]types.Payload, error) {
	payloads, err := s.query(ctx, "pg_logical_slot_peek_changes", bounds)
	if err != nil {
		return nil, err
	}
	b := bounds
	s.lastPeek = &b
	return payloads, nil
}

// Advance destructively re-reads the slot with the same bounds as the
// preceding Peek, consuming those rows. It returns
// types.ErrBoundsMismatch if bounds differs from the last Peek, or if
// Peek was never called.
func (s *SlotTailer) Advance(ctx context.Context, bounds SlotBounds) ([]types.Payload, error) {
	if s.lastPeek == nil {
		return nil, fmt.Errorf("%w: advance called with no preceding peek", types.ErrBoundsMismatch)
	}
	if !s.lastPeek.equal(bounds) {
		return nil, fmt.Errorf("%w: advance bounds %+v differ from peek bounds %+v", types.ErrBoundsMismatch, bounds, *s.lastPeek)
	}
	payloads, err := s.query(ctx, "pg_logical_slot_get_changes", bounds)
	if err != nil {
		return nil, err
	}
	s.lastPeek = nil
	return payloads, nil
}

func (s *SlotTailer) query(ctx context.Context, fn string, bounds SlotBounds) ([]types.Payload, error) {
	var lsnArg any
	if bounds.UptoLSN != 0 {
		lsnArg = bounds.UptoLSN.String()
	}
	var maxArg any
	if bounds.MaxChanges > 0 {
		maxArg = bounds.MaxChanges
	}

	sql := fmt.Sprintf("SELECT lsn, xid, data FROM %s($1, $2, $3)", pgx.Identifier{fn}.Sanitize())
	rows, err := s.conn.Query(ctx, sql, s.slotName, lsnArg, maxArg)
	if err != nil {
		return nil, fmt.Errorf("%w: calling %s on slot %q: %v", types.ErrOperational, fn, s.slotName, err)
	}
	defer rows.Close()

	var out []types.Payload
	for rows.Next() {
		var lsn string
		var xid int64
		var data string
		if err := rows.Scan(&lsn, &xid, &data); err != nil {
			return nil, fmt.Errorf("%w: scanning logical slot row: %v", types.ErrParse, err)
		}
		if strings.HasPrefix(data, "BEGIN") || strings.HasPrefix(data, "COMMIT") {
			continue
		}
		payload, err := querybuilder.DecodeChange(data)
		if err != nil {
			return nil, err
		}
		payload.Xmin = &xid
		out = append(out, payload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: reading logical slot rows: %v", types.ErrOperational, err)
	}
	return out, nil
}
