package tailer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/cuemby/pgsyncd/pkg/log"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// notifyMessage is the JSON body delivered on the NOTIFY channel by the
// source database's trigger function.
type notifyMessage struct {
	Indices []string   `json:"indices"`
	Schema  string     `json:"schema"`
	Table   string     `json:"table"`
	TgOp    types.TgOp `json:"tg_op"`
	Old     types.Row  `json:"old"`
	New     types.Row  `json:"new"`
	Xmin    *int64     `json:"xmin"`
}

// NotifyTailer owns the LISTEN connection and batches accepted
// notifications into chunks for the event queue.
type NotifyTailer struct {
	conn         *pgx.Conn
	channel      string
	index        string
	knownSchemas map[string]struct{}
}

// NewNotifyTailer returns a NotifyTailer bound to conn, listening on
// channel (the source database's name), accepting only messages whose
// indices list contains index and whose schema is in knownSchemas.
func NewNotifyTailer(conn *pgx.Conn, channel, index string, knownSchemas []string) *NotifyTailer {
	schemas := make(map[string]struct{}, len(knownSchemas))
	for _, s := range knownSchemas {
		schemas[s] = struct{}{}
	}
	return &NotifyTailer{conn: conn, channel: channel, index: index, knownSchemas: schemas}
}

// Listen issues the LISTEN command. Call once before Run.
func (t *NotifyTailer) Listen(ctx context.Context) error {
	_, err := t.conn.Exec(ctx, fmt.Sprintf("LISTEN %s", pgx.Identifier{t.channel}.Sanitize()))
	if err != nil {
		return fmt.Errorf("%w: issuing LISTEN on %q: %v", types.ErrOperational, t.channel, err)
	}
	return nil
}

// Run blocks, buffering accepted Payloads and invoking flush whenever
// the buffer reaches chunkSize, pollTimeout elapses with a non-empty
// buffer, or ctx is canceled (a final flush is attempted before
// returning). Operational errors on the connection are returned
// wrapped in types.ErrOperational — the caller is expected to treat
// this as fatal and terminate the process per §4.4.
func (t *NotifyTailer) Run(ctx context.Context, chunkSize int, pollTimeout time.Duration, flush func(context.Context, []types.Payload) error) error {
	var buf []types.Payload

	doFlush := func() error {
		if len(buf) == 0 {
			return nil
		}
		batch := buf
		buf = nil
		return flush(ctx, batch)
	}

	for {
		waitCtx, cancel := context.WithTimeout(ctx, pollTimeout)
		notification, err := t.conn.WaitForNotification(waitCtx)
		cancel()

		if err != nil {
			if ctx.Err() != nil {
				_ = doFlush()
				return ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				if ferr := doFlush(); ferr != nil {
					return ferr
				}
				continue
			}
			return fmt.Errorf("%w: waiting for notification: %v", types.ErrOperational, err)
		}

		payload, ok, err := t.decode(notification.Payload)
		if err != nil {
			return fmt.Errorf("%w: %v", types.ErrParse, err)
		}
		if !ok {
			continue
		}

		buf = append(buf, payload)
		if len(buf) >= chunkSize {
			if err := doFlush(); err != nil {
				return err
			}
		}
	}
}

func (t *NotifyTailer) decode(raw string) (types.Payload, bool, error) {
	var msg notifyMessage
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return types.Payload{}, false, fmt.Errorf("decoding notify payload: %w", err)
	}

	if !containsString(msg.Indices, t.index) {
		return types.Payload{}, false, nil
	}
	if _, ok := t.knownSchemas[msg.Schema]; !ok {
		log.WithComponent("tailer").Debug().Str("schema", msg.Schema).Msg("discarding notification for unknown schema")
		return types.Payload{}, false, nil
	}
	if !msg.TgOp.Valid() {
		return types.Payload{}, false, fmt.Errorf("%w: unrecognized tg_op %q", types.ErrUnknownTgOp, msg.TgOp)
	}

	return types.Payload{
		TgOp:   msg.TgOp,
		Schema: msg.Schema,
		Table:  msg.Table,
		Old:    msg.Old,
		New:    msg.New,
		Xmin:   msg.Xmin,
	}, true, nil
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}
