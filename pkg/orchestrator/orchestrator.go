package orchestrator

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jackc/pglogrepl"

	"github.com/cuemby/pgsyncd/pkg/checkpoint"
	"github.com/cuemby/pgsyncd/pkg/events"
	"github.com/cuemby/pgsyncd/pkg/executor"
	"github.com/cuemby/pgsyncd/pkg/log"
	"github.com/cuemby/pgsyncd/pkg/queue"
	"github.com/cuemby/pgsyncd/pkg/resolver"
	"github.com/cuemby/pgsyncd/pkg/searchindex"
	"github.com/cuemby/pgsyncd/pkg/tailer"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// SourceInfo answers the two source-database facts pull() needs to
// bound its forward scan: the current transaction id and the current
// WAL position. Backed by querybuilder.PgQueryBuilder at runtime and a
// querybuilder.FakeQueryBuilder in tests.
type SourceInfo interface {
	CurrentTxID(ctx context.Context) (int64, error)
	CurrentWALLSN(ctx context.Context) (string, error)
}

// Config parameterizes one Orchestrator. Names mirror spec.md §4.7 and
// §5's tunables directly.
type Config struct {
	SyncName string
	Index    string

	NumWorkers                     int
	PollInterval                   time.Duration
	PollTimeout                    time.Duration
	LogInterval                    time.Duration
	ReplicationSlotCleanupInterval time.Duration
	LogicalSlotChunkSize           int
	NotifyChunkSize                int

	// DisableProducer / DisableConsumer implement the --producer /
	// --consumer CLI toggles (mutually exclusive; at most one is true).
	DisableProducer bool
	DisableConsumer bool
}

// Deps groups the collaborators an Orchestrator wires together. All
// fields are required except Notify/Slot, which are nil when
// DisableProducer is set (a consumer-only process has no source
// connection).
type Deps struct {
	Tree       *tree.Tree
	Checkpoint checkpoint.Store
	Queue      queue.Queue
	Source     SourceInfo
	Notify     *tailer.NotifyTailer
	Slot       *tailer.SlotTailer
	Resolver   *resolver.Resolver
	Executor   *executor.Executor
	Index      searchindex.Client

	// Events, if set, receives lifecycle notifications (pull completed,
	// checkpoint advanced, bulk errors). Optional; a nil Broker drops
	// every Publish call.
	Events *events.Broker
}

// Orchestrator is C7: it wires C1 (Checkpoint)-C6 (Executor) and C8
// (Index) together and runs them in one of three modes (Run/Poll/Pull).
type Orchestrator struct {
	cfg  Config
	deps Deps

	truncateArmed atomic.Bool
	stats         Stats
}

// New returns an Orchestrator ready to run. Callers should Acquire the
// sync name from a Registry before calling Run/Poll, and Release it
// when the Orchestrator stops.
func New(cfg Config, deps Deps) *Orchestrator {
	return &Orchestrator{cfg: cfg, deps: deps}
}

// Stats returns a snapshot of the orchestrator's running counters, for
// the status worker and for pkg/metrics to export as gauges.
func (o *Orchestrator) Stats() Snapshot {
	return o.stats.Snapshot()
}

// Pull runs spec.md §4.7's pull() sequence once: forward-scan the index
// to the current transaction id, drain the logical slot to catch
// anything committed while the scan ran, advance the checkpoint, and
// arm the slot-truncation worker.
func (o *Orchestrator) Pull(ctx context.Context) error {
	txmin, err := o.deps.Checkpoint.Get(ctx)
	if err != nil {
		return fmt.Errorf("reading checkpoint: %w", err)
	}
	txmax, err := o.deps.Source.CurrentTxID(ctx)
	if err != nil {
		return fmt.Errorf("reading current txid: %w", err)
	}
	lsnText, err := o.deps.Source.CurrentWALLSN(ctx)
	if err != nil {
		return fmt.Errorf("reading current wal lsn: %w", err)
	}
	uptoLSN, err := pglogrepl.ParseLSN(lsnText)
	if err != nil {
		return fmt.Errorf("parsing wal lsn %q: %w", lsnText, err)
	}

	txmaxCopy := txmax
	ops, errs := o.deps.Executor.Sync(ctx, o.deps.Tree, types.NewFilterSet(), txmin, &txmaxCopy)
	result, sinkErr := o.sink(ctx, ops, errs)
	if sinkErr != nil {
		return fmt.Errorf("forward-scan sync: %w", sinkErr)
	}
	log.WithSync(o.cfg.SyncName).Info().
		Int("indexed", result.Indexed).Int("deleted", result.Deleted).
		Msg("pull: forward scan complete")

	if o.deps.Slot != nil {
		bounds := tailer.SlotBounds{MaxChanges: o.cfg.LogicalSlotChunkSize, UptoLSN: uptoLSN}
		if _, err := o.deps.Slot.Peek(ctx, bounds); err != nil {
			return fmt.Errorf("peeking logical slot: %w", err)
		}
		payloads, err := o.deps.Slot.Advance(ctx, bounds)
		if err != nil {
			return fmt.Errorf("advancing logical slot: %w", err)
		}
		if len(payloads) > 0 {
			if err := o.processBatch(ctx, payloads); err != nil {
				return fmt.Errorf("applying drained slot changes: %w", err)
			}
		}
	}

	if err := o.deps.Checkpoint.Set(ctx, txmax); err != nil {
		return fmt.Errorf("advancing checkpoint: %w", err)
	}
	o.truncateArmed.Store(true)
	o.stats.RecordCheckpoint(txmax)
	o.deps.Events.Publish(&events.Event{Type: events.EventCheckpointAdvanced, SyncName: o.cfg.SyncName, Message: fmt.Sprintf("txmax=%d", txmax)})
	o.deps.Events.Publish(&events.Event{Type: events.EventPullCompleted, SyncName: o.cfg.SyncName})
	return nil
}

// sink drains ops/errs and bulk-writes them to the index, returning the
// first error seen on either channel.
func (o *Orchestrator) sink(ctx context.Context, ops <-chan types.BulkOp, errs <-chan error) (*searchindex.BulkResult, error) {
	var batch []types.BulkOp
	var sinkErr error

	for ops != nil || errs != nil {
		select {
		case op, ok := <-ops:
			if !ok {
				ops = nil
				continue
			}
			batch = append(batch, op)
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil && sinkErr == nil {
				sinkErr = err
			}
		}
	}
	if sinkErr != nil {
		return nil, sinkErr
	}
	if len(batch) == 0 {
		return &searchindex.BulkResult{}, nil
	}
	result, err := o.deps.Index.Bulk(ctx, o.cfg.Index, batch)
	if err != nil {
		o.deps.Events.Publish(&events.Event{Type: events.EventBulkError, SyncName: o.cfg.SyncName, Message: err.Error()})
		return nil, fmt.Errorf("bulk writing to index: %w", err)
	}
	o.stats.AddIndexed(result.Indexed)
	o.stats.AddDeleted(result.Deleted)
	return result, nil
}

// processBatch applies spec.md §4.7's view-substitution preprocessing,
// splits the batch on (tg_op, table) boundaries (grouping commuting
// INSERTs by table when the whole batch is INSERTs), resolves each run
// through C5, executes through C6, and writes through C8. It advances
// the checkpoint per run using the min(xmins)-1 rule, skipping runs
// whose xmins are all nil (TRUNCATE-only).
func (o *Orchestrator) processBatch(ctx context.Context, payloads []types.Payload) error {
	substituteViewTables(o.deps.Tree, payloads)

	for _, run := range splitRuns(payloads) {
		result, err := o.deps.Resolver.Resolve(ctx, run)
		if err != nil {
			return fmt.Errorf("resolving run: %w", err)
		}

		for _, op := range result.DirectOps {
			if _, err := o.deps.Index.Bulk(ctx, o.cfg.Index, []types.BulkOp{op}); err != nil {
				return fmt.Errorf("applying direct bulk op: %w", err)
			}
			o.stats.AddDeleted(1)
		}

		if !result.Filters.IsEmpty() {
			for _, chunk := range o.deps.Resolver.ChunkForExecution(result.Filters) {
				ops, errs := o.deps.Executor.Sync(ctx, o.deps.Tree, chunk, nil, nil)
				if _, err := o.sink(ctx, ops, errs); err != nil {
					return fmt.Errorf("executing resolved filters: %w", err)
				}
			}
		}

		if result.CheckpointEligible {
			if err := o.advanceCheckpointForRun(ctx, run); err != nil {
				return err
			}
		}
	}
	o.deps.Events.Publish(&events.Event{Type: events.EventBatchApplied, SyncName: o.cfg.SyncName, Message: fmt.Sprintf("%d payloads", len(payloads))})
	return nil
}

func (o *Orchestrator) advanceCheckpointForRun(ctx context.Context, run []types.Payload) error {
	var minXmin *int64
	for _, p := range run {
		if p.Xmin == nil {
			continue
		}
		if minXmin == nil || *p.Xmin < *minXmin {
			v := *p.Xmin
			minXmin = &v
		}
	}
	if minXmin == nil {
		return nil
	}

	txmax, err := o.deps.Source.CurrentTxID(ctx)
	if err != nil {
		return fmt.Errorf("reading current txid for checkpoint advance: %w", err)
	}
	next := *minXmin
	if txmax < next {
		next = txmax
	}
	next--

	if err := o.deps.Checkpoint.Set(ctx, next); err != nil {
		return fmt.Errorf("advancing checkpoint: %w", err)
	}
	o.stats.RecordCheckpoint(next)
	return nil
}

// substituteViewTables rewrites each payload's Table to the owning
// node's table when Table names one of that node's BaseTables,
// matching the original implementation's `_on_publish` rewrite so a
// change to an underlying base table dispatches as a change to the
// view node the tree actually tracks.
func substituteViewTables(tr *tree.Tree, payloads []types.Payload) {
	for i, p := range payloads {
		for _, n := range tr.TraverseBreadthFirst() {
			if containsTable(n.BaseTables, p.Table) {
				payloads[i].Table = n.Table
				break
			}
		}
	}
}

func containsTable(tables []string, target string) bool {
	for _, t := range tables {
		if t == target {
			return true
		}
	}
	return false
}

// splitRuns partitions a batch into maximal runs sharing (tg_op,
// table), except when every payload in the batch is an INSERT: inserts
// commute, so in that case runs are grouped by table alone regardless
// of position, per spec.md §4.7's insert-reordering optimization.
func splitRuns(payloads []types.Payload) [][]types.Payload {
	if len(payloads) == 0 {
		return nil
	}
	if allInserts(payloads) {
		groups := make(map[string][]types.Payload)
		var order []string
		for _, p := range payloads {
			key := p.Schema + "." + p.Table
			if _, ok := groups[key]; !ok {
				order = append(order, key)
			}
			groups[key] = append(groups[key], p)
		}
		runs := make([][]types.Payload, 0, len(order))
		for _, key := range order {
			runs = append(runs, groups[key])
		}
		return runs
	}

	var runs [][]types.Payload
	start := 0
	for i := 1; i <= len(payloads); i++ {
		if i == len(payloads) || !sameRunKey(payloads[i-1], payloads[i]) {
			runs = append(runs, payloads[start:i])
			start = i
		}
	}
	return runs
}

func sameRunKey(a, b types.Payload) bool {
	return a.TgOp == b.TgOp && a.Schema == b.Schema && a.Table == b.Table
}

func allInserts(payloads []types.Payload) bool {
	for _, p := range payloads {
		if p.TgOp != types.OpInsert {
			return false
		}
	}
	return true
}
