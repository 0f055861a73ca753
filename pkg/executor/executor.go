package executor

import (
	"context"
	"fmt"

	"github.com/cuemby/pgsyncd/pkg/metrics"
	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/tree"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// Transform is the plugin hook applied to every root row before it is
// wrapped as a bulk op. Returning ok=false drops the row entirely.
type Transform func(row map[string]any) (out map[string]any, ok bool)

// Config configures one Executor instance for one sync.
type Config struct {
	Index string

	// RoutingColumn, if set, names the root-row column whose value
	// becomes the bulk op's _routing.
	RoutingColumn string

	// Pipeline, if set, is attached to every emitted bulk op for
	// downstream ingest processing.
	Pipeline string

	// MetaField names the document field the META section is nested
	// under; defaults to "_meta".
	MetaField string

	// AttachType, when true, sets BulkOp.Type to "_doc" (engines with
	// major_version < 7 that are not the alternative engine).
	AttachType bool

	Transform Transform
}

// Executor drives a querybuilder.QueryBuilder to materialize root
// documents for a FilterSet and emits them as bulk index operations.
type Executor struct {
	qb  querybuilder.QueryBuilder
	cfg Config

	emitted int
	dropped int
}

// New returns an Executor bound to qb and cfg.
func New(qb querybuilder.QueryBuilder, cfg Config) *Executor {
	if cfg.MetaField == "" {
		cfg.MetaField = "_meta"
	}
	return &Executor{qb: qb, cfg: cfg}
}

// Emitted returns the running count of bulk ops emitted so far, for the
// status reporter.
func (e *Executor) Emitted() int { return e.emitted }

// Dropped returns the running count of rows the transform hook dropped.
func (e *Executor) Dropped() int { return e.dropped }

// Sync streams bulk index ops for every root document matching filters
// (and, if both non-nil, whose root row's commit falls in
// [txmin, txmax]). The returned channels are closed when the underlying
// iterator is exhausted or the context is canceled; at most one error is
// ever sent on the error channel.
func (e *Executor) Sync(ctx context.Context, tr *tree.Tree, filters types.FilterSet, txmin, txmax *int64) (<-chan types.BulkOp, <-chan error) {
	ops := make(chan types.BulkOp)
	errs := make(chan error, 1)

	go func() {
		timer := metrics.NewTimer()
		defer timer.ObserveDurationVec(metrics.ExecuteDuration, e.cfg.Index)
		defer close(ops)
		defer close(errs)

		iter, err := e.qb.FetchRootDocuments(ctx, tr, filters, txmin, txmax)
		if err != nil {
			errs <- fmt.Errorf("fetching root documents: %w", err)
			return
		}
		defer iter.Close()

		for {
			select {
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			default:
			}

			row, err := iter.Next(ctx)
			if err != nil {
				errs <- fmt.Errorf("reading root document: %w", err)
				return
			}
			if row == nil {
				return
			}

			op, ok, err := e.buildOp(tr, row)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				e.dropped++
				continue
			}

			select {
			case ops <- op:
				e.emitted++
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
		}
	}()

	return ops, errs
}

func (e *Executor) buildOp(tr *tree.Tree, row *querybuilder.RootRow) (types.BulkOp, bool, error) {
	source := row.Row
	if e.cfg.Transform != nil {
		transformed, ok := e.cfg.Transform(source)
		if !ok {
			return types.BulkOp{}, false, nil
		}
		source = transformed
	}

	docID, err := types.DocID(row.PrimaryKeys)
	if err != nil {
		return types.BulkOp{}, false, fmt.Errorf("computing document id: %w", err)
	}

	if source == nil {
		source = make(map[string]any, 1)
	}
	source[e.cfg.MetaField] = row.Meta

	op := types.BulkOp{
		OpType:   types.BulkIndex,
		ID:       docID,
		Index:    e.cfg.Index,
		Source:   source,
		Pipeline: e.cfg.Pipeline,
	}
	if e.cfg.AttachType {
		op.Type = "_doc"
	}
	if e.cfg.RoutingColumn != "" {
		if v, ok := row.Row[e.cfg.RoutingColumn]; ok {
			op.Routing = fmt.Sprint(v)
		}
	}
	return op, true, nil
}
