package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pglogrepl"

	"github.com/cuemby/pgsyncd/pkg/events"
	"github.com/cuemby/pgsyncd/pkg/log"
	"github.com/cuemby/pgsyncd/pkg/tailer"
	"github.com/cuemby/pgsyncd/pkg/types"
)

// Run starts daemon mode: the producer and consumer loops run
// concurrently (subject to cfg.DisableProducer/DisableConsumer),
// alongside the slot-truncation and status workers, until ctx is
// canceled or a fatal error occurs on any worker.
func (o *Orchestrator) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 4)

	runWorker := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.WithSync(o.cfg.SyncName).Error().Err(err).Str("worker", name).Msg("worker exited")
				select {
				case errCh <- fmt.Errorf("%s: %w", name, err):
				default:
				}
				cancel()
			}
		}()
	}

	if !o.cfg.DisableProducer {
		runWorker("producer", o.producerLoop)
		runWorker("truncate", o.truncateLoop)
	}
	if !o.cfg.DisableConsumer {
		for i := 0; i < max(o.cfg.NumWorkers, 1); i++ {
			runWorker("consumer", o.consumerLoop)
		}
	}
	runWorker("status", o.statusLoop)

	wg.Wait()
	select {
	case err := <-errCh:
		return err
	default:
		return ctx.Err()
	}
}

// Poll runs polling mode: call Pull on a fixed interval until ctx is
// canceled.
func (o *Orchestrator) Poll(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.PollInterval)
	defer ticker.Stop()

	if err := o.Pull(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.Pull(ctx); err != nil {
				return err
			}
		}
	}
}

// producerLoop feeds the notify tailer's output onto the durable queue,
// flushing on batch-full or POLL_TIMEOUT, and calls Pull once after the
// first flush to close the startup gap per spec.md §4.7.
func (o *Orchestrator) producerLoop(ctx context.Context) error {
	var pulledStartupGap bool
	flush := func(fctx context.Context, payloads []types.Payload) error {
		if err := o.deps.Queue.Push(fctx, payloads); err != nil {
			return fmt.Errorf("%w: pushing to queue: %v", types.ErrOperational, err)
		}
		if !pulledStartupGap {
			pulledStartupGap = true
			if err := o.Pull(fctx); err != nil {
				return err
			}
		}
		return nil
	}

	if err := o.deps.Notify.Listen(ctx); err != nil {
		return err
	}
	return o.deps.Notify.Run(ctx, o.cfg.NotifyChunkSize, o.cfg.PollTimeout, flush)
}

// consumerLoop pops batches off the queue and applies them via
// processBatch until ctx is canceled.
func (o *Orchestrator) consumerLoop(ctx context.Context) error {
	const popSize = 500
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		payloads, err := o.deps.Queue.Pop(ctx, popSize)
		if err != nil {
			return fmt.Errorf("popping queue: %w", err)
		}
		if len(payloads) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(o.cfg.PollInterval):
			}
			continue
		}

		if size, err := o.deps.Queue.Size(ctx); err == nil {
			o.stats.RecordQueueSize(size)
		}

		if err := o.processBatch(ctx, payloads); err != nil {
			return fmt.Errorf("processing batch: %w", err)
		}
	}
}

// truncateLoop advances the logical slot with no upper bound every
// ReplicationSlotCleanupInterval, once a pull() has armed it.
func (o *Orchestrator) truncateLoop(ctx context.Context) error {
	if o.deps.Slot == nil {
		<-ctx.Done()
		return ctx.Err()
	}

	ticker := time.NewTicker(o.cfg.ReplicationSlotCleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !o.truncateArmed.Load() {
				continue
			}
			bounds := tailerUnboundedBounds()
			if _, err := o.deps.Slot.Peek(ctx, bounds); err != nil {
				return fmt.Errorf("peeking logical slot for truncation: %w", err)
			}
			if _, err := o.deps.Slot.Advance(ctx, bounds); err != nil {
				return fmt.Errorf("advancing logical slot for truncation: %w", err)
			}
			o.truncateArmed.Store(false)
			o.deps.Events.Publish(&events.Event{Type: events.EventSlotTruncated, SyncName: o.cfg.SyncName})
		}
	}
}

// statusLoop logs one summary line every LogInterval, per spec.md
// §4.7's status worker.
func (o *Orchestrator) statusLoop(ctx context.Context) error {
	ticker := time.NewTicker(o.cfg.LogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			snap := o.Stats()
			log.WithSync(o.cfg.SyncName).Info().
				Int64("checkpoint", snap.Checkpoint).
				Int64("queue", snap.QueueSize).
				Int64("indexed", snap.Indexed).
				Int64("deleted", snap.Deleted).
				Msg("status")
		}
	}
}

func tailerUnboundedBounds() tailer.SlotBounds {
	return tailer.SlotBounds{MaxChanges: 0, UptoLSN: pglogrepl.LSN(0)}
}

