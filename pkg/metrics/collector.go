package metrics

import "time"

// Snapshot is the subset of an orchestrator's running counters the
// Collector republishes as Prometheus series. It mirrors
// orchestrator.Snapshot field-for-field; callers convert at the wiring
// site rather than pkg/metrics importing pkg/orchestrator directly,
// which would cycle back through pkg/resolver/pkg/executor/
// pkg/searchindex importing pkg/metrics to record their own metrics.
type Snapshot struct {
	Indexed    int64
	Deleted    int64
	Checkpoint int64
	QueueSize  int64
}

// StatsSource is the subset of orchestrator.Orchestrator a Collector needs.
type StatsSource interface {
	Stats() Snapshot
}

// Collector polls one sync's Orchestrator on an interval and republishes
// its Stats as Prometheus series.
type Collector struct {
	sync   string
	source StatsSource
	stopCh chan struct{}

	lastIndexed int64
	lastDeleted int64
}

// NewCollector creates a Collector for one sync name.
func NewCollector(syncName string, source StatsSource) *Collector {
	return &Collector{sync: syncName, source: source, stopCh: make(chan struct{})}
}

// Start begins polling every 15 seconds until Stop is called.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	snap := c.source.Stats()
	QueueDepth.WithLabelValues(c.sync).Set(float64(snap.QueueSize))
	CheckpointValue.WithLabelValues(c.sync).Set(float64(snap.Checkpoint))
	DocumentsIndexedTotal.WithLabelValues(c.sync).Add(float64(snap.Indexed - c.lastIndexed))
	DocumentsDeletedTotal.WithLabelValues(c.sync).Add(float64(snap.Deleted - c.lastDeleted))
	c.lastIndexed, c.lastDeleted = snap.Indexed, snap.Deleted
}
