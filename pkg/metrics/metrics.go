package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Producer metrics
	ReplicationLag = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgsyncd_replication_lag_bytes",
			Help: "Bytes between the logical slot's confirmed_flush_lsn and the server's current WAL position",
		},
		[]string{"sync"},
	)

	NotifyEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_notify_events_total",
			Help: "Total NOTIFY payloads received on the sync's channel",
		},
		[]string{"sync"},
	)

	WALChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_wal_changes_total",
			Help: "Total row changes decoded from the logical replication slot",
		},
		[]string{"op"},
	)

	// Queue metrics
	QueueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgsyncd_queue_depth",
			Help: "Number of pending change payloads in the queue",
		},
		[]string{"sync"},
	)

	QueueEnqueuedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_queue_enqueued_total",
			Help: "Total change payloads enqueued",
		},
		[]string{"sync"},
	)

	// Checkpoint metrics
	CheckpointValue = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgsyncd_checkpoint_value",
			Help: "Last txid committed to the checkpoint store",
		},
		[]string{"sync"},
	)

	// Consumer metrics
	ResolveDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgsyncd_resolve_duration_seconds",
			Help:    "Time to resolve a run of change payloads into a FilterSet",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sync"},
	)

	ExecuteDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pgsyncd_execute_duration_seconds",
			Help:    "Time to materialize and bulk-index root documents for a FilterSet",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sync"},
	)

	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_documents_indexed_total",
			Help: "Total root documents written to the search index",
		},
		[]string{"sync"},
	)

	DocumentsDeletedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_documents_deleted_total",
			Help: "Total root documents deleted from the search index",
		},
		[]string{"sync"},
	)

	BulkErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pgsyncd_bulk_errors_total",
			Help: "Total bulk index operations that the search index rejected",
		},
		[]string{"sync"},
	)

	// Election metrics
	ElectionIsLeader = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "pgsyncd_election_is_leader",
			Help: "Whether this replica holds leadership for the sync (1 = leader, 0 = follower)",
		},
		[]string{"sync"},
	)
)

func init() {
	prometheus.MustRegister(ReplicationLag)
	prometheus.MustRegister(NotifyEventsTotal)
	prometheus.MustRegister(WALChangesTotal)
	prometheus.MustRegister(QueueDepth)
	prometheus.MustRegister(QueueEnqueuedTotal)
	prometheus.MustRegister(CheckpointValue)
	prometheus.MustRegister(ResolveDuration)
	prometheus.MustRegister(ExecuteDuration)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(DocumentsDeletedTotal)
	prometheus.MustRegister(BulkErrorsTotal)
	prometheus.MustRegister(ElectionIsLeader)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
