package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	bolt "go.etcd.io/bbolt"
	"golang.org/x/term"

	"github.com/cuemby/pgsyncd/pkg/checkpoint"
	"github.com/cuemby/pgsyncd/pkg/config"
	"github.com/cuemby/pgsyncd/pkg/election"
	"github.com/cuemby/pgsyncd/pkg/events"
	"github.com/cuemby/pgsyncd/pkg/executor"
	"github.com/cuemby/pgsyncd/pkg/log"
	"github.com/cuemby/pgsyncd/pkg/metrics"
	"github.com/cuemby/pgsyncd/pkg/orchestrator"
	"github.com/cuemby/pgsyncd/pkg/queue"
	"github.com/cuemby/pgsyncd/pkg/querybuilder"
	"github.com/cuemby/pgsyncd/pkg/resolver"
	"github.com/cuemby/pgsyncd/pkg/searchindex"
	"github.com/cuemby/pgsyncd/pkg/tailer"
	"github.com/cuemby/pgsyncd/pkg/types"
)

var syncRegistry = orchestrator.NewRegistry()

var syncCmd = &cobra.Command{
	Use:     "sync",
	Short:   "Run, poll, or analyze one sync document, or every sync named in a manifest",
	Version: Version,
	RunE:    runSync,
}

func init() {
	f := syncCmd.Flags()
	f.String("config", "", "Path to the sync document (required unless --manifest is given)")
	f.String("manifest", "", "Path to a YAML manifest listing several sync documents to run together")
	f.BoolP("daemon", "d", false, "Run producer and consumer concurrently, indefinitely")
	f.Bool("polling", false, "Call pull() on a fixed interval instead of tailing continuously")
	f.Bool("producer", false, "Disable the consumer (resolver/executor/index); run the tailer only")
	f.Bool("consumer", false, "Disable the producer (notify tailer); drain the existing queue only")
	f.BoolP("analyze", "a", false, "Check index coverage on foreign-key/primary-key columns and exit")
	f.IntP("num_workers", "n", 4, "Number of concurrent queue-consumer workers")
	f.StringP("host", "h", "localhost", "Source database host")
	f.IntP("port", "p", 5432, "Source database port")
	f.StringP("user", "u", "postgres", "Source database user")
	f.String("password", "", "Source database password (prompts if omitted and PGPASSWORD is unset)")
	f.String("sslmode", "", "SSL mode: allow, disable, prefer, require, verify-ca, verify-full")
	f.String("sslrootcert", "", "Path to the SSL root certificate")
	f.BoolP("verbose", "v", false, "Enable debug logging for this run")
	f.String("peers", "", "Comma-separated node=host:port list of other replicas for HA leader election")
	f.String("node-id", "", "This replica's election node id (defaults to $HOSTNAME-<pid>, or pgsyncd-<pid> when HOSTNAME is unset)")
	f.String("election-bind", "127.0.0.1:7433", "This replica's raft transport address")
	f.String("election-dir", "./pgsyncd-election", "Data directory for this sync's election state")
	f.String("metrics-addr", "127.0.0.1:9090", "Bind address for the /metrics, /health, /ready, /live HTTP endpoints")
}

// syncOptions carries the run-mode flags shared by every document a
// --manifest names, parsed once in runSync.
type syncOptions struct {
	daemon          bool
	polling         bool
	disableConsumer bool
	disableProducer bool
	analyze         bool
	numWorkers      int
}

func runSync(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	configPath, _ := f.GetString("config")
	manifestPath, _ := f.GetString("manifest")
	opts := syncOptions{}
	opts.daemon, _ = f.GetBool("daemon")
	opts.polling, _ = f.GetBool("polling")
	opts.disableConsumer, _ = f.GetBool("producer")
	opts.disableProducer, _ = f.GetBool("consumer")
	opts.analyze, _ = f.GetBool("analyze")
	opts.numWorkers, _ = f.GetInt("num_workers")
	verbose, _ := f.GetBool("verbose")

	if verbose {
		log.Init(log.Config{Level: log.DebugLevel, JSONOutput: false})
	}

	if (configPath == "") == (manifestPath == "") {
		return fmt.Errorf("exactly one of --config or --manifest is required")
	}
	if opts.daemon && opts.polling {
		return fmt.Errorf("--daemon and --polling are mutually exclusive")
	}
	if opts.disableConsumer && opts.disableProducer {
		return fmt.Errorf("--producer and --consumer are mutually exclusive")
	}
	if opts.analyze && (opts.daemon || opts.polling) {
		return fmt.Errorf("--analyze is mutually exclusive with --daemon/--polling")
	}

	conn, err := connectionFromFlags(f)
	if err != nil {
		return err
	}

	var docs []*config.Document
	if manifestPath != "" {
		if opts.analyze {
			return fmt.Errorf("--analyze requires --config, not --manifest")
		}
		manifest, err := config.LoadManifest(manifestPath)
		if err != nil {
			return err
		}
		docs, err = manifest.Documents()
		if err != nil {
			return err
		}
		if peers, _ := f.GetString("peers"); peers != "" {
			return fmt.Errorf("--peers is not supported with --manifest; run each sync as its own process for HA")
		}
	} else {
		doc, err := config.Load(configPath)
		if err != nil {
			return err
		}
		docs = []*config.Document{doc}
	}

	metrics.SetVersion(Version)
	metrics.RegisterComponent("source", false, "initializing")
	metrics.RegisterComponent("queue", false, "initializing")
	metrics.RegisterComponent("index", false, "initializing")
	startMetricsServer(f)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if len(docs) == 1 {
		return runDocSync(ctx, f, conn, docs[0], opts)
	}

	errCh := make(chan error, len(docs))
	var wg sync.WaitGroup
	for _, doc := range docs {
		wg.Add(1)
		go func(doc *config.Document) {
			defer wg.Done()
			if err := runDocSync(ctx, f, conn, doc, opts); err != nil {
				errCh <- fmt.Errorf("sync %q: %w", doc.SyncName(), err)
				cancel()
			}
		}(doc)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

// runDocSync runs one sync document end to end: opens its connections,
// wires C1-C8 together, and runs Run/Poll/Pull/analyze per opts. Called
// once directly for a --config invocation, or once per manifest entry
// (concurrently) for a --manifest invocation.
func runDocSync(ctx context.Context, f *pflag.FlagSet, conn config.Connection, doc *config.Document, opts syncOptions) error {
	tr, err := doc.BuildTree()
	if err != nil {
		return err
	}
	syncName := doc.SyncName()

	pool, err := openPool(ctx, conn, doc.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	qb := querybuilder.NewPgQueryBuilder(pool)
	metrics.RegisterComponent("source", true, "ready")

	if opts.analyze {
		return runAnalyze(ctx, pool, tr)
	}

	esClient, err := newElasticsearchClient()
	if err != nil {
		return err
	}
	idx, err := searchindex.NewESClient(esClient, "", false)
	if err != nil {
		return err
	}
	metrics.RegisterComponent("index", true, "ready")

	res := resolver.New(tr, qb, idx, resolver.Config{
		Index:           doc.Index,
		FilterChunkSize: envInt("FILTER_CHUNK_SIZE", 100),
	})
	exec := executor.New(qb, executor.Config{
		Index:         doc.Index,
		RoutingColumn: doc.Routing,
		Pipeline:      doc.Pipeline,
		MetaField:     "_meta",
		AttachType:    idx.Capability().SupportsTypeField,
	})

	cpStore, err := openCheckpointStore(ctx, syncName)
	if err != nil {
		return err
	}
	defer cpStore.Teardown(ctx)
	if err := cpStore.Validate(ctx); err != nil {
		return err
	}

	q, closeQueue, err := openQueue(syncName)
	if err != nil {
		return err
	}
	defer closeQueue()
	metrics.RegisterComponent("queue", true, "ready")

	cfg := orchestrator.Config{
		SyncName:                       syncName,
		Index:                          doc.Index,
		NumWorkers:                     opts.numWorkers,
		PollInterval:                   envDuration("POLL_INTERVAL", 5*time.Second),
		PollTimeout:                    envDuration("POLL_TIMEOUT", 1*time.Second),
		LogInterval:                    envDuration("LOG_INTERVAL", 30*time.Second),
		ReplicationSlotCleanupInterval: envDuration("REPLICATION_SLOT_CLEANUP_INTERVAL", time.Minute),
		LogicalSlotChunkSize:           envInt("LOGICAL_SLOT_CHUNK_SIZE", 5000),
		NotifyChunkSize:                envInt("REDIS_WRITE_CHUNK_SIZE", 1000),
		DisableProducer:                opts.disableProducer,
		DisableConsumer:                opts.disableConsumer,
	}

	broker := events.NewBroker()
	broker.Start()
	defer broker.Stop()

	deps := orchestrator.Deps{
		Tree:       tr,
		Checkpoint: cpStore,
		Queue:      q,
		Source:     qb,
		Resolver:   res,
		Executor:   exec,
		Index:      idx,
		Events:     broker,
	}

	if !opts.disableProducer {
		notifyConn, err := openReplicationConn(ctx, conn, doc.Database)
		if err != nil {
			return err
		}
		defer notifyConn.Close(context.Background())
		deps.Notify = tailer.NewNotifyTailer(notifyConn, doc.Database, doc.Index, tr.Schemas())

		slotConn, err := openReplicationConn(ctx, conn, doc.Database)
		if err != nil {
			return err
		}
		defer slotConn.Close(context.Background())
		deps.Slot = tailer.NewSlotTailer(slotConn, syncName)
	}

	if err := syncRegistry.Acquire(syncName); err != nil {
		return err
	}
	defer syncRegistry.Release(syncName)

	var elector *election.Elector
	if peers, _ := f.GetString("peers"); peers != "" {
		elector, err = startElection(f, syncName, peers)
		if err != nil {
			return err
		}
		defer elector.Shutdown()
	}

	orch := orchestrator.New(cfg, deps)

	collector := metrics.NewCollector(syncName, orchestratorStatsSource{orch})
	collector.Start()
	defer collector.Stop()

	switch {
	case opts.daemon:
		err = waitForLeadership(ctx, elector, broker, syncName, func() error { return orch.Run(ctx) })
	case opts.polling:
		err = waitForLeadership(ctx, elector, broker, syncName, func() error { return orch.Poll(ctx) })
	default:
		err = orch.Pull(ctx)
	}

	if errors.Is(err, types.ErrOperational) {
		log.WithSync(syncName).Error().Err(err).Msg("operational error, terminating immediately")
		os.Exit(-1)
	}
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// waitForLeadership blocks fn from running until elector reports this
// replica is the leader (or elector is nil, for a single-replica run).
func waitForLeadership(ctx context.Context, elector *election.Elector, broker *events.Broker, syncName string, fn func() error) error {
	if elector == nil {
		metrics.ElectionIsLeader.WithLabelValues(syncName).Set(1)
		return fn()
	}
	for !elector.IsLeader() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case leading := <-elector.LeaderChanges():
			if leading {
				metrics.ElectionIsLeader.WithLabelValues(syncName).Set(1)
				broker.Publish(&events.Event{Type: events.EventLeaderAcquired, SyncName: syncName})
				return fn()
			}
			metrics.ElectionIsLeader.WithLabelValues(syncName).Set(0)
			broker.Publish(&events.Event{Type: events.EventLeaderLost, SyncName: syncName})
		}
	}
	metrics.ElectionIsLeader.WithLabelValues(syncName).Set(1)
	broker.Publish(&events.Event{Type: events.EventLeaderAcquired, SyncName: syncName})
	return fn()
}

// orchestratorStatsSource adapts *orchestrator.Orchestrator to
// metrics.StatsSource, converting orchestrator.Snapshot to
// metrics.Snapshot at this leaf package rather than having pkg/metrics
// import pkg/orchestrator directly (which would cycle back through
// pkg/resolver/pkg/executor/pkg/searchindex importing pkg/metrics).
type orchestratorStatsSource struct {
	orch *orchestrator.Orchestrator
}

func (s orchestratorStatsSource) Stats() metrics.Snapshot {
	snap := s.orch.Stats()
	return metrics.Snapshot{
		Indexed:    snap.Indexed,
		Deleted:    snap.Deleted,
		Checkpoint: snap.Checkpoint,
		QueueSize:  snap.QueueSize,
	}
}

// startMetricsServer starts the /metrics, /health, /ready, /live HTTP
// endpoints in the background, mirroring the teacher's
// cmd/warren/main.go metrics-server goroutine.
func startMetricsServer(f *pflag.FlagSet) {
	addr, _ := f.GetString("metrics-addr")
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/health", metrics.HealthHandler())
	mux.Handle("/ready", metrics.ReadyHandler())
	mux.Handle("/live", metrics.LivenessHandler())
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Logger.Error().Err(err).Str("addr", addr).Msg("metrics server exited")
		}
	}()
}

func connectionFromFlags(f *pflag.FlagSet) (config.Connection, error) {
	host, _ := f.GetString("host")
	port, _ := f.GetInt("port")
	user, _ := f.GetString("user")
	password, _ := f.GetString("password")
	sslmode, _ := f.GetString("sslmode")
	sslrootcert, _ := f.GetString("sslrootcert")

	if sslmode != "" && !config.ValidSSLMode(sslmode) {
		return config.Connection{}, fmt.Errorf("invalid --sslmode %q", sslmode)
	}

	if password == "" {
		if env := os.Getenv("PGPASSWORD"); env != "" {
			password = env
		} else if term.IsTerminal(int(os.Stdin.Fd())) {
			fmt.Fprint(os.Stderr, "Password: ")
			raw, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Fprintln(os.Stderr)
			if err != nil {
				return config.Connection{}, fmt.Errorf("reading password: %w", err)
			}
			password = string(raw)
		}
	}

	return config.Connection{
		Host:        host,
		Port:        port,
		User:        user,
		Password:    password,
		SSLMode:     sslmode,
		SSLRootCert: sslrootcert,
	}, nil
}

func openCheckpointStore(ctx context.Context, syncName string) (checkpoint.Store, error) {
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		return checkpoint.NewRedisStore(client, envString("CHECKPOINT_REDIS_NAMESPACE", "pgsyncd"), syncName), nil
	}
	dir := envString("CHECKPOINT_PATH", ".")
	return checkpoint.NewFileStore(dir, syncName), nil
}

func openQueue(syncName string) (queue.Queue, func(), error) {
	if url := os.Getenv("REDIS_URL"); url != "" {
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, nil, fmt.Errorf("parsing REDIS_URL: %w", err)
		}
		client := redis.NewClient(opts)
		return queue.NewRedisQueue(client, syncName), func() { client.Close() }, nil
	}
	dir := envString("QUEUE_PATH", ".")
	db, err := bolt.Open(fmt.Sprintf("%s/%s.queue.db", dir, syncName), 0o600, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening bolt queue database: %w", err)
	}
	q, err := queue.NewBoltQueue(db, syncName)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return q, func() { db.Close() }, nil
}

func newElasticsearchClient() (*elasticsearch.Client, error) {
	cfg := elasticsearch.Config{
		Addresses: []string{envString("ELASTICSEARCH_URL", "http://localhost:9200")},
	}
	return elasticsearch.NewClient(cfg)
}

func startElection(f *pflag.FlagSet, syncName, peers string) (*election.Elector, error) {
	nodeID, _ := f.GetString("node-id")
	if nodeID == "" {
		nodeID = fmt.Sprintf("%s-%d", envString("HOSTNAME", "pgsyncd"), os.Getpid())
	}
	bindAddr, _ := f.GetString("election-bind")
	dataDir, _ := f.GetString("election-dir")

	peerList, err := parsePeers(peers)
	if err != nil {
		return nil, err
	}

	return election.New(election.Config{
		SyncName: syncName,
		NodeID:   nodeID,
		BindAddr: bindAddr,
		DataDir:  dataDir,
		Peers:    peerList,
	})
}
