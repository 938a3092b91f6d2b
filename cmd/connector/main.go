// Command connector runs the sensor reconciliation connector: it consumes
// capability events from NATS JetStream, reconciles them into the device and
// endpoint graph, records truthy values as historical samples, and maintains
// a durable sync heartbeat.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/spinalcom/spinal-organ-connector-azur/config"
	"github.com/spinalcom/spinal-organ-connector-azur/graphstore"
	"github.com/spinalcom/spinal-organ-connector-azur/ingest"
	"github.com/spinalcom/spinal-organ-connector-azur/metric"
	"github.com/spinalcom/spinal-organ-connector-azur/natsclient"
	"github.com/spinalcom/spinal-organ-connector-azur/reconcile"
	"github.com/spinalcom/spinal-organ-connector-azur/syncrun"
	"github.com/spinalcom/spinal-organ-connector-azur/timeseries"
)

const (
	connectTimeout  = 30 * time.Second
	shutdownTimeout = 30 * time.Second
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "connector: %v\n", err)
		os.Exit(1)
	}
}

func run() (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v\n%s", r, debug.Stack())
		}
	}()

	configPath := flag.String("config", "", "path to optional YAML configuration file")
	flag.Parse()

	logger := setupLogger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger.Info("Starting connector",
		"network", cfg.NetworkContext,
		"stream", cfg.NATS.Stream,
		"subject", cfg.NATS.Subject,
		"pull_interval", cfg.Sync.PullInterval)

	registry := metric.NewRegistry()
	metrics := registry.CoreMetrics()

	var metricsServer *metric.Server
	if cfg.Metrics.Enabled {
		metricsServer = metric.NewServer(cfg.Metrics.Port, cfg.Metrics.Path, registry)
		if err := metricsServer.Start(); err != nil {
			return fmt.Errorf("start metrics server: %w", err)
		}
		defer func() { _ = metricsServer.Stop() }()
		logger.Info("Metrics server started", "port", cfg.Metrics.Port, "path", cfg.Metrics.Path)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// NATS
	natsOpts := []natsclient.Option{
		natsclient.WithName("spinal-organ-connector-azur"),
		natsclient.WithLogger(logger),
		natsclient.WithConnectionCallback(metrics.RecordNATSStatus),
	}
	if cfg.NATS.Username != "" {
		natsOpts = append(natsOpts, natsclient.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	}
	if cfg.NATS.Token != "" {
		natsOpts = append(natsOpts, natsclient.WithToken(cfg.NATS.Token))
	}

	client, err := natsclient.NewClient(cfg.NATS.URL, natsOpts...)
	if err != nil {
		return fmt.Errorf("create NATS client: %w", err)
	}

	connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
	err = client.Connect(connectCtx)
	cancelConnect()
	if err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = client.Close(closeCtx)
	}()

	// Durable state and sample history live on JetStream
	if err := timeseries.Provision(ctx, client, timeseries.Config{
		Stream:        cfg.TimeSeries.Stream,
		SubjectPrefix: cfg.TimeSeries.SubjectPrefix,
		RetentionDays: cfg.TimeSeries.RetentionDays,
	}); err != nil {
		return fmt.Errorf("provision sample stream: %w", err)
	}

	bucket, err := client.EnsureKeyValueBucket(ctx, jetstream.KeyValueConfig{
		Bucket: cfg.Sync.StateBucket,
	})
	if err != nil {
		return fmt.Errorf("provision state bucket: %w", err)
	}
	stateStore := client.NewKVStore(bucket)

	// Graph
	graph, err := graphstore.NewNeo4jStore(ctx, graphstore.Neo4jConfig{
		URI:      cfg.Graph.URI,
		Username: cfg.Graph.Username,
		Password: cfg.Graph.Password,
		Database: cfg.Graph.Database,
	}, logger)
	if err != nil {
		return fmt.Errorf("connect to graph store: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = graph.Close(closeCtx)
	}()

	_ = graph.EnsureIndices(ctx)

	// The network context must exist before events can be reconciled into it
	networkNode, err := graph.FindContext(ctx, cfg.NetworkContext)
	if err != nil {
		return fmt.Errorf("resolve network context %q: %w", cfg.NetworkContext, err)
	}
	logger.Info("Resolved network context", "name", cfg.NetworkContext, "id", networkNode.ID)

	// Reconciliation pipeline
	recorder := timeseries.NewJetStreamRecorder(client, cfg.TimeSeries.SubjectPrefix, logger)
	resolver := reconcile.NewResolver(graph, networkNode.ID)
	reconciler := reconcile.NewReconciler(resolver, graph, recorder, cfg.TimeSeries.RetentionDays, logger)

	supervisor := ingest.NewSupervisor(ingest.Config{
		Stream:       cfg.NATS.Stream,
		Subject:      cfg.NATS.Subject,
		Capabilities: cfg.Ingest.Capabilities,
		Workers:      cfg.Ingest.Workers,
		QueueSize:    cfg.Ingest.QueueSize,
	}, client, reconciler, metrics, logger)

	if err := supervisor.Initialize(); err != nil {
		return fmt.Errorf("initialize ingestion: %w", err)
	}
	if err := supervisor.Start(ctx); err != nil {
		return fmt.Errorf("start ingestion: %w", err)
	}

	syncLoop, err := syncrun.NewLoop(syncrun.Config{
		Interval:        cfg.Sync.PullInterval,
		FailureCooldown: cfg.Sync.FailureCooldown,
	}, stateStore, metrics, logger)
	if err != nil {
		return fmt.Errorf("create sync loop: %w", err)
	}
	if err := syncLoop.Start(ctx); err != nil {
		return fmt.Errorf("start sync loop: %w", err)
	}

	logger.Info("Connector running")
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Reverse startup order: stop producing work before closing stores
	if err := syncLoop.Stop(shutdownTimeout); err != nil {
		logger.Warn("Sync loop shutdown incomplete", "error", err)
	}
	if err := supervisor.Stop(shutdownTimeout); err != nil {
		logger.Warn("Ingestion shutdown incomplete", "error", err)
	}

	logger.Info("Connector stopped")
	return nil
}
