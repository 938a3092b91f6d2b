// Package ingest supervises the event ingestion path: it consumes capability
// messages from the bus, filters them against the configured allow-list, and
// dispatches each surviving event to the reconciler through a bounded worker
// pool. Failures stay contained to the event that caused them.
package ingest

import (
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/spinalcom/spinal-organ-connector-azur/capability"
	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/metric"
	"github.com/spinalcom/spinal-organ-connector-azur/pkg/worker"
	"github.com/spinalcom/spinal-organ-connector-azur/reconcile"
)

// StreamConsumer is the subset of the NATS client the supervisor needs
type StreamConsumer interface {
	ConsumeStream(ctx context.Context, streamName, subject string, handler func(context.Context, []byte)) error
	StopConsumer(streamName, subject string)
}

// Applier reconciles one event into the graph
type Applier interface {
	Apply(ctx context.Context, evt capability.Event) (reconcile.Outcome, error)
}

// Config holds the supervisor settings
type Config struct {
	Stream       string
	Subject      string
	Capabilities []string
	Workers      int
	QueueSize    int
}

// Supervisor owns the consume-filter-dispatch pipeline
type Supervisor struct {
	cfg      Config
	consumer StreamConsumer
	applier  Applier
	filter   *capability.ClassFilter
	pool     *worker.Pool[capability.Event]
	metrics  *metric.Metrics
	logger   *slog.Logger

	mu          sync.Mutex
	initialized bool
	running     bool
}

// NewSupervisor creates an ingestion supervisor
func NewSupervisor(
	cfg Config,
	consumer StreamConsumer,
	applier Applier,
	metrics *metric.Metrics,
	logger *slog.Logger,
) *Supervisor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Supervisor{
		cfg:      cfg,
		consumer: consumer,
		applier:  applier,
		metrics:  metrics,
		logger:   logger,
	}
}

// Initialize validates configuration and builds the filter and worker pool
func (s *Supervisor) Initialize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized {
		return nil
	}

	if s.cfg.Stream == "" || s.cfg.Subject == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Supervisor", "Initialize", "stream and subject required")
	}
	if len(s.cfg.Capabilities) == 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Supervisor", "Initialize", "empty capability allow-list")
	}
	if s.consumer == nil || s.applier == nil {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "Supervisor", "Initialize", "missing collaborators")
	}

	s.filter = capability.NewClassFilter(s.cfg.Capabilities)
	s.pool = worker.NewPool(s.cfg.Workers, s.cfg.QueueSize, s.processEvent)
	s.initialized = true

	return nil
}

// Start begins consuming from the bus
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errors.Wrap(errors.ErrNotStarted, "Supervisor", "Start", "not initialized")
	}
	if s.running {
		return errors.Wrap(errors.ErrAlreadyStarted, "Supervisor", "Start", "check state")
	}

	if err := s.pool.Start(ctx); err != nil {
		return errors.Wrap(err, "Supervisor", "Start", "start worker pool")
	}

	if err := s.consumer.ConsumeStream(ctx, s.cfg.Stream, s.cfg.Subject, s.handleMessage); err != nil {
		_ = s.pool.Stop(time.Second)
		return errors.Wrap(err, "Supervisor", "Start", "subscribe to stream")
	}

	s.running = true
	s.logger.Info("Ingestion started",
		"stream", s.cfg.Stream,
		"subject", s.cfg.Subject,
		"capabilities", s.filter.Classes())

	return nil
}

// Stop unsubscribes and drains in-flight events
func (s *Supervisor) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}

	s.consumer.StopConsumer(s.cfg.Stream, s.cfg.Subject)

	if err := s.pool.Stop(timeout); err != nil {
		return errors.Wrap(err, "Supervisor", "Stop", "drain worker pool")
	}

	s.running = false
	s.logger.Info("Ingestion stopped")
	return nil
}

// Stats exposes worker pool counters
func (s *Supervisor) Stats() worker.PoolStats {
	return s.pool.Stats()
}

// handleMessage decodes and filters one raw bus message. Anything that is
// not an allow-listed capability update is dropped without error.
func (s *Supervisor) handleMessage(_ context.Context, data []byte) {
	msg, err := capability.Decode(data)
	if err != nil {
		s.logger.Warn("Discarding undecodable message", "error", err)
		if s.metrics != nil {
			s.metrics.RecordError("ingest", "decode")
		}
		return
	}

	evt, ok := msg.Event()
	if !ok {
		return
	}

	if s.metrics != nil {
		s.metrics.RecordEventReceived(evt.CapabilityClass)
	}

	if !s.filter.Allows(evt.CapabilityClass) {
		if s.metrics != nil {
			s.metrics.RecordEventProcessed(evt.CapabilityClass, reconcile.OutcomeDropped.String())
		}
		return
	}

	if err := s.pool.Submit(evt); err != nil {
		if stderrors.Is(err, worker.ErrQueueFull) {
			s.logger.Warn("Event queue full, dropping event",
				"class", evt.CapabilityClass, "asset", evt.AssetName)
		}
		if s.metrics != nil {
			s.metrics.RecordError("ingest", "queue_full")
			s.metrics.RecordEventProcessed(evt.CapabilityClass, reconcile.OutcomeDropped.String())
		}
	}
}

// processEvent reconciles one event on a pool worker
func (s *Supervisor) processEvent(ctx context.Context, evt capability.Event) error {
	start := time.Now()

	outcome, err := s.applier.Apply(ctx, evt)

	if s.metrics != nil {
		s.metrics.RecordProcessingDuration("reconcile", time.Since(start))
		s.metrics.RecordEventProcessed(evt.CapabilityClass, outcome.String())
	}

	if err != nil {
		s.logger.Error("Event reconciliation failed",
			"class", evt.CapabilityClass,
			"asset", evt.AssetName,
			"error", err)
		if s.metrics != nil {
			s.metrics.RecordError("reconcile", errors.Classify(err).String())
		}
		return err
	}

	return nil
}
