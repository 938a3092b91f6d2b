// Package syncrun runs the heartbeat sync loop. Each beat records the
// current time as the last successful sync in durable state, so operators
// and restarts can tell how fresh the connector's view is. A failed beat
// backs off for a fixed cooldown instead of the configured interval.
package syncrun

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/spinalcom/spinal-organ-connector-azur/errors"
	"github.com/spinalcom/spinal-organ-connector-azur/metric"
)

// DefaultStateKey is the durable-state key holding the last sync timestamp
const DefaultStateKey = "last_sync"

// StateStore persists the last-sync timestamp across restarts
type StateStore interface {
	PutWithRetry(ctx context.Context, key string, value []byte) (uint64, error)
}

// Config holds the loop settings
type Config struct {
	Interval        time.Duration
	FailureCooldown time.Duration
	StateKey        string
}

// Loop is the heartbeat sync loop
type Loop struct {
	cfg     Config
	state   StateStore
	metrics *metric.Metrics
	logger  *slog.Logger

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	lastSync time.Time
}

// NewLoop creates a heartbeat loop
func NewLoop(cfg Config, state StateStore, metrics *metric.Metrics, logger *slog.Logger) (*Loop, error) {
	if cfg.Interval <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Loop", "NewLoop", "interval must be positive")
	}
	if cfg.FailureCooldown <= 0 {
		cfg.FailureCooldown = time.Minute
	}
	if cfg.StateKey == "" {
		cfg.StateKey = DefaultStateKey
	}
	if state == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Loop", "NewLoop", "state store required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Loop{
		cfg:     cfg,
		state:   state,
		metrics: metrics,
		logger:  logger,
	}, nil
}

// Start launches the loop. The first beat happens one full interval after
// start, never immediately.
func (l *Loop) Start(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return errors.Wrap(errors.ErrAlreadyStarted, "Loop", "Start", "check state")
	}

	loopCtx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.run(loopCtx, l.done)

	l.logger.Info("Sync loop started", "interval", l.cfg.Interval)
	return nil
}

// Stop cancels the loop and waits for it to exit
func (l *Loop) Stop(timeout time.Duration) error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	cancel := l.cancel
	done := l.done
	l.running = false
	l.mu.Unlock()

	cancel()

	select {
	case <-done:
		l.logger.Info("Sync loop stopped")
		return nil
	case <-time.After(timeout):
		return errors.WrapTransient(errors.ErrShuttingDown, "Loop", "Stop", "wait for loop exit")
	}
}

// LastSync returns the time of the last successful beat, zero before the first
func (l *Loop) LastSync() time.Time {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastSync
}

func (l *Loop) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	wait := l.cfg.Interval
	for {
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}

		if err := l.beat(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			l.logger.Error("Sync heartbeat failed", "error", err, "cooldown", l.cfg.FailureCooldown)
			if l.metrics != nil {
				l.metrics.RecordError("sync", errors.Classify(err).String())
			}
			wait = l.cfg.FailureCooldown
			continue
		}

		wait = l.cfg.Interval
	}
}

func (l *Loop) beat(ctx context.Context) error {
	now := time.Now().UTC()

	if _, err := l.state.PutWithRetry(ctx, l.cfg.StateKey, []byte(now.Format(time.RFC3339))); err != nil {
		return errors.Wrap(err, "Loop", "beat", "persist last sync")
	}

	l.mu.Lock()
	l.lastSync = now
	l.mu.Unlock()

	if l.metrics != nil {
		l.metrics.RecordLastSync(now)
	}

	l.logger.Debug("Sync heartbeat recorded", "at", now)
	return nil
}
