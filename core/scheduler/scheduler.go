package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"crm-bridge/core/orchestrator"
	"crm-bridge/core/syncerr"

	"go.uber.org/zap"
)

// Runner runs one cycle. *orchestrator.Orchestrator implements it.
type Runner interface {
	RunCycle(ctx context.Context, opts orchestrator.RunOptions) (*orchestrator.Report, error)
}

// Scheduler starts cycles on a fixed interval and on demand. Cycles never
// overlap: a trigger or tick that arrives while a cycle runs is dropped.
type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   *zap.Logger

	// defaults are the options of interval cycles.
	defaults orchestrator.RunOptions

	busy    atomic.Bool
	trigger chan orchestrator.RunOptions

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a scheduler. A zero interval disables periodic cycles.
func New(runner Runner, interval time.Duration, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger,
		trigger:  make(chan orchestrator.RunOptions, 1),
	}
}

// WithDefaults sets the options used by interval cycles.
func (s *Scheduler) WithDefaults(opts orchestrator.RunOptions) *Scheduler {
	s.defaults = opts
	return s
}

// Start launches the scheduling loop. It is a no-op when already started.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.loop(ctx, s.done)
	s.logger.Info("Scheduler started", zap.Duration("interval", s.interval))
}

// Stop ends the loop and waits for an in-flight cycle to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("Scheduler stopped")
}

// Trigger requests a cycle now. It reports false when the request was dropped
// because a cycle is running or another request is pending.
func (s *Scheduler) Trigger(opts orchestrator.RunOptions) bool {
	if s.busy.Load() {
		s.logger.Info("Trigger dropped, cycle in progress")
		return false
	}
	select {
	case s.trigger <- opts:
		return true
	default:
		s.logger.Info("Trigger dropped, cycle already pending")
		return false
	}
}

// Busy reports whether a scheduled cycle is running.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

func (s *Scheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	var tick <-chan time.Time
	if s.interval > 0 {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-tick:
			s.run(ctx, s.defaults, "interval")
			s.skipMissed(tick)
		case opts := <-s.trigger:
			s.run(ctx, opts, "trigger")
			s.skipMissed(tick)
		}
	}
}

// skipMissed discards a tick that fired while a cycle was running, so a long
// cycle is not followed at once by another.
func (s *Scheduler) skipMissed(tick <-chan time.Time) {
	select {
	case <-tick:
		s.logger.Info("Interval tick dropped, cycle was running")
	default:
	}
}

func (s *Scheduler) run(ctx context.Context, opts orchestrator.RunOptions, reason string) {
	s.busy.Store(true)
	defer s.busy.Store(false)

	report, err := s.runner.RunCycle(ctx, opts)
	switch {
	case errors.Is(err, syncerr.ErrCycleInProgress):
		s.logger.Info("Cycle skipped, another cycle holds the lock", zap.String("reason", reason))
	case err != nil:
		s.logger.Error("Cycle failed", zap.String("reason", reason), zap.Error(err))
	case report != nil && report.Cycle != nil:
		s.logger.Debug("Scheduled cycle finished",
			zap.String("reason", reason),
			zap.String("cycle_id", report.Cycle.CycleID),
			zap.String("status", string(report.Cycle.Status)))
	}
}
