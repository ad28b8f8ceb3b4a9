package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"crm-bridge/core/lock"
	"crm-bridge/core/logger"
	"crm-bridge/core/models"
	"crm-bridge/core/reconcile"
	"crm-bridge/core/store"
	"crm-bridge/core/syncerr"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status is the orchestrator state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Reconciler plans and applies one entity type. *reconcile.Engine implements it.
type Reconciler interface {
	Plan(ctx context.Context, et models.EntityType) (*reconcile.Plan, error)
	Apply(ctx context.Context, cycleID string, plan *reconcile.Plan) (*reconcile.Result, error)
}

// CycleStore records cycles. *store.Store implements it.
type CycleStore interface {
	BeginCycle(ctx context.Context, dryRun bool) (*store.SyncCycle, error)
	CompleteCycle(ctx context.Context, cycleID string, status models.CycleStatus, errMsg string, incomplete []string) (*store.SyncCycle, error)
	LatestCycle(ctx context.Context) (*store.SyncCycle, error)
}

// Config tunes a cycle.
type Config struct {
	EntityTypes []models.EntityType
	// Concurrency bounds how many entity types run at once.
	Concurrency int
	// CycleTimeout fails a cycle that runs longer. Zero disables it.
	CycleTimeout time.Duration
}

// RunOptions overrides the configuration for one cycle.
type RunOptions struct {
	// DryRun plans without writing to either remote.
	DryRun bool
	// EntityTypes restricts the cycle; empty means all configured types.
	EntityTypes []models.EntityType
}

// Report is the outcome of RunCycle.
type Report struct {
	Cycle   *store.SyncCycle    `json:"cycle"`
	Results []*reconcile.Result `json:"results,omitempty"`
	// Plans is set for dry runs.
	Plans []*reconcile.Plan `json:"plans,omitempty"`
}

// State is the answer of CurrentStatus.
type State struct {
	Status Status `json:"status"`
	// Current is the running cycle.
	Current *store.SyncCycle `json:"current,omitempty"`
	// Last is the last finished cycle.
	Last *store.SyncCycle `json:"last,omitempty"`
}

// Orchestrator runs sync cycles over the configured entity types. At most one
// cycle runs per instance; a Locker extends that across instances.
type Orchestrator struct {
	engine  Reconciler
	store   CycleStore
	locker  lock.Locker
	metrics *Metrics
	logger  *zap.Logger
	tracer  trace.Tracer
	cfg     Config

	running  atomic.Bool
	stopping atomic.Bool

	mu      sync.RWMutex
	current *store.SyncCycle
	last    *store.SyncCycle
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLocker sets the cross-process cycle lock.
func WithLocker(l lock.Locker) Option {
	return func(o *Orchestrator) { o.locker = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an orchestrator.
func New(engine Reconciler, st CycleStore, cfg Config, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		engine: engine,
		store:  st,
		cfg:    cfg,
		locker: lock.Nop{},
		logger: zap.NewNop(),
		tracer: otel.Tracer("crm-bridge/core/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics()
	}
	if len(o.cfg.EntityTypes) == 0 {
		o.cfg.EntityTypes = models.EntityTypes
	}
	return o
}

// Metrics returns the orchestrator metrics.
func (o *Orchestrator) Metrics() *Metrics {
	return o.metrics
}

// Running reports whether a cycle is in progress on this instance.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// Stop asks the running cycle to stop once the entity types already started
// have finished. It reports whether a cycle was running.
func (o *Orchestrator) Stop() bool {
	if !o.running.Load() {
		return false
	}
	o.stopping.Store(true)
	o.logger.Info("Stop requested")
	return true
}

// CurrentStatus returns the running cycle or the last result.
func (o *Orchestrator) CurrentStatus(ctx context.Context) State {
	o.mu.RLock()
	current, last := o.current, o.last
	o.mu.RUnlock()

	if current != nil {
		return State{Status: StatusRunning, Current: current, Last: last}
	}
	if last == nil {
		// Recover the last result after a restart.
		if c, err := o.store.LatestCycle(ctx); err == nil && c.Status != models.CycleRunning {
			last = c
		}
	}
	if last == nil {
		return State{Status: StatusIdle}
	}
	status := StatusSucceeded
	if last.Status == models.CycleFailed {
		status = StatusFailed
	}
	return State{Status: status, Last: last}
}

// RunCycle runs one sync cycle. It returns syncerr.ErrCycleInProgress when
// another cycle holds this instance or the cross-process lock. A cycle that
// fails for a timeout or a stop request is reported through its record; only
// store failures are also returned as errors.
func (o *Orchestrator) RunCycle(ctx context.Context, opts RunOptions) (*Report, error) {
	if !o.running.CompareAndSwap(false, true) {
		return nil, syncerr.ErrCycleInProgress
	}
	defer o.running.Store(false)
	o.stopping.Store(false)

	release, err := o.locker.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			o.logger.Warn("Failed to release cycle lock", zap.Error(err))
		}
	}()

	types := opts.EntityTypes
	if len(types) == 0 {
		types = o.cfg.EntityTypes
	}

	cycle, err := o.store.BeginCycle(ctx, opts.DryRun)
	if err != nil {
		return nil, err
	}

	ctx, span := o.tracer.Start(ctx, "sync.cycle", trace.WithAttributes(
		attribute.String("cycle_id", cycle.CycleID),
		attribute.Bool("dry_run", opts.DryRun)))
	defer span.End()

	log := logger.WithCycle(o.logger, cycle.CycleID)
	log.Info("Cycle started", zap.Bool("dry_run", opts.DryRun), zap.Int("entity_types", len(types)))

	o.mu.Lock()
	o.current = cycle
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.current = nil
		o.mu.Unlock()
	}()

	o.metrics.cycleStarted()
	start := time.Now()

	var runCtx context.Context
	var cancel context.CancelFunc
	if o.cfg.CycleTimeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, o.cfg.CycleTimeout)
	} else {
		runCtx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	report := &Report{}
	var (
		mu       sync.Mutex
		done     = map[models.EntityType]bool{}
		typeErrs error
	)

	g, gctx := errgroup.WithContext(runCtx)
	g.SetLimit(o.cfg.concurrency())
	for _, et := range types {
		if o.stopping.Load() || gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if o.stopping.Load() {
				return nil
			}
			res, plan, err := o.runType(gctx, cycle.CycleID, et, opts.DryRun)

			mu.Lock()
			defer mu.Unlock()
			if opts.DryRun && plan != nil {
				report.Plans = append(report.Plans, plan)
			}
			if res != nil {
				report.Results = append(report.Results, res)
				o.metrics.observe(res)
			}

			switch {
			case err == nil:
				done[et] = true
			case errors.Is(err, syncerr.ErrStoreUnavailable):
				return err
			case gctx.Err() != nil:
				log.Warn("Entity type interrupted", zap.String("entity_type", string(et)), zap.Error(err))
			default:
				typeErrs = multierr.Append(typeErrs, fmt.Errorf("%s: %w", et, err))
				log.Error("Entity type failed", zap.String("entity_type", string(et)), zap.Error(err))
			}
			return nil
		})
	}
	fatal := g.Wait()

	var incomplete []string
	for _, et := range types {
		if !done[et] {
			incomplete = append(incomplete, string(et))
		}
	}

	status, msg := models.CycleSucceeded, ""
	switch {
	case fatal != nil:
		status, msg = models.CycleFailed, fatal.Error()
	case errors.Is(runCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		status, msg = models.CycleFailed, fmt.Sprintf("cycle timeout after %s", o.cfg.CycleTimeout)
	case ctx.Err() != nil:
		status, msg = models.CycleFailed, "cycle cancelled"
	case o.stopping.Load() && len(incomplete) > 0:
		status, msg = models.CycleFailed, "cycle stopped"
	case typeErrs != nil:
		msg = typeErrs.Error()
	}
	if status == models.CycleFailed && len(incomplete) > 0 {
		log.Warn("Entity types did not complete", zap.Strings("entity_types", incomplete))
	}

	completed, err := o.store.CompleteCycle(context.WithoutCancel(ctx), cycle.CycleID, status, msg, incomplete)
	if err != nil {
		fatal = multierr.Append(fatal, err)
		completed = cycle
		completed.Status = models.CycleFailed
		completed.Error = err.Error()
	}
	report.Cycle = completed

	elapsed := time.Since(start)
	o.metrics.cycleFinished(string(completed.Status), elapsed)
	if completed.Status == models.CycleFailed {
		span.SetStatus(codes.Error, completed.Error)
	}

	o.mu.Lock()
	o.last = completed
	o.mu.Unlock()

	printCycleReport(log, completed, elapsed)
	return report, fatal
}

func (o *Orchestrator) runType(ctx context.Context, cycleID string, et models.EntityType, dryRun bool) (*reconcile.Result, *reconcile.Plan, error) {
	ctx, span := o.tracer.Start(ctx, "sync.entity_type", trace.WithAttributes(attribute.String("entity_type", string(et))))
	defer span.End()

	plan, err := o.engine.Plan(ctx, et)
	if err != nil {
		span.RecordError(err)
		return nil, nil, err
	}
	if dryRun {
		return nil, plan, nil
	}
	res, err := o.engine.Apply(ctx, cycleID, plan)
	if err != nil {
		span.RecordError(err)
	}
	return res, plan, err
}

func (c Config) concurrency() int {
	if c.Concurrency <= 0 {
		return 1
	}
	return c.Concurrency
}

func printCycleReport(log *zap.Logger, c *store.SyncCycle, elapsed time.Duration) {
	fields := []zap.Field{
		zap.String("status", string(c.Status)),
		zap.Int("entities_processed", c.EntitiesProcessed),
		zap.Int("operations_applied", c.OperationsApplied),
		zap.Int("issues_raised", c.IssuesRaised),
		zap.Int("failures", c.Failures),
		zap.Duration("duration", elapsed),
	}
	if c.Error != "" {
		fields = append(fields, zap.String("error", c.Error))
	}
	if c.Status == models.CycleFailed {
		log.Error("Cycle failed", fields...)
		return
	}
	log.Info("Cycle completed", fields...)
}
