// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
	"github.com/tomtom215/recbench/internal/logging"
	"github.com/tomtom215/recbench/internal/metrics"
)

// Config holds controller settings.
type Config struct {
	// Metrics is the metric set seeded for every (algorithm, dataset) pair.
	// SetupTime, Speed and Recall are always recorded; accuracy metrics are
	// recorded only when present here. Defaults to metric.DefaultSet().
	Metrics []metric.Metric

	// BackupDir receives text snapshots on terminal events. Empty disables
	// backups entirely.
	BackupDir string

	// BackupEnabled writes backups even when evaluator listeners exist.
	BackupEnabled bool

	// ForceStopGrace is how long ForceStop waits before tearing algorithms
	// down. It does not guarantee that a blocked setup or execute call has
	// returned.
	ForceStopGrace time.Duration

	// MaxRecords bounds the testing records evaluated per pair. Zero means
	// all records.
	MaxRecords int

	// QueueWarnDepth logs a warning when the async listener queue reaches
	// this depth. Zero disables the warning.
	QueueWarnDepth int

	// Resolver re-resolves dataset URIs for ReloadPool.
	Resolver dataset.Resolver
}

// Controller drives evaluation runs. A controller runs at most one
// evaluation at a time; use separate controllers for concurrent runs.
type Controller struct {
	cfg       Config
	metricSet []metric.Metric
	logger    zerolog.Logger

	lifecycle  *registry[LifecycleListener, LifecycleEvent]
	evaluators *registry[EvaluatorListener, EvalEvent]
	setups     *registry[SetupListener, SetupEvent]
	progress   *registry[ProgressListener, ProgressEvent]
	dispatch   *dispatcher

	// ctrlMu serializes control operations. Lifecycle events of control
	// operations are queued while it is held so queued listeners see them
	// in control order; presentation listeners are never called under it.
	// Algorithm learn hooks run under ctrlMu but never under mu.
	ctrlMu sync.Mutex

	// lifecycleSeq numbers lifecycle events.
	lifecycleSeq atomic.Uint64

	// mu guards everything below.
	mu           sync.Mutex
	state        State
	closed       bool
	gen          uint64
	run          *run
	pool         *dataset.Pool
	result       *metric.Metrics
	info         Info
	rejection    error
	pending      []delayedTeardown
	resumeCh     chan struct{}
	nativePaused bool

	pauseRequested atomic.Bool
	stopRequested  atomic.Bool
	backupSeq      atomic.Uint64
}

// run is the state of one evaluation run.
type run struct {
	id     string
	gen    uint64
	ctx    context.Context
	cancel context.CancelFunc
	logger zerolog.Logger

	algorithms []algorithm.Algorithm
	entries    []dataset.Entry
	params     algorithm.Params
	metrics    *metric.Metrics

	// guarded by Controller.mu
	active     map[int]algorithm.Algorithm // by slot in algorithms
	current    algorithm.Algorithm
	capability algorithm.Capability
	doneFired  bool

	finished chan struct{}
}

// New creates an idle controller.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) *Controller {
	set := cfg.Metrics
	if len(set) == 0 {
		set = metric.DefaultSet()
	}
	if cfg.ForceStopGrace < 0 {
		cfg.ForceStopGrace = 0
	}
	logger = logger.With().Str("component", "evaluator").Logger()
	c := &Controller{
		cfg:        cfg,
		metricSet:  set,
		logger:     logger,
		lifecycle:  newRegistry(CategoryLifecycle, LifecycleListener.OnLifecycle),
		evaluators: newRegistry(CategoryEvaluator, EvaluatorListener.OnEvaluate),
		setups:     newRegistry(CategorySetup, SetupListener.OnSetup),
		progress:   newRegistry(CategoryProgress, ProgressListener.OnProgress),
		dispatch:   newDispatcher(logger, cfg.QueueWarnDepth),
		result:     metric.New(),
	}
	c.setState(StateIdle)
	return c
}

// setState must be called with mu held.
func (c *Controller) setState(s State) {
	c.state = s
	c.info.State = s
	metrics.EvalControllerState.Set(float64(s))
}

// reject records why a control operation was refused.
func (c *Controller) reject(op string, err error) bool {
	c.mu.Lock()
	c.rejection = err
	c.mu.Unlock()
	metrics.RecordRejection(op, err)
	c.logger.Debug().Str("operation", op).Err(err).Msg("Control operation rejected")
	return false
}

// LastRejection returns the reason of the most recent rejected operation.
func (c *Controller) LastRejection() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejection
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Result returns a snapshot of the metrics of the most recent run. It is
// safe to call at any time, including while a run is active.
func (c *Controller) Result() *metric.Metrics {
	c.mu.Lock()
	res := c.result
	c.mu.Unlock()
	return res.Snapshot()
}

// Info returns a copy of the run progress record.
func (c *Controller) Info() Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.info.clone()
}

// Pool returns the pool held by the controller.
func (c *Controller) Pool() *dataset.Pool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pool
}

// Start launches a run of algorithms over pool. It returns false without
// changing anything when a run is active, when algorithms or pool is empty,
// or after Close.
func (c *Controller) Start(algorithms []algorithm.Algorithm, pool *dataset.Pool, params algorithm.Params) bool {
	c.ctrlMu.Lock()

	algs := make([]algorithm.Algorithm, 0, len(algorithms))
	for _, a := range algorithms {
		if a != nil {
			algs = append(algs, a)
		}
	}

	c.mu.Lock()
	var err error
	switch {
	case c.closed:
		err = ErrClosed
	case c.state.Active():
		err = ErrRunActive
	case len(algs) == 0:
		err = ErrNoAlgorithms
	case pool.Len() == 0:
		err = ErrEmptyPool
	default:
		err = checkDistinctNames(algs)
	}
	c.mu.Unlock()
	if err != nil {
		c.ctrlMu.Unlock()
		return c.reject("start", err)
	}

	c.drainPending()
	c.installPool(pool)

	id := uuid.NewString()
	ctx := logging.ContextWithRunID(logging.ContextWithLogger(context.Background(), c.logger), id)
	ctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	c.mu.Lock()
	c.gen++
	r := &run{
		id:         id,
		gen:        c.gen,
		ctx:        ctx,
		cancel:     cancel,
		logger:     *logging.Ctx(ctx),
		algorithms: algs,
		entries:    c.pool.Entries(),
		params:     params,
		metrics:    metric.New(),
		finished:   make(chan struct{}),
	}
	c.run = r
	c.result = r.metrics
	c.rejection = nil
	c.pauseRequested.Store(false)
	c.stopRequested.Store(false)
	c.resumeCh = nil
	c.nativePaused = false
	c.info.reset(id, now)
	c.setState(StateRunning)
	c.mu.Unlock()
	present := c.queueLifecycle(LifecycleEvent{Type: LifecycleStart, RunID: id, State: StateRunning, Time: now})
	c.ctrlMu.Unlock()

	metrics.EvalRunsStarted.Inc()
	r.logger.Info().
		Int("algorithms", len(algs)).
		Int("datasets", len(r.entries)).
		Msg("Evaluation started")

	present()
	go c.work(r)
	return true
}

// checkDistinctNames rejects algorithms sharing a name, since metric lists
// are keyed by algorithm name and dataset.
func checkDistinctNames(algs []algorithm.Algorithm) error {
	seen := make(map[string]struct{}, len(algs))
	for _, a := range algs {
		name := a.Name()
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateAlgorithm, name)
		}
		seen[name] = struct{}{}
	}
	return nil
}

// installPool must be called with ctrlMu held and no run active.
func (c *Controller) installPool(pool *dataset.Pool) {
	c.mu.Lock()
	current := c.pool
	if current == nil {
		c.pool = pool
	}
	c.mu.Unlock()

	if current == nil || current == pool {
		return
	}
	if err := current.Update(pool); err != nil {
		c.logger.Warn().Err(err).Msg("Failed to release datasets dropped from pool")
	}
}

// Pause suspends the run before the next testing record. An algorithm in
// setup that implements algorithm.Learner is asked to suspend learning too.
func (c *Controller) Pause() bool {
	c.ctrlMu.Lock()
	c.mu.Lock()
	if c.state != StateRunning {
		c.mu.Unlock()
		c.ctrlMu.Unlock()
		return c.reject("pause", ErrNotRunning)
	}
	r := c.run
	capability := r.capability
	native := capability.Kind == algorithm.KindRemote && c.info.InSetup
	c.pauseRequested.Store(true)
	c.resumeCh = make(chan struct{})
	c.setState(StatePaused)
	c.info.addStatus("paused")
	c.mu.Unlock()

	// The learner may be reporting setup progress, which takes mu.
	if native {
		paused := capability.Pause()
		c.mu.Lock()
		if c.run == r && c.state == StatePaused {
			c.nativePaused = paused
		}
		c.mu.Unlock()
	}
	present := c.queueLifecycle(LifecycleEvent{Type: LifecyclePause, RunID: r.id, State: StatePaused, Time: time.Now()})
	c.ctrlMu.Unlock()

	r.logger.Info().Msg("Evaluation paused")
	present()
	return true
}

// Resume continues a paused run.
func (c *Controller) Resume() bool {
	c.ctrlMu.Lock()
	c.mu.Lock()
	if c.state != StatePaused {
		c.mu.Unlock()
		c.ctrlMu.Unlock()
		return c.reject("resume", ErrNotRunning)
	}
	r := c.run
	capability := r.capability
	native := c.nativePaused
	c.nativePaused = false
	c.wakeLocked()
	c.setState(StateRunning)
	c.info.addStatus("resumed")
	c.mu.Unlock()

	if native {
		capability.Resume()
	}
	present := c.queueLifecycle(LifecycleEvent{Type: LifecycleResume, RunID: r.id, State: StateRunning, Time: time.Now()})
	c.ctrlMu.Unlock()

	r.logger.Info().Msg("Evaluation resumed")
	present()
	return true
}

// wakeLocked releases a worker waiting at the pause checkpoint. It must be
// called with mu held.
func (c *Controller) wakeLocked() {
	c.pauseRequested.Store(false)
	if c.resumeCh != nil {
		close(c.resumeCh)
		c.resumeCh = nil
	}
}

// Stop asks the worker to finish after the current testing record. The stop
// event is fired by the worker once it has left its loops, followed by the
// done event with the metrics recorded so far.
func (c *Controller) Stop() bool {
	c.ctrlMu.Lock()
	defer c.ctrlMu.Unlock()

	c.mu.Lock()
	if c.state != StateRunning && c.state != StatePaused {
		c.mu.Unlock()
		return c.reject("stop", ErrNotRunning)
	}
	r := c.run
	capability := r.capability
	native := capability.Kind == algorithm.KindRemote && c.info.InSetup
	c.stopRequested.Store(true)
	c.wakeLocked()
	c.nativePaused = false
	c.setState(StateStopped)
	c.info.addStatus("stop requested")
	c.mu.Unlock()

	if native {
		capability.Stop()
	}
	r.logger.Info().Msg("Evaluation stop requested")
	return true
}

// ForceStop abandons the run without waiting for the worker. After the
// configured grace period it tears down every algorithm that was set up and
// is not marked for delayed teardown, then fires exactly one done event
// with the metrics accumulated so far.
func (c *Controller) ForceStop() bool {
	c.ctrlMu.Lock()

	c.mu.Lock()
	r := c.run
	if r == nil || r.doneFired || c.state == StateIdle || c.state == StateForceStopping {
		c.mu.Unlock()
		c.ctrlMu.Unlock()
		return c.reject("force_stop", ErrNotRunning)
	}
	c.gen++
	r.doneFired = true
	r.cancel()
	c.wakeLocked()
	c.nativePaused = false
	active := r.active
	r.active = nil
	capability := r.capability
	inSetup := c.info.InSetup
	c.setState(StateForceStopping)
	c.info.addStatus("force stopping")
	c.mu.Unlock()

	r.logger.Warn().Dur("grace", c.cfg.ForceStopGrace).Msg("Evaluation force stop")
	if capability.Kind == algorithm.KindRemote && inSetup {
		capability.Stop()
	}
	if c.cfg.ForceStopGrace > 0 {
		time.Sleep(c.cfg.ForceStopGrace)
	}
	for _, slot := range sortedSlots(active) {
		c.release(r, slot, active[slot], "forced")
	}
	c.ctrlMu.Unlock()

	c.complete(r, "force_stopped", true)
	return true
}

// UpdatePool replaces the pool between runs. Datasets no longer referenced
// by the new pool are closed; slots that share a UUID adopt the open
// dataset.
func (c *Controller) UpdatePool(pool *dataset.Pool) bool {
	c.ctrlMu.Lock()
	c.mu.Lock()
	var err error
	switch {
	case c.closed:
		err = ErrClosed
	case c.state.Active():
		err = ErrRunActive
	}
	c.mu.Unlock()
	if err != nil {
		c.ctrlMu.Unlock()
		return c.reject("update_pool", err)
	}
	if pool == nil {
		pool = dataset.NewPool()
	}
	c.installPool(pool)
	present := c.queueLifecycle(LifecycleEvent{Type: LifecyclePoolUpdated, State: StateIdle, Time: time.Now()})
	c.ctrlMu.Unlock()

	c.logger.Info().Int("datasets", pool.Len()).Msg("Dataset pool updated")
	present()
	return true
}

// ReloadPool re-resolves the datasets of the held pool from their URIs.
func (c *Controller) ReloadPool(ctx context.Context) bool {
	c.ctrlMu.Lock()
	c.mu.Lock()
	var err error
	switch {
	case c.closed:
		err = ErrClosed
	case c.state.Active():
		err = ErrRunActive
	case c.cfg.Resolver == nil:
		err = ErrNoResolver
	case c.pool.Len() == 0:
		err = ErrEmptyPool
	}
	pool := c.pool
	c.mu.Unlock()
	if err != nil {
		c.ctrlMu.Unlock()
		return c.reject("reload_pool", err)
	}

	if err = pool.Reload(ctx, c.cfg.Resolver); err != nil {
		c.ctrlMu.Unlock()
		c.logger.Error().Err(err).Msg("Dataset pool reload failed")
		return c.reject("reload_pool", err)
	}
	present := c.queueLifecycle(LifecycleEvent{Type: LifecyclePoolUpdated, State: StateIdle, Time: time.Now()})
	c.ctrlMu.Unlock()

	c.logger.Info().Int("datasets", pool.Len()).Msg("Dataset pool reloaded")
	present()
	return true
}

// Wait blocks until the current run, if any, has fired its done event.
func (c *Controller) Wait(ctx context.Context) error {
	c.mu.Lock()
	r := c.run
	c.mu.Unlock()
	if r == nil {
		return nil
	}
	select {
	case <-r.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Flush waits until every queued listener delivery submitted so far has
// been made.
func (c *Controller) Flush(ctx context.Context) error {
	return c.dispatch.flush(ctx)
}

// Close shuts the controller down: an active run is force stopped, pending
// teardowns are drained and queued deliveries are flushed. Further starts
// are rejected. Close is idempotent.
func (c *Controller) Close(ctx context.Context) error {
	// ctrlMu orders Close after a Start that already passed its checks, so
	// that run is seen and ended here.
	c.ctrlMu.Lock()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		c.ctrlMu.Unlock()
		return nil
	}
	c.closed = true
	active := c.run != nil && !c.run.doneFired
	c.mu.Unlock()
	c.ctrlMu.Unlock()

	if active {
		c.ForceStop()
	}
	if err := c.Wait(ctx); err != nil {
		return err
	}

	c.ctrlMu.Lock()
	c.drainPending()
	c.ctrlMu.Unlock()

	c.logger.Info().Msg("Evaluator closed")
	return c.dispatch.close(ctx)
}

func (c *Controller) fireLifecycle(e LifecycleEvent) {
	e.Seq = c.lifecycleSeq.Add(1)
	c.lifecycle.fire(c.dispatch, &c.logger, e)
}

// queueLifecycle numbers e and queues it for the queued lifecycle
// listeners. It is called with ctrlMu held; the returned func delivers e to
// presentation listeners and must be called after ctrlMu is released.
func (c *Controller) queueLifecycle(e LifecycleEvent) func() {
	e.Seq = c.lifecycleSeq.Add(1)
	c.lifecycle.enqueue(c.dispatch, &c.logger, e)
	return func() { c.lifecycle.present(&c.logger, e) }
}
