// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
	"github.com/tomtom215/recbench/internal/metrics"
)

var errUnresolved = errors.New("dataset not resolved")

// work is the worker goroutine of one run.
func (c *Controller) work(r *run) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error().Interface("panic", rec).Msg("Evaluation worker panicked")
			c.finish(r)
		}
	}()

	total := 0
	for _, e := range r.entries {
		total += c.recordLimit(e.Pair.Testing())
	}
	total *= len(r.algorithms)
	c.updateInfo(r, func(i *Info) { i.ProgressTotal = total })

loop:
	for slot, alg := range r.algorithms {
		for _, e := range r.entries {
			if !c.checkpoint(r) {
				break loop
			}
			c.evaluatePair(r, slot, alg, e)
		}
	}
	c.finish(r)
}

// recordLimit is the number of testing records evaluated for ds.
func (c *Controller) recordLimit(ds dataset.Dataset) int {
	if ds == nil {
		return 0
	}
	n := ds.Size()
	if c.cfg.MaxRecords > 0 && n > c.cfg.MaxRecords {
		n = c.cfg.MaxRecords
	}
	return n
}

// alive reports whether r is still the controller's current run.
func (c *Controller) alive(r *run) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen == r.gen
}

// checkpoint is the single suspension point of the worker. It blocks while
// the run is paused and returns false when the worker must leave its loops.
func (c *Controller) checkpoint(r *run) bool {
	for {
		if c.stopRequested.Load() {
			return false
		}
		c.mu.Lock()
		if c.gen != r.gen {
			c.mu.Unlock()
			return false
		}
		paused := c.pauseRequested.Load()
		ch := c.resumeCh
		c.mu.Unlock()

		if !paused || ch == nil {
			return !c.stopRequested.Load()
		}
		select {
		case <-ch:
		case <-r.ctx.Done():
			return false
		}
	}
}

// updateInfo applies fn to the progress record while r is current.
func (c *Controller) updateInfo(r *run, fn func(*Info)) (Info, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != r.gen {
		return Info{}, false
	}
	fn(&c.info)
	c.info.UpdatedAt = time.Now()
	return c.info.clone(), true
}

// evaluatePair runs the execution protocol for the algorithm in slot on one
// dataset pair.
func (c *Controller) evaluatePair(r *run, slot int, alg algorithm.Algorithm, e dataset.Entry) {
	name := alg.Name()
	key := metric.Key{Algorithm: name, DatasetID: e.ID}
	log := r.logger.With().Str("algorithm", name).Int("dataset_id", e.ID).Logger()
	capability := algorithm.CapabilityOf(alg)

	c.mu.Lock()
	if c.gen != r.gen {
		c.mu.Unlock()
		return
	}
	r.current = alg
	r.capability = capability
	c.info.Algorithm = name
	c.info.DatasetID = e.ID
	c.info.InSetup = true
	c.info.PairProgress = 0
	c.info.PairProgressTotal = 0
	c.info.addStatus(fmt.Sprintf("setting up %s on dataset %d", name, e.ID))
	c.mu.Unlock()

	r.metrics.Seed(key, c.metricSet)

	// Setup
	setupLog := newSetupLog(name, e.ID)
	c.fireSetup(r, SetupEvent{Phase: SetupBegin, Algorithm: name, DatasetID: e.ID})
	reporter, reports := alg.(algorithm.SetupReporter)
	if reports {
		reporter.SetSetupObserver(func(p algorithm.SetupProgress) {
			if !c.alive(r) {
				return
			}
			setupLog.progress(p)
			c.fireSetup(r, SetupEvent{Phase: SetupProgress, Algorithm: name, DatasetID: e.ID, Progress: p})
		})
	}

	start := time.Now()
	err := safeSetup(r.ctx, alg, e.Pair.Training(), r.params)
	elapsed := time.Since(start)
	if reports {
		reporter.SetSetupObserver(nil)
	}
	setupLog.end(elapsed, err)

	if !c.alive(r) {
		if err == nil {
			c.release(r, slot, alg, "forced")
		}
		return
	}
	c.updateInfo(r, func(i *Info) { i.InSetup = false })
	c.backupSetupLog(r, setupLog)

	if err != nil {
		log.Error().Err(err).Msg("Algorithm setup failed")
		c.updateInfo(r, func(i *Info) { i.addStatus(fmt.Sprintf("setup of %s failed: %v", name, err)) })
		c.fireSetup(r, SetupEvent{Phase: SetupEnd, Algorithm: name, DatasetID: e.ID, Elapsed: elapsed, Err: err.Error()})
		return
	}
	if !c.markActive(r, slot, alg) {
		c.release(r, slot, alg, "forced")
		return
	}
	defer c.teardown(r, slot, alg)

	metrics.RecordSetup(name, elapsed)
	c.recalc(r, key, metric.NewSetupTime(), elapsed, EvalSetupTime)
	c.fireSetup(r, SetupEvent{Phase: SetupEnd, Algorithm: name, DatasetID: e.ID, Elapsed: elapsed})
	log.Debug().Dur("elapsed", elapsed).Msg("Algorithm set up")

	// Testing records
	testing := e.Pair.Testing()
	if testing == nil {
		log.Error().Err(errUnresolved).Msg("Testing dataset unavailable")
		return
	}
	total := c.recordLimit(testing)
	c.updateInfo(r, func(i *Info) {
		i.PairProgressTotal = total
		i.addStatus(fmt.Sprintf("evaluating %s on dataset %d", name, e.ID))
	})

	fetcher, err := testing.Fetch(r.ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to fetch testing records")
		return
	}
	defer fetcher.Close()

	successes, processed := 0, 0
	completed := true
	for processed < total {
		if !c.checkpoint(r) {
			completed = false
			break
		}
		if !fetcher.Next() {
			break
		}
		processed++
		ok := c.executeRecord(r, alg, key, fetcher.Profile())
		if ok {
			successes++
		}
		info, live := c.updateInfo(r, func(i *Info) {
			i.Progress++
			i.PairProgress++
		})
		if !live {
			return
		}
		c.fireProgress(ProgressEvent{
			RunID:             r.id,
			Algorithm:         name,
			DatasetID:         e.ID,
			Progress:          info.Progress,
			ProgressTotal:     info.ProgressTotal,
			PairProgress:      info.PairProgress,
			PairProgressTotal: info.PairProgressTotal,
			Success:           ok,
		})
	}
	if err := fetcher.Err(); err != nil {
		log.Warn().Err(err).Int("processed", processed).Msg("Testing records ended early")
	}
	if !completed || !c.alive(r) {
		return
	}

	c.recalc(r, key, metric.NewRecall(), metric.Fraction{Successes: successes, Total: total}, EvalRecall)
	log.Info().
		Int("records", processed).
		Int("successes", successes).
		Int("total", total).
		Msg("Dataset pair evaluated")

	snapshot := r.metrics.Snapshot()
	c.backupMetrics(r, EvalDoneOne, &key, snapshot)
	c.fireEval(r, EvalEvent{Type: EvalDoneOne, Algorithm: name, DatasetID: e.ID, Metrics: snapshot})
}

// executeRecord runs alg on one testing profile and records its metrics.
// It reports whether the execution produced a usable result.
func (c *Controller) executeRecord(r *run, alg algorithm.Algorithm, key metric.Key, profile dataset.Profile) bool {
	param := algorithm.NewParam(profile)
	start := time.Now()
	res, err := safeExecute(r.ctx, alg, param)
	elapsed := time.Since(start)
	if !c.alive(r) {
		return false
	}

	c.recalc(r, key, metric.NewSpeed(), elapsed, EvalSpeed)

	switch {
	case err != nil:
		metrics.RecordExecution(key.Algorithm, "error", elapsed)
		r.logger.Warn().
			Err(err).
			Str("algorithm", key.Algorithm).
			Int("dataset_id", key.DatasetID).
			Int("user_id", profile.UserID).
			Msg("Execution failed")
		return false
	case !res.Usable():
		metrics.RecordExecution(key.Algorithm, "miss", elapsed)
		return false
	}

	metrics.RecordExecution(key.Algorithm, "success", elapsed)
	obs := metric.Observation{Estimates: res.Estimates, Truth: profile.Ratings}
	for _, m := range c.metricSet {
		if m.Kind() == metric.KindAccuracy {
			c.recalc(r, key, m, obs, EvalAccuracy)
		}
	}
	return true
}

// recalc folds obs into the registry of r and fires the sample event.
func (c *Controller) recalc(r *run, key metric.Key, tmpl metric.Metric, obs any, typ EvalType) {
	w, err := r.metrics.Recalc(key, tmpl, obs)
	if err != nil {
		r.logger.Warn().Err(err).Msg("Metric recalculation failed")
		return
	}
	c.fireEval(r, EvalEvent{Type: typ, Algorithm: key.Algorithm, DatasetID: key.DatasetID, Sample: &w})
}

// teardown releases alg after a dataset pair unless ForceStop owns it.
func (c *Controller) teardown(r *run, slot int, alg algorithm.Algorithm) {
	if c.claimTeardown(r, slot) {
		c.release(r, slot, alg, "immediate")
	}
}

// finish ends a run from the worker: the stop event is fired when a stop
// was requested, followed by the done event.
func (c *Controller) finish(r *run) {
	c.mu.Lock()
	if c.gen != r.gen || r.doneFired {
		c.mu.Unlock()
		return
	}
	r.doneFired = true
	stopped := c.stopRequested.Load()
	c.setState(StateStopped)
	c.mu.Unlock()

	outcome := "completed"
	if stopped {
		outcome = "stopped"
		c.fireLifecycle(LifecycleEvent{Type: LifecycleStop, RunID: r.id, State: StateStopped, Time: time.Now()})
	}
	c.complete(r, outcome, false)
}

// complete fires the terminal done event of r and returns the controller to
// idle.
func (c *Controller) complete(r *run, outcome string, forced bool) {
	snapshot := r.metrics.Snapshot()
	c.backupMetrics(r, EvalDone, nil, snapshot)
	c.fireEval(r, EvalEvent{Type: EvalDone, Metrics: snapshot, Forced: forced})

	c.mu.Lock()
	if c.run == r {
		c.run = nil
		c.info.InSetup = false
		c.info.addStatus("done (" + outcome + ")")
		c.setState(StateIdle)
	}
	c.mu.Unlock()
	r.cancel()
	close(r.finished)

	metrics.EvalRunsFinished.WithLabelValues(outcome).Inc()
	r.logger.Info().
		Str("outcome", outcome).
		Int("metric_lists", snapshot.Len()).
		Msg("Evaluation done")
}

func (c *Controller) fireEval(r *run, e EvalEvent) {
	e.RunID = r.id
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	c.evaluators.fire(c.dispatch, &r.logger, e)
}

func (c *Controller) fireSetup(r *run, e SetupEvent) {
	e.RunID = r.id
	e.Time = time.Now()
	c.setups.fire(c.dispatch, &r.logger, e)
}

func (c *Controller) fireProgress(e ProgressEvent) {
	c.progress.fire(c.dispatch, &c.logger, e)
}

func safeSetup(ctx context.Context, alg algorithm.Algorithm, training dataset.Dataset, params algorithm.Params) (err error) {
	if training == nil {
		return errUnresolved
	}
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("setup panicked: %v", rec)
		}
	}()
	return alg.Setup(ctx, training, params)
}

func safeExecute(ctx context.Context, alg algorithm.Algorithm, param algorithm.Param) (res *algorithm.Result, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			res, err = nil, fmt.Errorf("execute panicked: %v", rec)
		}
	}()
	return alg.Execute(ctx, param)
}
