// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"fmt"
	"reflect"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/metrics"
)

// LifecycleListener receives lifecycle events.
type LifecycleListener interface {
	OnLifecycle(LifecycleEvent) error
}

// EvaluatorListener receives metric samples and terminal snapshots.
type EvaluatorListener interface {
	OnEvaluate(EvalEvent) error
}

// SetupListener receives setup progress.
type SetupListener interface {
	OnSetup(SetupEvent) error
}

// ProgressListener receives record counters.
type ProgressListener interface {
	OnProgress(ProgressEvent) error
}

// Presenter is implemented by listeners that must be called inline with the
// worker, in registration order, before the worker moves on.
type Presenter interface {
	Presentation() bool
}

func isPresentation(l any) bool {
	p, ok := l.(Presenter)
	return ok && p.Presentation()
}

type lifecycleFunc struct{ fn func(LifecycleEvent) error }

func (f *lifecycleFunc) OnLifecycle(e LifecycleEvent) error { return f.fn(e) }

// LifecycleFunc adapts a function to a LifecycleListener.
func LifecycleFunc(fn func(LifecycleEvent) error) LifecycleListener {
	return &lifecycleFunc{fn: fn}
}

type evaluatorFunc struct{ fn func(EvalEvent) error }

func (f *evaluatorFunc) OnEvaluate(e EvalEvent) error { return f.fn(e) }

// EvaluatorFunc adapts a function to an EvaluatorListener.
func EvaluatorFunc(fn func(EvalEvent) error) EvaluatorListener {
	return &evaluatorFunc{fn: fn}
}

type setupFunc struct{ fn func(SetupEvent) error }

func (f *setupFunc) OnSetup(e SetupEvent) error { return f.fn(e) }

// SetupFunc adapts a function to a SetupListener.
func SetupFunc(fn func(SetupEvent) error) SetupListener {
	return &setupFunc{fn: fn}
}

type progressFunc struct{ fn func(ProgressEvent) error }

func (f *progressFunc) OnProgress(e ProgressEvent) error { return f.fn(e) }

// ProgressFunc adapts a function to a ProgressListener.
func ProgressFunc(fn func(ProgressEvent) error) ProgressListener {
	return &progressFunc{fn: fn}
}

// registry holds the listeners of one category.
type registry[L any, E any] struct {
	category string
	deliver  func(L, E) error

	mu      sync.RWMutex
	entries []L
}

func newRegistry[L any, E any](category string, deliver func(L, E) error) *registry[L, E] {
	return &registry[L, E]{category: category, deliver: deliver}
}

func (r *registry[L, E]) add(l L) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, l)
}

// remove drops the first registration of l.
func (r *registry[L, E]) remove(l L) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, cand := range r.entries {
		if sameListener(cand, l) {
			r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

func (r *registry[L, E]) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// split returns the presentation and queued listeners in registration order.
func (r *registry[L, E]) split() (inline, queued []L) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, l := range r.entries {
		if isPresentation(l) {
			inline = append(inline, l)
		} else {
			queued = append(queued, l)
		}
	}
	return inline, queued
}

// fire delivers e to presentation listeners inline and submits one ordered
// delivery to the queued listeners.
func (r *registry[L, E]) fire(d *dispatcher, logger *zerolog.Logger, e E) {
	r.present(logger, e)
	r.enqueue(d, logger, e)
}

// present delivers e to the presentation listeners on the calling goroutine.
func (r *registry[L, E]) present(logger *zerolog.Logger, e E) {
	inline, _ := r.split()
	for _, l := range inline {
		r.safeDeliver(logger, l, e)
	}
}

// enqueue submits one ordered delivery of e to the queued listeners.
func (r *registry[L, E]) enqueue(d *dispatcher, logger *zerolog.Logger, e E) {
	_, queued := r.split()
	if len(queued) == 0 {
		return
	}
	d.submit(func() {
		for _, l := range queued {
			r.safeDeliver(logger, l, e)
		}
	})
}

func (r *registry[L, E]) safeDeliver(logger *zerolog.Logger, l L, e E) {
	defer func() {
		if rec := recover(); rec != nil {
			metrics.ListenerErrors.WithLabelValues(r.category).Inc()
			logger.Error().
				Str("category", r.category).
				Str("listener", fmt.Sprintf("%T", l)).
				Interface("panic", rec).
				Msg("Listener panicked")
		}
	}()
	if err := r.deliver(l, e); err != nil {
		metrics.ListenerErrors.WithLabelValues(r.category).Inc()
		logger.Warn().
			Err(err).
			Str("category", r.category).
			Str("listener", fmt.Sprintf("%T", l)).
			Msg("Listener failed")
	}
}

// sameListener compares listeners without panicking on incomparable types.
func sameListener(a, b any) bool {
	ta := reflect.TypeOf(a)
	if ta == nil || ta != reflect.TypeOf(b) || !ta.Comparable() {
		return false
	}
	return a == b
}

// AddLifecycleListener registers l.
func (c *Controller) AddLifecycleListener(l LifecycleListener) { c.lifecycle.add(l) }

// RemoveLifecycleListener unregisters l.
func (c *Controller) RemoveLifecycleListener(l LifecycleListener) bool {
	return c.lifecycle.remove(l)
}

// AddEvaluatorListener registers l.
func (c *Controller) AddEvaluatorListener(l EvaluatorListener) { c.evaluators.add(l) }

// RemoveEvaluatorListener unregisters l.
func (c *Controller) RemoveEvaluatorListener(l EvaluatorListener) bool {
	return c.evaluators.remove(l)
}

// AddSetupListener registers l.
func (c *Controller) AddSetupListener(l SetupListener) { c.setups.add(l) }

// RemoveSetupListener unregisters l.
func (c *Controller) RemoveSetupListener(l SetupListener) bool {
	return c.setups.remove(l)
}

// AddProgressListener registers l.
func (c *Controller) AddProgressListener(l ProgressListener) { c.progress.add(l) }

// RemoveProgressListener unregisters l.
func (c *Controller) RemoveProgressListener(l ProgressListener) bool {
	return c.progress.remove(l)
}
