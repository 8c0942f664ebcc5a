// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"fmt"
	"sort"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/metrics"
)

// Set-up algorithms are tracked by their slot in run.algorithms rather
// than by interface equality, which does not hold for algorithm values of
// incomparable types.

// delayedTeardown is an algorithm awaiting teardown at the next start or
// at Close.
type delayedTeardown struct {
	runID string
	slot  int
	alg   algorithm.Algorithm
}

// markActive records that the algorithm in slot finished setup in r. It
// returns false when the run has been invalidated, in which case the caller
// owns teardown.
func (c *Controller) markActive(r *run, slot int, alg algorithm.Algorithm) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != r.gen {
		return false
	}
	if r.active == nil {
		r.active = make(map[int]algorithm.Algorithm, len(r.algorithms))
	}
	r.active[slot] = alg
	return true
}

// claimTeardown removes slot from the active set of r. It returns false
// when slot is not active or the run has been invalidated by ForceStop,
// which then owns the teardown.
func (c *Controller) claimTeardown(r *run, slot int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != r.gen {
		return false
	}
	if _, ok := r.active[slot]; !ok {
		return false
	}
	delete(r.active, slot)
	return true
}

func sortedSlots(active map[int]algorithm.Algorithm) []int {
	slots := make([]int, 0, len(active))
	for slot := range active {
		slots = append(slots, slot)
	}
	sort.Ints(slots)
	return slots
}

// release tears alg down now, or queues it when its configuration asks for
// delayed teardown. A slot is queued at most once per run.
func (c *Controller) release(r *run, slot int, alg algorithm.Algorithm, mode string) {
	if alg.Config().DelayUnsetup {
		c.mu.Lock()
		queued := false
		for _, p := range c.pending {
			if p.runID == r.id && p.slot == slot {
				queued = true
				break
			}
		}
		if !queued {
			c.pending = append(c.pending, delayedTeardown{runID: r.id, slot: slot, alg: alg})
		}
		c.mu.Unlock()
		r.logger.Debug().Str("algorithm", alg.Name()).Msg("Teardown delayed")
		return
	}

	err := safeUnsetup(alg)
	metrics.RecordTeardown(mode, err)
	if err != nil {
		r.logger.Error().Err(err).Str("algorithm", alg.Name()).Str("mode", mode).Msg("Algorithm teardown failed")
	}
}

// drainPending tears down every algorithm whose teardown was delayed. It is
// called with ctrlMu held when a run starts and when the controller closes.
func (c *Controller) drainPending() {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.mu.Unlock()

	for _, p := range pending {
		alg := p.alg
		err := safeUnsetup(alg)
		metrics.RecordTeardown("delayed", err)
		if err != nil {
			c.logger.Error().Err(err).Str("algorithm", alg.Name()).Msg("Delayed teardown failed")
			continue
		}
		c.logger.Debug().Str("algorithm", alg.Name()).Msg("Delayed teardown done")
	}
}

// PendingTeardowns returns the number of algorithms awaiting delayed
// teardown.
func (c *Controller) PendingTeardowns() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

func safeUnsetup(alg algorithm.Algorithm) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("unsetup panicked: %v", rec)
		}
	}()
	return alg.Unsetup(context.Background())
}
