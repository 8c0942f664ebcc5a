// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/metrics"
)

// dispatcher runs submitted deliveries one at a time, in submission order,
// on its own goroutine. The queue is unbounded so submit never blocks the
// worker.
type dispatcher struct {
	logger    zerolog.Logger
	warnDepth int

	mu     sync.Mutex
	queue  []func()
	closed bool
	signal chan struct{}
	done   chan struct{}
}

func newDispatcher(logger zerolog.Logger, warnDepth int) *dispatcher {
	d := &dispatcher{
		logger:    logger,
		warnDepth: warnDepth,
		signal:    make(chan struct{}, 1),
		done:      make(chan struct{}),
	}
	go d.loop()
	return d
}

// submit enqueues fn. It returns false once the dispatcher is closed.
func (d *dispatcher) submit(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	depth := len(d.queue)
	d.mu.Unlock()

	metrics.DispatchQueueDepth.Set(float64(depth))
	if d.warnDepth > 0 && depth == d.warnDepth {
		d.logger.Warn().Int("depth", depth).Msg("Listener queue is backing up")
	}

	select {
	case d.signal <- struct{}{}:
	default:
	}
	return true
}

func (d *dispatcher) depth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.queue)
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		batch := d.queue
		d.queue = nil
		closed := d.closed
		d.mu.Unlock()

		for _, fn := range batch {
			d.run(fn)
		}
		metrics.DispatchQueueDepth.Set(float64(d.depth()))

		if len(batch) > 0 {
			continue
		}
		if closed {
			return
		}
		<-d.signal
	}
}

func (d *dispatcher) run(fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			d.logger.Error().Interface("panic", rec).Msg("Queued delivery panicked")
		}
	}()
	fn()
}

// flush waits until everything submitted before the call has been delivered.
func (d *dispatcher) flush(ctx context.Context) error {
	marker := make(chan struct{})
	if !d.submit(func() { close(marker) }) {
		return d.wait(ctx)
	}
	select {
	case <-marker:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// close stops accepting deliveries and waits for the queue to drain.
func (d *dispatcher) close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		select {
		case d.signal <- struct{}{}:
		default:
		}
	}
	d.mu.Unlock()
	return d.wait(ctx)
}

func (d *dispatcher) wait(ctx context.Context) error {
	select {
	case <-d.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
