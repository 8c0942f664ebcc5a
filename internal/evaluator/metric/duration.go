// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metric

import (
	"fmt"
	"time"
)

// Duration is a running mean of durations.
type Duration struct {
	name  string
	total time.Duration
	last  time.Duration
	count int
}

// NewSetupTime creates the metric recording algorithm setup durations.
func NewSetupTime() *Duration {
	return &Duration{name: SetupTimeName}
}

// NewSpeed creates the metric recording per-record execution durations.
func NewSpeed() *Duration {
	return &Duration{name: SpeedName}
}

func (d *Duration) Name() string { return d.name }

func (d *Duration) Kind() Kind { return KindDuration }

// Value returns the mean duration in milliseconds.
func (d *Duration) Value() float64 {
	if d.count == 0 {
		return 0
	}
	return float64(d.Mean()) / float64(time.Millisecond)
}

// Mean returns the mean duration.
func (d *Duration) Mean() time.Duration {
	if d.count == 0 {
		return 0
	}
	return d.total / time.Duration(d.count)
}

// Total returns the accumulated duration.
func (d *Duration) Total() time.Duration { return d.total }

// Last returns the most recent observation.
func (d *Duration) Last() time.Duration { return d.last }

func (d *Duration) Count() int { return d.count }

// Recalc accepts a time.Duration.
func (d *Duration) Recalc(obs any) error {
	v, ok := obs.(time.Duration)
	if !ok {
		return fmt.Errorf("%w: %s wants time.Duration, got %T", ErrObservationType, d.name, obs)
	}
	d.total += v
	d.last = v
	d.count++
	return nil
}

func (d *Duration) Clone() Metric {
	cp := *d
	return &cp
}

func (d *Duration) Reset() Metric {
	return &Duration{name: d.name}
}
