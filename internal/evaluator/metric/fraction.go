// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metric

import "fmt"

// Fraction is the observation of a Recall metric.
type Fraction struct {
	Successes int
	Total     int
}

// Recall is the share of testing records that produced a usable result.
// Each observation replaces the aggregate since the denominator is only
// known once a dataset pair has been fully evaluated.
type Recall struct {
	frac  Fraction
	count int
}

// NewRecall creates an empty recall metric.
func NewRecall() *Recall {
	return &Recall{}
}

func (r *Recall) Name() string { return RecallName }

func (r *Recall) Kind() Kind { return KindFraction }

// Value returns successes / total, or 0 when total is 0.
func (r *Recall) Value() float64 {
	if r.frac.Total == 0 {
		return 0
	}
	return float64(r.frac.Successes) / float64(r.frac.Total)
}

// Fraction returns the recorded fraction.
func (r *Recall) Fraction() Fraction { return r.frac }

func (r *Recall) Count() int { return r.count }

// Recalc accepts a Fraction.
func (r *Recall) Recalc(obs any) error {
	f, ok := obs.(Fraction)
	if !ok {
		return fmt.Errorf("%w: %s wants metric.Fraction, got %T", ErrObservationType, RecallName, obs)
	}
	if f.Total < 0 || f.Successes < 0 || f.Successes > f.Total {
		return fmt.Errorf("metric: invalid fraction %d/%d", f.Successes, f.Total)
	}
	r.frac = f
	r.count++
	return nil
}

func (r *Recall) Clone() Metric {
	cp := *r
	return &cp
}

func (r *Recall) Reset() Metric {
	return NewRecall()
}
