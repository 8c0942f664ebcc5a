// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package metric

import (
	"fmt"
	"math"
)

// Observation pairs the estimates of one execution with the ground truth of
// the testing record.
type Observation struct {
	Estimates map[int]float64
	Truth     map[int]float64
}

type accuracyRule int

const (
	ruleMAE accuracyRule = iota
	ruleMSE
	ruleRMSE
	ruleCoverage
)

// Accuracy accumulates rating errors over all estimated items of all
// observed records. Items without ground truth are ignored.
type Accuracy struct {
	name    string
	rule    accuracyRule
	absSum  float64
	sqSum   float64
	matched int // estimated items with ground truth
	asked   int // ground-truth items
	records int
}

// NewMAE creates the mean absolute error metric.
func NewMAE() *Accuracy { return &Accuracy{name: MAEName, rule: ruleMAE} }

// NewMSE creates the mean squared error metric.
func NewMSE() *Accuracy { return &Accuracy{name: MSEName, rule: ruleMSE} }

// NewRMSE creates the root mean squared error metric.
func NewRMSE() *Accuracy { return &Accuracy{name: RMSEName, rule: ruleRMSE} }

// NewCoverage creates the metric measuring the share of ground-truth items
// that received an estimate.
func NewCoverage() *Accuracy { return &Accuracy{name: CoverageName, rule: ruleCoverage} }

func (a *Accuracy) Name() string { return a.name }

func (a *Accuracy) Kind() Kind { return KindAccuracy }

func (a *Accuracy) Value() float64 {
	switch a.rule {
	case ruleCoverage:
		if a.asked == 0 {
			return 0
		}
		return float64(a.matched) / float64(a.asked)
	case ruleMAE:
		if a.matched == 0 {
			return 0
		}
		return a.absSum / float64(a.matched)
	case ruleMSE:
		if a.matched == 0 {
			return 0
		}
		return a.sqSum / float64(a.matched)
	default:
		if a.matched == 0 {
			return 0
		}
		return math.Sqrt(a.sqSum / float64(a.matched))
	}
}

// Count returns the number of observed records.
func (a *Accuracy) Count() int { return a.records }

// Recalc accepts an Observation.
func (a *Accuracy) Recalc(obs any) error {
	o, ok := obs.(Observation)
	if !ok {
		return fmt.Errorf("%w: %s wants metric.Observation, got %T", ErrObservationType, a.name, obs)
	}
	for item, truth := range o.Truth {
		a.asked++
		est, ok := o.Estimates[item]
		if !ok || math.IsNaN(est) || math.IsInf(est, 0) {
			continue
		}
		diff := est - truth
		a.absSum += math.Abs(diff)
		a.sqSum += diff * diff
		a.matched++
	}
	a.records++
	return nil
}

func (a *Accuracy) Clone() Metric {
	cp := *a
	return &cp
}

func (a *Accuracy) Reset() Metric {
	return &Accuracy{name: a.name, rule: a.rule}
}
