// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package metric provides incrementally updated evaluation metrics and the
// registry that scopes them to (algorithm, dataset pair) contexts.
//
// # Aggregation shapes
//
//   - Duration: running mean of time.Duration observations (SetupTime, Speed)
//   - Fraction: successes over a denominator known at the end of a pair (Recall)
//   - Accuracy: error accumulated from one Observation per testing record
//     (MAE, MSE, RMSE, Coverage)
//
// A Metric is not safe for concurrent use. The Metrics registry serializes
// access to the metrics it holds and hands out clones.
package metric

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrObservationType is returned by Recalc when the observation does not
	// match the metric's aggregation shape.
	ErrObservationType = errors.New("metric: unexpected observation type")

	// ErrUnknownMetric is returned for unregistered metric names.
	ErrUnknownMetric = errors.New("metric: unknown metric")
)

// Metric names.
const (
	SetupTimeName = "SetupTime"
	SpeedName     = "Speed"
	RecallName    = "Recall"
	MAEName       = "MAE"
	MSEName       = "MSE"
	RMSEName      = "RMSE"
	CoverageName  = "Coverage"
)

// Kind is the aggregation shape of a metric.
type Kind int

const (
	KindDuration Kind = iota
	KindFraction
	KindAccuracy
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindDuration:
		return "duration"
	case KindFraction:
		return "fraction"
	case KindAccuracy:
		return "accuracy"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Metric is a named measurement with an incremental update rule.
type Metric interface {
	// Name identifies the metric inside a metric list.
	Name() string

	// Kind reports the aggregation shape.
	Kind() Kind

	// Value returns the current aggregate. Durations are in milliseconds.
	Value() float64

	// Count returns the number of observations folded in so far.
	Count() int

	// Recalc folds one observation into the aggregate.
	Recalc(obs any) error

	// Clone returns an independent copy including the aggregate.
	Clone() Metric

	// Reset returns an empty metric of the same type.
	Reset() Metric
}

var constructors = map[string]func() Metric{
	SetupTimeName: func() Metric { return NewSetupTime() },
	SpeedName:     func() Metric { return NewSpeed() },
	RecallName:    func() Metric { return NewRecall() },
	MAEName:       func() Metric { return NewMAE() },
	MSEName:       func() Metric { return NewMSE() },
	RMSEName:      func() Metric { return NewRMSE() },
	CoverageName:  func() Metric { return NewCoverage() },
}

// Names returns the registered metric names, sorted.
func Names() []string {
	out := make([]string, 0, len(constructors))
	for name := range constructors {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// ByName creates an empty metric.
func ByName(name string) (Metric, error) {
	ctor, ok := constructors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
	return ctor(), nil
}

// Set builds a metric set from names, in order.
func Set(names []string) ([]Metric, error) {
	out := make([]Metric, 0, len(names))
	for _, name := range names {
		m, err := ByName(name)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// DefaultNames is the metric set used when none is configured.
var DefaultNames = []string{SetupTimeName, SpeedName, RecallName, MAEName, RMSEName}

// DefaultSet returns a fresh default metric set.
func DefaultSet() []Metric {
	set, _ := Set(DefaultNames) //nolint:errcheck // names are registered above
	return set
}
