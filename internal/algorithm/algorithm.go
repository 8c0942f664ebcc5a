// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package algorithm defines the contract between the evaluator and the
// recommendation algorithms it measures.
//
// Algorithms are opaque to the evaluator. It sets an algorithm up with a
// training dataset, executes it once per testing profile and tears it down.
// Optional capabilities (setup progress reporting, pausable learning) are
// discovered through interface assertions once per algorithm evaluation; see
// CapabilityOf.
package algorithm

import (
	"context"
	"errors"
	"strconv"

	"github.com/tomtom215/recbench/internal/dataset"
)

var (
	// ErrUnknownAlgorithm is returned by Registry for unregistered names.
	ErrUnknownAlgorithm = errors.New("algorithm: unknown algorithm")

	// ErrNotSetup is returned by Execute when Setup has not completed.
	ErrNotSetup = errors.New("algorithm: not set up")
)

// Params carries run-wide parameters passed to Setup.
type Params map[string]any

// Int returns the integer parameter key, or def when absent or not numeric.
func (p Params) Int(key string, def int) int {
	switch v := p[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// Float returns the float parameter key, or def when absent or not numeric.
func (p Params) Float(key string, def float64) float64 {
	switch v := p[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case string:
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

// Config is the read-only configuration the evaluator consults.
type Config struct {
	// DelayUnsetup defers teardown until the next run starts or the
	// evaluator closes, so an expensive model is torn down once per run
	// instead of once per dataset pair.
	DelayUnsetup bool `json:"delay_unsetup"`

	// Params holds algorithm-specific settings, for display only.
	Params map[string]string `json:"params,omitempty"`
}

// Param is the input of a single Execute call.
type Param struct {
	// Profile is the testing profile. Its ratings are the ground truth and
	// must not be used for estimation.
	Profile dataset.Profile

	// Items are the items to estimate ratings for.
	Items []int
}

// NewParam builds the execution parameter for a testing profile: every rated
// item is asked for.
func NewParam(profile dataset.Profile) Param {
	return Param{Profile: profile, Items: profile.Items()}
}

// Result is the output of a single Execute call.
type Result struct {
	// Estimates maps item IDs to estimated ratings.
	Estimates map[int]float64
}

// Usable reports whether the result carries at least one estimate.
func (r *Result) Usable() bool {
	return r != nil && len(r.Estimates) > 0
}

// Algorithm is a recommendation algorithm under evaluation.
type Algorithm interface {
	// Name returns the algorithm identifier used in metric keys.
	Name() string

	// Config returns the algorithm configuration.
	Config() Config

	// Setup trains the algorithm on the training dataset.
	Setup(ctx context.Context, training dataset.Dataset, params Params) error

	// Execute estimates ratings for param.Items. A nil result or a result
	// without estimates counts as a miss.
	Execute(ctx context.Context, param Param) (*Result, error)

	// Unsetup releases the model built by Setup.
	Unsetup(ctx context.Context) error
}

// SetupProgress is one progress report emitted during Setup.
type SetupProgress struct {
	Step    int
	Total   int
	Message string
}

// SetupObserver receives setup progress reports.
type SetupObserver func(SetupProgress)

// SetupReporter is implemented by algorithms that report progress while
// setting up. The evaluator installs an observer before Setup and removes it
// (passes nil) afterwards.
type SetupReporter interface {
	SetSetupObserver(obs SetupObserver)
}

// Learner is implemented by algorithms whose setup is a long-running learning
// process that can be suspended from outside, typically because the model is
// trained by another process.
type Learner interface {
	LearnPause() bool
	LearnResume() bool
	LearnStop() bool
}
