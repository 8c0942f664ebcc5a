// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package evaluator

import (
	"time"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
)

// Listener categories, used for logging and metrics labels.
const (
	CategoryLifecycle = "lifecycle"
	CategoryEvaluator = "evaluator"
	CategorySetup     = "setup"
	CategoryProgress  = "progress"
)

// LifecycleType is the kind of a LifecycleEvent.
type LifecycleType string

const (
	LifecycleStart       LifecycleType = "start"
	LifecyclePause       LifecycleType = "pause"
	LifecycleResume      LifecycleType = "resume"
	LifecycleStop        LifecycleType = "stop"
	LifecyclePoolUpdated LifecycleType = "pool_updated"
)

// LifecycleEvent reports a controller state transition.
type LifecycleEvent struct {
	Type  LifecycleType `json:"type"`
	RunID string        `json:"run_id,omitempty"`
	State State         `json:"state"`
	Time  time.Time     `json:"time"`
	// Seq increases by one per lifecycle event of the controller and
	// follows the order in which control operations took effect.
	Seq uint64 `json:"seq"`
}

// EvalType is the kind of an EvalEvent.
type EvalType string

const (
	EvalSetupTime EvalType = "setup_time"
	EvalSpeed     EvalType = "speed"
	EvalAccuracy  EvalType = "accuracy"
	EvalRecall    EvalType = "recall"
	EvalDoneOne   EvalType = "done_one"
	EvalDone      EvalType = "done"
)

// Terminal reports whether the event ends a unit of work.
func (t EvalType) Terminal() bool {
	return t == EvalDoneOne || t == EvalDone
}

// EvalEvent carries a metric sample or a terminal snapshot.
type EvalEvent struct {
	Type      EvalType  `json:"type"`
	RunID     string    `json:"run_id"`
	Algorithm string    `json:"algorithm,omitempty"`
	DatasetID int       `json:"dataset_id,omitempty"`
	Time      time.Time `json:"time"`

	// Sample is the updated metric for sample events.
	Sample *metric.Wrapper `json:"-"`

	// Metrics is a snapshot of the whole registry for terminal events.
	Metrics *metric.Metrics `json:"-"`

	// Forced marks the done event fired by ForceStop.
	Forced bool `json:"forced,omitempty"`
}

// SetupPhase is the stage of a SetupEvent.
type SetupPhase string

const (
	SetupBegin    SetupPhase = "begin"
	SetupProgress SetupPhase = "progress"
	SetupEnd      SetupPhase = "end"
)

// SetupEvent reports algorithm setup for one dataset pair.
type SetupEvent struct {
	Phase     SetupPhase              `json:"phase"`
	RunID     string                  `json:"run_id"`
	Algorithm string                  `json:"algorithm"`
	DatasetID int                     `json:"dataset_id"`
	Progress  algorithm.SetupProgress `json:"progress"`
	Elapsed   time.Duration           `json:"elapsed,omitempty"`
	Err       string                  `json:"error,omitempty"`
	Time      time.Time               `json:"time"`
}

// ProgressEvent carries the record counters after each testing record.
type ProgressEvent struct {
	RunID             string `json:"run_id"`
	Algorithm         string `json:"algorithm"`
	DatasetID         int    `json:"dataset_id"`
	Progress          int    `json:"progress"`
	ProgressTotal     int    `json:"progress_total"`
	PairProgress      int    `json:"pair_progress"`
	PairProgressTotal int    `json:"pair_progress_total"`
	Success           bool   `json:"success"`
}
