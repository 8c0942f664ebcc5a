// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
)

// Request is the body of a control request. Operations without arguments
// accept an empty body.
type Request struct {
	Algorithms []string          `json:"algorithms,omitempty"`
	Params     algorithm.Params  `json:"params,omitempty"`
	Pool       *dataset.PoolSpec `json:"pool,omitempty"`
}

// Reply is the body of every control reply.
type Reply struct {
	OK      bool            `json:"ok"`
	Error   string          `json:"error,omitempty"`
	State   string          `json:"state"`
	Info    *evaluator.Info `json:"info,omitempty"`
	Records []metric.Record `json:"records,omitempty"`
}

// EvalMessage is the wire form of an evaluator.EvalEvent.
type EvalMessage struct {
	evaluator.EvalEvent
	Sample  *metric.Record  `json:"sample,omitempty"`
	Records []metric.Record `json:"records,omitempty"`
}

func newEvalMessage(e evaluator.EvalEvent) EvalMessage {
	m := EvalMessage{EvalEvent: e}
	if e.Sample != nil {
		r := e.Sample.Record()
		m.Sample = &r
	}
	if e.Metrics != nil {
		m.Records = e.Metrics.Records()
	}
	return m
}
