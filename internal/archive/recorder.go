// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package archive

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/tomtom215/recbench/internal/evaluator"
)

// putTimeout bounds a single archive write from the listener queue.
const putTimeout = 10 * time.Second

// Recorder archives the done event of every run. It is a queued listener
// and never blocks the evaluation worker.
type Recorder struct {
	store  *Store
	logger zerolog.Logger
}

var _ evaluator.EvaluatorListener = (*Recorder)(nil)

// NewRecorder creates a Recorder writing to store.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewRecorder(store *Store, logger zerolog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		logger: logger.With().Str("component", "archive").Logger(),
	}
}

// OnEvaluate implements evaluator.EvaluatorListener.
func (r *Recorder) OnEvaluate(e evaluator.EvalEvent) error {
	if e.Type != evaluator.EvalDone || e.Metrics == nil {
		return nil
	}

	run := &Run{
		ID:         e.RunID,
		FinishedAt: e.Time.UTC(),
		Forced:     e.Forced,
		Records:    e.Metrics.Records(),
	}

	ctx, cancel := context.WithTimeout(context.Background(), putTimeout)
	defer cancel()
	if err := r.store.Put(ctx, run); err != nil {
		return err
	}

	r.logger.Info().
		Str("run_id", run.ID).
		Int("records", len(run.Records)).
		Bool("forced", run.Forced).
		Msg("Run archived")
	return nil
}
