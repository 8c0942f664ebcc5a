// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Closer is satisfied by *evaluator.Controller.
type Closer interface {
	Close(ctx context.Context) error
}

// EvaluatorService owns the controller's lifetime. It triggers the
// configured autostart run once and closes the controller on shutdown.
type EvaluatorService struct {
	controller      Closer
	autostart       func() error
	started         atomic.Bool
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewEvaluatorService wraps controller. autostart may be nil.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewEvaluatorService(controller Closer, autostart func() error, shutdownTimeout time.Duration, logger zerolog.Logger) *EvaluatorService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &EvaluatorService{
		controller:      controller,
		autostart:       autostart,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "evaluator_service").Logger(),
	}
}

// Serve implements suture.Service. A failed autostart is logged and not
// retried on restart; the controller stays usable through the API.
func (s *EvaluatorService) Serve(ctx context.Context) error {
	if s.autostart != nil && s.started.CompareAndSwap(false, true) {
		if err := s.autostart(); err != nil {
			s.logger.Error().Err(err).Msg("Autostart run was not started")
		} else {
			s.logger.Info().Msg("Autostart run started")
		}
	}

	<-ctx.Done()

	closeCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
	defer cancel()
	if err := s.controller.Close(closeCtx); err != nil {
		return fmt.Errorf("close evaluator: %w", err)
	}
	return ctx.Err()
}

func (s *EvaluatorService) String() string {
	return "evaluator"
}
