// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package services adapts recbench components to suture.Service.
package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 10 * time.Second

// APIServer is the part of *http.Server the service drives.
type APIServer interface {
	ListenAndServe() error
	Shutdown(ctx context.Context) error
}

// HTTPServerService runs the control API until its context ends, then
// drains in-flight requests for at most the shutdown timeout.
type HTTPServerService struct {
	server          APIServer
	shutdownTimeout time.Duration
	logger          zerolog.Logger
}

// NewHTTPServerService wraps server. A non-positive shutdownTimeout
// selects 10s.
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func NewHTTPServerService(server APIServer, shutdownTimeout time.Duration, logger zerolog.Logger) *HTTPServerService {
	if shutdownTimeout <= 0 {
		shutdownTimeout = defaultShutdownTimeout
	}
	return &HTTPServerService{
		server:          server,
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With().Str("component", "http_service").Logger(),
	}
}

// Serve implements suture.Service. A listener failure is returned so the
// supervisor restarts the listener with backoff; a running evaluation is
// not affected.
func (h *HTTPServerService) Serve(ctx context.Context) error {
	listenErr := make(chan error, 1)
	go func() {
		defer close(listenErr)
		if err := h.server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			listenErr <- err
		}
	}()
	h.logger.Debug().Msg("API listener started")

	select {
	case err, failed := <-listenErr:
		if !failed || err == nil {
			return nil
		}
		h.logger.Error().Err(err).Msg("API listener failed")
		return fmt.Errorf("api listener: %w", err)
	case <-ctx.Done():
	}

	drainCtx, cancel := context.WithTimeout(context.Background(), h.shutdownTimeout)
	defer cancel()
	if err := h.server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("api shutdown: %w", err)
	}
	<-listenErr
	h.logger.Debug().Msg("API listener stopped")
	return ctx.Err()
}

func (h *HTTPServerService) String() string {
	return "api-server"
}
