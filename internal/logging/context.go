// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package logging

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

type scopeKey struct{}

// scope is the log context carried by a context.Context. It is copied on
// every change, so parents never see a child's ids.
type scope struct {
	logger        *zerolog.Logger
	correlationID string
	requestID     string
	runID         string
}

func scopeOf(ctx context.Context) scope {
	s, _ := ctx.Value(scopeKey{}).(scope)
	return s
}

func withScope(ctx context.Context, change func(*scope)) context.Context {
	s := scopeOf(ctx)
	change(&s)
	return context.WithValue(ctx, scopeKey{}, s)
}

// GenerateCorrelationID returns a short id for grouping related entries.
func GenerateCorrelationID() string {
	return uuid.NewString()[:8]
}

// GenerateRequestID returns a full UUID.
func GenerateRequestID() string {
	return uuid.NewString()
}

// ContextWithCorrelationID stores id in ctx.
func ContextWithCorrelationID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.correlationID = id })
}

// ContextWithNewCorrelationID stores a fresh correlation id in ctx.
func ContextWithNewCorrelationID(ctx context.Context) context.Context {
	return ContextWithCorrelationID(ctx, GenerateCorrelationID())
}

// CorrelationIDFromContext returns "" when none is set.
func CorrelationIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).correlationID
}

// ContextWithRequestID stores id in ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.requestID = id })
}

// RequestIDFromContext returns "" when none is set.
func RequestIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).requestID
}

// ContextWithRunID tags ctx with the evaluation run it belongs to.
// Algorithms receive this context in Setup and Execute.
func ContextWithRunID(ctx context.Context, id string) context.Context {
	return withScope(ctx, func(s *scope) { s.runID = id })
}

// RunIDFromContext returns "" when none is set.
func RunIDFromContext(ctx context.Context) string {
	return scopeOf(ctx).runID
}

// ContextWithLogger makes logger the base for Ctx.
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func ContextWithLogger(ctx context.Context, logger zerolog.Logger) context.Context {
	return withScope(ctx, func(s *scope) { s.logger = &logger })
}

// LoggerFromContext falls back to the global logger.
func LoggerFromContext(ctx context.Context) zerolog.Logger {
	if l := scopeOf(ctx).logger; l != nil {
		return *l
	}
	return Logger()
}

// Ctx returns a logger carrying the ids found in ctx.
//
//	logging.Ctx(r.Context()).Warn().Msg("Pause rejected")
func Ctx(ctx context.Context) *zerolog.Logger {
	s := scopeOf(ctx)
	lctx := LoggerFromContext(ctx).With()
	for _, f := range [...]struct{ key, val string }{
		{"correlation_id", s.correlationID},
		{"request_id", s.requestID},
		{"run_id", s.runID},
	} {
		if f.val != "" {
			lctx = lctx.Str(f.key, f.val)
		}
	}
	l := lctx.Logger()
	return &l
}
