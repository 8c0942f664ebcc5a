// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package logging

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
)

func decode(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &out); err != nil {
		t.Fatalf("decode %q: %v", buf.String(), err)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zerolog.Level
	}{
		{"debug", zerolog.DebugLevel},
		{" WARN ", zerolog.WarnLevel},
		{"warning", zerolog.WarnLevel},
		{"off", zerolog.Disabled},
		{"bogus", zerolog.InfoLevel},
		{"", zerolog.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := ParseLevel(tt.in); got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
	if ValidLevel("bogus") {
		t.Error("ValidLevel(bogus) = true")
	}
	if !ValidLevel("error") {
		t.Error("ValidLevel(error) = false")
	}
}

func TestInitAndWithComponent(t *testing.T) {
	orig := Logger()
	origLevel := zerolog.GlobalLevel()
	t.Cleanup(func() {
		SetLogger(orig)
		zerolog.SetGlobalLevel(origLevel)
	})

	var buf bytes.Buffer
	Init(Config{Level: "debug", Format: "json", Output: &buf})
	l := WithComponent("evaluator")
	l.Debug().Int("pairs", 2).Msg("Pool installed")

	got := decode(t, &buf)
	if got["component"] != "evaluator" {
		t.Errorf("component = %v", got["component"])
	}
	if got["message"] != "Pool installed" {
		t.Errorf("message = %v", got["message"])
	}
	if _, ok := got["time"]; !ok {
		t.Error("missing time field")
	}
}

func TestCtx(t *testing.T) {
	var buf bytes.Buffer
	ctx := ContextWithLogger(context.Background(), NewTestLogger(&buf))
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithCorrelationID(ctx, "corr-1")
	ctx = ContextWithRunID(ctx, "run-1")

	Ctx(ctx).Info().Msg("hello")
	got := decode(t, &buf)
	for key, want := range map[string]string{"request_id": "req-1", "correlation_id": "corr-1", "run_id": "run-1"} {
		if got[key] != want {
			t.Errorf("%s = %v, want %s", key, got[key], want)
		}
	}

	if RequestIDFromContext(context.Background()) != "" {
		t.Error("empty context should have no request id")
	}
	if id := GenerateCorrelationID(); len(id) != 8 {
		t.Errorf("correlation id %q should be 8 chars", id)
	}
}

func TestContextScopeIsCopied(t *testing.T) {
	parent := ContextWithRunID(context.Background(), "run-1")
	child := ContextWithRequestID(parent, "req-1")

	if RequestIDFromContext(parent) != "" {
		t.Error("child request id leaked into parent")
	}
	if RunIDFromContext(child) != "run-1" {
		t.Errorf("child run id = %q, want run-1", RunIDFromContext(child))
	}
}

func TestSlogHandler(t *testing.T) {
	var buf bytes.Buffer
	logger := NewSlogLogger(NewTestLogger(&buf))

	logger.With("service", "evaluator").WithGroup("event").Warn("restart",
		slog.Int("attempt", 3),
		slog.Any("err", errors.New("boom")),
		slog.Group("backoff", slog.Duration("wait", 0)),
	)

	got := decode(t, &buf)
	if got["level"] != "warn" {
		t.Errorf("level = %v", got["level"])
	}
	if got["service"] != "evaluator" {
		t.Errorf("service = %v", got["service"])
	}
	if got["event.attempt"] != float64(3) {
		t.Errorf("event.attempt = %v", got["event.attempt"])
	}
	if got["event.err"] != "boom" {
		t.Errorf("event.err = %v", got["event.err"])
	}
	if _, ok := got["event.backoff.wait"]; !ok {
		t.Errorf("missing nested group key in %s", buf.String())
	}
}

func TestSlogHandler_Enabled(t *testing.T) {
	var buf bytes.Buffer
	h := NewSlogHandler(NewTestLogger(&buf).Level(zerolog.WarnLevel))
	if h.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("info should be disabled at warn level")
	}
	if !h.Enabled(context.Background(), slog.LevelError) {
		t.Error("error should be enabled at warn level")
	}
	slog.New(h).Info("dropped")
	if strings.TrimSpace(buf.String()) != "" {
		t.Errorf("unexpected output %q", buf.String())
	}
}
