// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"errors"
	"time"
)

// Config configures the exporter and its event publisher.
type Config struct {
	// Prefix is the first subject token. Defaults to "recbench".
	Prefix string

	// ProgressPerSecond limits the progress events published per second.
	// Zero publishes every progress event.
	ProgressPerSecond float64

	// ProgressBurst is the token bucket size for progress events.
	ProgressBurst int

	// BreakerFailures is the number of consecutive publish failures that
	// opens the circuit breaker.
	BreakerFailures uint32

	// BreakerTimeout is how long the breaker stays open before probing.
	BreakerTimeout time.Duration

	// RequestTimeout bounds operations executed on behalf of a remote
	// caller, such as a pool reload.
	RequestTimeout time.Duration
}

// DefaultConfig returns the defaults used for zero fields.
func DefaultConfig() Config {
	return Config{
		Prefix:            "recbench",
		ProgressPerSecond: 10,
		ProgressBurst:     20,
		BreakerFailures:   5,
		BreakerTimeout:    30 * time.Second,
		RequestTimeout:    30 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Prefix == "" {
		c.Prefix = d.Prefix
	}
	if c.ProgressBurst <= 0 {
		c.ProgressBurst = d.ProgressBurst
	}
	if c.BreakerFailures == 0 {
		c.BreakerFailures = d.BreakerFailures
	}
	if c.BreakerTimeout <= 0 {
		c.BreakerTimeout = d.BreakerTimeout
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	return c
}

// ErrNotConnected is returned when no NATS connection is available.
var ErrNotConnected = errors.New("remote: not connected")

// Control operation names, used as the last subject token.
const (
	OpStart      = "start"
	OpPause      = "pause"
	OpResume     = "resume"
	OpStop       = "stop"
	OpForceStop  = "force-stop"
	OpUpdatePool = "update-pool"
	OpReloadPool = "reload-pool"
	OpResult     = "result"
	OpInfo       = "info"
)

// ControlSubject returns the request subject of op.
func ControlSubject(prefix, op string) string {
	return prefix + ".control." + op
}

// EventSubject returns the subject events of category are published to.
func EventSubject(prefix, category string) string {
	return prefix + ".events." + category
}
