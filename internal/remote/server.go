// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package remote

import (
	"context"
	"fmt"
	"time"

	"github.com/nats-io/nats-server/v2/server"
)

const (
	defaultReadyTimeout = 10 * time.Second
	// Stub results carry whole Info and Result snapshots.
	defaultMaxPayload = 8 << 20
)

// ServerConfig configures the embedded NATS server.
type ServerConfig struct {
	Host string
	// Port of the client listener. -1 picks a free port.
	Port int
	// ReadyTimeout bounds startup. Zero selects 10s.
	ReadyTimeout time.Duration
	// MaxPayload in bytes. Zero selects 8 MiB.
	MaxPayload int32
}

// EmbeddedServer is an in-process NATS server that a single-host
// deployment exports the controller on.
type EmbeddedServer struct {
	ns *server.Server
}

// NewEmbeddedServer starts an embedded server and waits until it accepts
// clients.
func NewEmbeddedServer(cfg ServerConfig) (*EmbeddedServer, error) {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	if cfg.MaxPayload <= 0 {
		cfg.MaxPayload = defaultMaxPayload
	}

	ns, err := server.NewServer(&server.Options{
		ServerName: "recbench",
		Host:       cfg.Host,
		Port:       cfg.Port,
		MaxPayload: cfg.MaxPayload,
		NoLog:      true,
		NoSigs:     true,
	})
	if err != nil {
		return nil, fmt.Errorf("embedded nats: %w", err)
	}
	go ns.Start()
	if !ns.ReadyForConnections(cfg.ReadyTimeout) {
		ns.Shutdown()
		return nil, fmt.Errorf("embedded nats: not ready after %s", cfg.ReadyTimeout)
	}
	return &EmbeddedServer{ns: ns}, nil
}

// ClientURL is the nats:// URL clients dial.
func (s *EmbeddedServer) ClientURL() string {
	return s.ns.ClientURL()
}

// Shutdown stops the server and waits for it to exit or ctx to end.
func (s *EmbeddedServer) Shutdown(ctx context.Context) error {
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		s.ns.Shutdown()
		s.ns.WaitForShutdown()
	}()
	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
