// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Command recbench runs the evaluation harness as a service.
//
// Startup order:
//
//  1. Configuration (koanf: defaults, YAML file, environment)
//  2. DuckDB ratings store and CSV imports
//  3. Dataset pool from pool.pairs, resolved through the duckdb and mem
//     schemes
//  4. Evaluation controller with the baseline algorithms
//  5. Run archive (Badger), attached as an evaluator listener
//  6. Remote export over NATS, optionally with an embedded server
//  7. HTTP API
//
// Everything long-lived runs under a suture tree and stops on SIGINT or
// SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tomtom215/recbench/internal/algorithm/baseline"
	"github.com/tomtom215/recbench/internal/api"
	"github.com/tomtom215/recbench/internal/config"
	"github.com/tomtom215/recbench/internal/logging"
	"github.com/tomtom215/recbench/internal/supervisor"
	"github.com/tomtom215/recbench/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().Msg("Starting recbench")

	if err := run(cfg); err != nil {
		logging.Fatal().Err(err).Msg("recbench failed")
	}
	logging.Info().Msg("recbench stopped")
}

//nolint:gocyclo // sequential wiring of optional components
func run(cfg *config.Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := openDatasets(ctx, cfg.Dataset)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing ratings store")
		}
	}()

	registry := baseline.Registry(baseline.Options{DelayUnsetup: cfg.Evaluator.DelayUnsetup})
	controller, err := newController(cfg.Evaluator, newResolver(store))
	if err != nil {
		return err
	}

	archiveStore, err := openArchive(cfg.Archive, controller)
	if err != nil {
		return err
	}
	if archiveStore != nil {
		defer func() {
			if err := archiveStore.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing run archive")
			}
		}()
	}

	tree := supervisor.NewTree(logging.NewSlogLogger(logging.WithComponent("supervisor")), supervisor.TreeConfig{
		FailureThreshold: cfg.Supervisor.FailureThreshold,
		FailureDecay:     cfg.Supervisor.FailureDecay,
		FailureBackoff:   cfg.Supervisor.FailureBackoff,
		ShutdownTimeout:  cfg.Supervisor.ShutdownTimeout,
	})

	var autostart func() error
	if cfg.Run.Autostart {
		autostart = func() error {
			return startConfiguredRun(ctx, controller, registry, cfg.Pool, cfg.Run, cfg.Remote.RequestTimeout)
		}
	} else if len(cfg.Pool.Pairs) > 0 {
		if err := installConfiguredPool(ctx, controller, cfg.Pool, cfg.Remote.RequestTimeout); err != nil {
			logging.Warn().Err(err).Msg("Configured pool was not installed")
		}
	}
	tree.AddEvaluationService(services.NewEvaluatorService(
		controller, autostart, cfg.Supervisor.ShutdownTimeout, logging.Logger(),
	))

	rc, err := setupRemote(cfg.Remote, controller, registry)
	if err != nil {
		return err
	}
	defer rc.close()
	if rc.exporter != nil {
		tree.AddRemoteService(services.NewExportService(rc.exporter))
	}

	if cfg.Server.Enabled {
		handler := api.NewHandler(api.Deps{
			Controller:    controller,
			Registry:      registry,
			Archive:       archiveStore,
			Exporter:      rc.exporter,
			ReloadTimeout: cfg.Remote.RequestTimeout,
		}, logging.Logger())

		server := &http.Server{
			Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
			Handler: api.NewRouter(handler, api.MiddlewareConfig{
				CORSAllowedOrigins: cfg.Server.CORSOrigins,
				CORSMaxAge:         300,
				RateLimitRequests:  cfg.Server.RateLimitRequests,
				RateLimitWindow:    cfg.Server.RateLimitWindow,
				RateLimitDisabled:  cfg.Server.RateLimitDisabled,
			}),
			ReadTimeout:       cfg.Server.ReadTimeout,
			ReadHeaderTimeout: cfg.Server.ReadTimeout,
			WriteTimeout:      cfg.Server.WriteTimeout,
			IdleTimeout:       60 * time.Second,
		}
		tree.AddAPIService(services.NewHTTPServerService(server, cfg.Server.ShutdownTimeout, logging.Logger()))
		logging.Info().Str("addr", server.Addr).Msg("HTTP server service added")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	if err := tree.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logging.Error().Err(err).Msg("Supervisor tree error")
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}
	return nil
}
