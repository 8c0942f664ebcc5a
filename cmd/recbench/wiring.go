// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package main

import (
	"context"
	"fmt"
	"time"

	natsgo "github.com/nats-io/nats.go"

	"github.com/tomtom215/recbench/internal/algorithm"
	"github.com/tomtom215/recbench/internal/archive"
	"github.com/tomtom215/recbench/internal/config"
	"github.com/tomtom215/recbench/internal/dataset"
	"github.com/tomtom215/recbench/internal/dataset/duckdb"
	"github.com/tomtom215/recbench/internal/evaluator"
	"github.com/tomtom215/recbench/internal/evaluator/metric"
	"github.com/tomtom215/recbench/internal/logging"
	"github.com/tomtom215/recbench/internal/remote"
)

// openDatasets opens the ratings database and runs the configured CSV
// imports.
func openDatasets(ctx context.Context, cfg config.DatasetConfig) (*duckdb.Store, error) {
	store, err := duckdb.Open(cfg.DuckDBPath, logging.Logger())
	if err != nil {
		return nil, fmt.Errorf("open ratings store: %w", err)
	}
	for _, imp := range cfg.Imports {
		if _, err := store.ImportCSV(ctx, imp.Table, imp.Path); err != nil {
			_ = store.Close()
			return nil, err
		}
	}
	return store, nil
}

// newResolver serves duckdb:// from store and an empty mem:// catalog.
func newResolver(store *duckdb.Store) dataset.Resolver {
	mux := dataset.NewMux()
	mux.Handle(duckdb.Scheme, store)
	mux.Handle(dataset.MemoryScheme, dataset.NewCatalog())
	return mux
}

func newController(cfg config.EvaluatorConfig, resolver dataset.Resolver) (*evaluator.Controller, error) {
	names := append([]string{metric.SetupTimeName, metric.SpeedName, metric.RecallName}, cfg.Metrics...)
	set, err := metric.Set(dedupe(names))
	if err != nil {
		return nil, fmt.Errorf("evaluator metrics: %w", err)
	}
	return evaluator.New(evaluator.Config{
		Metrics:        set,
		BackupDir:      cfg.BackupDir,
		BackupEnabled:  cfg.BackupEnabled,
		ForceStopGrace: cfg.ForceStopGrace,
		MaxRecords:     cfg.MaxRecords,
		QueueWarnDepth: cfg.QueueWarnDepth,
		Resolver:       resolver,
	}, logging.Logger()), nil
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := names[:0]
	for _, n := range names {
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// openArchive opens the run archive and records every finished run. It
// returns nil when the archive is disabled.
func openArchive(cfg config.ArchiveConfig, controller *evaluator.Controller) (*archive.Store, error) {
	if !cfg.Enabled {
		logging.Info().Msg("Run archive disabled")
		return nil, nil
	}
	store, err := archive.Open(archive.Config{
		Path:       cfg.Path,
		InMemory:   cfg.InMemory,
		SyncWrites: cfg.SyncWrites,
		Retention:  cfg.Retention,
	})
	if err != nil {
		return nil, fmt.Errorf("open run archive: %w", err)
	}
	controller.AddEvaluatorListener(archive.NewRecorder(store, logging.Logger()))
	logging.Info().Str("path", cfg.Path).Bool("in_memory", cfg.InMemory).Msg("Run archive opened")
	return store, nil
}

func poolSpec(cfg config.PoolConfig) dataset.PoolSpec {
	spec := dataset.PoolSpec{Pairs: make([]dataset.PairSpec, len(cfg.Pairs))}
	for i, p := range cfg.Pairs {
		spec.Pairs[i] = dataset.PairSpec{
			TrainingURI: p.Training,
			TestingURI:  p.Testing,
			WholeURI:    p.Whole,
		}
	}
	return spec
}

// installConfiguredPool installs and resolves the configured pool.
func installConfiguredPool(ctx context.Context, c *evaluator.Controller, cfg config.PoolConfig, timeout time.Duration) error {
	if !c.UpdatePool(dataset.FromSpec(poolSpec(cfg))) {
		return c.LastRejection()
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if !c.ReloadPool(ctx) {
		return c.LastRejection()
	}
	return nil
}

// startConfiguredRun starts the run described by the run section.
func startConfiguredRun(
	ctx context.Context,
	c *evaluator.Controller,
	registry *algorithm.Registry,
	pool config.PoolConfig,
	run config.RunConfig,
	timeout time.Duration,
) error {
	algs, err := registry.Instantiate(run.Algorithms)
	if err != nil {
		return err
	}
	if err := installConfiguredPool(ctx, c, pool, timeout); err != nil {
		return err
	}
	if !c.Start(algs, c.Pool(), algorithm.Params(run.Params)) {
		return c.LastRejection()
	}
	return nil
}

// remoteComponents holds what setupRemote opened, for shutdown.
type remoteComponents struct {
	server   *remote.EmbeddedServer
	conn     *natsgo.Conn
	events   *remote.EventPublisher
	exporter *remote.Exporter
}

// setupRemote connects to NATS and builds the exporter. The exporter is
// nil when remote export is disabled.
func setupRemote(cfg config.RemoteConfig, c *evaluator.Controller, registry *algorithm.Registry) (*remoteComponents, error) {
	rc := &remoteComponents{}
	if !cfg.Enabled {
		logging.Info().Msg("Remote export disabled")
		return rc, nil
	}

	url := cfg.URL
	if cfg.Embedded {
		srv, err := remote.NewEmbeddedServer(remote.ServerConfig{Host: cfg.EmbeddedHost, Port: cfg.EmbeddedPort})
		if err != nil {
			return nil, fmt.Errorf("start embedded NATS: %w", err)
		}
		rc.server = srv
		url = srv.ClientURL()
		logging.Info().Str("url", url).Msg("Embedded NATS server started")
	}

	conn, err := remote.Connect(url, "recbench")
	if err != nil {
		rc.close()
		return nil, err
	}
	rc.conn = conn

	pub, err := remote.NewNATSPublisher(url, logging.Logger())
	if err != nil {
		rc.close()
		return nil, err
	}

	rcfg := remote.Config{
		Prefix:            cfg.Prefix,
		ProgressPerSecond: cfg.ProgressPerSecond,
		ProgressBurst:     cfg.ProgressBurst,
		BreakerFailures:   cfg.BreakerFailures,
		BreakerTimeout:    cfg.BreakerTimeout,
		RequestTimeout:    cfg.RequestTimeout,
	}
	rc.events = remote.NewEventPublisher(pub, rcfg, logging.Logger())
	rc.exporter = remote.NewExporter(c, registry, conn, rc.events, rcfg, logging.Logger())
	return rc, nil
}

func (rc *remoteComponents) close() {
	if rc.exporter != nil {
		if err := rc.exporter.Unexport(); err != nil {
			logging.Warn().Err(err).Msg("Error unexporting controller")
		}
	}
	if rc.events != nil {
		if err := rc.events.Close(); err != nil {
			logging.Warn().Err(err).Msg("Error closing event publisher")
		}
	}
	if rc.conn != nil {
		rc.conn.Close()
	}
	if rc.server != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rc.server.Shutdown(ctx); err != nil {
			logging.Warn().Err(err).Msg("Error stopping embedded NATS server")
		}
	}
}
