// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

// Package config loads recbench configuration.
//
// Values are layered with koanf: built-in defaults, then an optional YAML
// file, then environment variables. The file is taken from CONFIG_PATH or
// the first of DefaultConfigPaths that exists. Environment variables use the
// RECBENCH_ prefix with double underscores between sections:
//
//	RECBENCH_EVALUATOR__BACKUP_DIR=/var/lib/recbench/backups
//	RECBENCH_REMOTE__ENABLED=true
//	RECBENCH_RUN__ALGORITHMS=itemmean,popularity
//
// A handful of short aliases (LOG_LEVEL, HTTP_PORT, NATS_URL) are accepted
// for convenience.
package config

import "time"

// Config is the complete service configuration.
type Config struct {
	Evaluator  EvaluatorConfig  `koanf:"evaluator"`
	Dataset    DatasetConfig    `koanf:"dataset"`
	Pool       PoolConfig       `koanf:"pool"`
	Run        RunConfig        `koanf:"run"`
	Archive    ArchiveConfig    `koanf:"archive"`
	Remote     RemoteConfig     `koanf:"remote"`
	Server     ServerConfig     `koanf:"server"`
	Logging    LoggingConfig    `koanf:"logging"`
	Supervisor SupervisorConfig `koanf:"supervisor"`
}

// EvaluatorConfig configures the run controller.
type EvaluatorConfig struct {
	// BackupDir receives text snapshots. Empty disables backups.
	BackupDir string `koanf:"backup_dir"`

	// BackupEnabled writes backups even when listeners are attached.
	BackupEnabled bool `koanf:"backup_enabled"`

	// ForceStopGrace is waited before a forced teardown. It is a heuristic:
	// a blocked algorithm call may still be running afterwards.
	ForceStopGrace time.Duration `koanf:"force_stop_grace" validate:"gte=0,lte=1m"`

	QueueWarnDepth int `koanf:"queue_warn_depth" validate:"gte=0"`

	// Metrics names the accuracy metrics seeded per pair.
	Metrics []string `koanf:"metrics" validate:"dive,oneof=SetupTime Speed Recall MAE MSE RMSE Coverage"`

	// MaxRecords bounds the testing records per pair. Zero means all.
	MaxRecords int `koanf:"max_records" validate:"gte=0"`

	// DelayUnsetup marks the baseline algorithms for delayed teardown.
	DelayUnsetup bool `koanf:"delay_unsetup"`
}

// DatasetConfig configures dataset resolution.
type DatasetConfig struct {
	// DuckDBPath is the ratings database. Empty opens an in-memory database.
	DuckDBPath string `koanf:"duckdb_path"`

	// Imports loads CSV files (user,item,rating) into tables at startup.
	Imports []ImportConfig `koanf:"imports" validate:"dive"`
}

// ImportConfig loads one CSV file into a ratings table.
type ImportConfig struct {
	Table string `koanf:"table" validate:"required,max=63"`
	Path  string `koanf:"path" validate:"required"`
}

// PoolConfig lists the dataset pairs installed at startup.
type PoolConfig struct {
	Pairs []PairConfig `koanf:"pairs" validate:"dive"`
}

// PairConfig names the datasets of one pair.
type PairConfig struct {
	Training string `koanf:"training" validate:"required,uri"`
	Testing  string `koanf:"testing" validate:"required,uri"`
	Whole    string `koanf:"whole" validate:"omitempty,uri"`
}

// RunConfig describes a run started when the service comes up.
type RunConfig struct {
	Autostart  bool           `koanf:"autostart"`
	Algorithms []string       `koanf:"algorithms" validate:"unique,dive,required"`
	Params     map[string]any `koanf:"params"`
}

// ArchiveConfig configures the Badger run archive.
type ArchiveConfig struct {
	Enabled    bool          `koanf:"enabled"`
	Path       string        `koanf:"path"`
	InMemory   bool          `koanf:"in_memory"`
	SyncWrites bool          `koanf:"sync_writes"`
	Retention  time.Duration `koanf:"retention" validate:"gte=0"`
}

// RemoteConfig configures NATS export.
type RemoteConfig struct {
	Enabled bool   `koanf:"enabled"`
	URL     string `koanf:"url" validate:"omitempty,url"`

	// Embedded runs an in-process NATS server and ignores URL.
	Embedded     bool   `koanf:"embedded"`
	EmbeddedHost string `koanf:"embedded_host"`
	EmbeddedPort int    `koanf:"embedded_port" validate:"gte=-1,lte=65535"`

	Prefix            string        `koanf:"prefix" validate:"required,excludesall=*>"`
	ProgressPerSecond float64       `koanf:"progress_per_second" validate:"gte=0"`
	ProgressBurst     int           `koanf:"progress_burst" validate:"gte=0"`
	BreakerFailures   uint32        `koanf:"breaker_failures"`
	BreakerTimeout    time.Duration `koanf:"breaker_timeout" validate:"gte=0"`
	RequestTimeout    time.Duration `koanf:"request_timeout" validate:"gte=0"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Enabled         bool          `koanf:"enabled"`
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `koanf:"read_timeout" validate:"gte=0"`
	WriteTimeout    time.Duration `koanf:"write_timeout" validate:"gte=0"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`

	CORSOrigins       []string      `koanf:"cors_origins"`
	RateLimitRequests int           `koanf:"rate_limit_requests" validate:"gte=0"`
	RateLimitWindow   time.Duration `koanf:"rate_limit_window" validate:"gte=0"`
	RateLimitDisabled bool          `koanf:"rate_limit_disabled"`
}

// LoggingConfig configures the global logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// SupervisorConfig tunes the suture tree.
type SupervisorConfig struct {
	FailureThreshold float64       `koanf:"failure_threshold" validate:"gte=0"`
	FailureDecay     float64       `koanf:"failure_decay" validate:"gte=0"`
	FailureBackoff   time.Duration `koanf:"failure_backoff" validate:"gte=0"`
	ShutdownTimeout  time.Duration `koanf:"shutdown_timeout" validate:"gte=0"`
}

func defaultConfig() *Config {
	return &Config{
		Evaluator: EvaluatorConfig{
			ForceStopGrace: time.Second,
			QueueWarnDepth: 10000,
			Metrics:        []string{"MAE", "RMSE"},
		},
		Pool: PoolConfig{},
		Run:  RunConfig{},
		Archive: ArchiveConfig{
			Enabled: true,
			Path:    "data/archive",
		},
		Remote: RemoteConfig{
			URL:               "nats://127.0.0.1:4222",
			EmbeddedHost:      "127.0.0.1",
			EmbeddedPort:      4222,
			Prefix:            "recbench",
			ProgressPerSecond: 20,
			ProgressBurst:     5,
			BreakerFailures:   5,
			BreakerTimeout:    30 * time.Second,
			RequestTimeout:    30 * time.Second,
		},
		Server: ServerConfig{
			Enabled:           true,
			Host:              "127.0.0.1",
			Port:              8687,
			ReadTimeout:       10 * time.Second,
			WriteTimeout:      30 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			CORSOrigins:       []string{},
			RateLimitRequests: 60,
			RateLimitWindow:   time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Supervisor: SupervisorConfig{
			FailureThreshold: 5,
			FailureDecay:     30,
			FailureBackoff:   15 * time.Second,
			ShutdownTimeout:  10 * time.Second,
		},
	}
}
