// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recbench.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFrom_Defaults(t *testing.T) {
	cfg, err := LoadFrom("")
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Port != 8687 || cfg.Server.Host != "127.0.0.1" {
		t.Errorf("server = %s:%d", cfg.Server.Host, cfg.Server.Port)
	}
	if cfg.Evaluator.ForceStopGrace != time.Second {
		t.Errorf("force stop grace = %v", cfg.Evaluator.ForceStopGrace)
	}
	if cfg.Remote.Enabled {
		t.Error("remote export should be off by default")
	}
	if cfg.Remote.Prefix != "recbench" {
		t.Errorf("remote prefix = %q", cfg.Remote.Prefix)
	}
	if len(cfg.Evaluator.Metrics) != 2 {
		t.Errorf("metrics = %v", cfg.Evaluator.Metrics)
	}
}

func TestLoadFrom_FileAndEnv(t *testing.T) {
	path := writeFile(t, `
evaluator:
  backup_dir: /tmp/backups
  force_stop_grace: 250ms
  metrics: [MAE, Coverage]
pool:
  pairs:
    - training: duckdb://train
      testing: duckdb://test
run:
  autostart: true
  algorithms: [itemmean]
  params:
    neighbors: 20
server:
  port: 9000
`)
	t.Setenv("RECBENCH_SERVER__PORT", "9100")
	t.Setenv("RECBENCH_RUN__ALGORITHMS", "itemmean, popularity")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("RECBENCH_IGNORED", "x")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() error = %v", err)
	}
	if cfg.Server.Port != 9100 {
		t.Errorf("env should override file port, got %d", cfg.Server.Port)
	}
	if cfg.Evaluator.ForceStopGrace != 250*time.Millisecond {
		t.Errorf("force stop grace = %v", cfg.Evaluator.ForceStopGrace)
	}
	if cfg.Evaluator.BackupDir != "/tmp/backups" {
		t.Errorf("backup dir = %q", cfg.Evaluator.BackupDir)
	}
	if got := strings.Join(cfg.Run.Algorithms, ","); got != "itemmean,popularity" {
		t.Errorf("algorithms = %q", got)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("log level = %q", cfg.Logging.Level)
	}
	if len(cfg.Pool.Pairs) != 1 || cfg.Pool.Pairs[0].Testing != "duckdb://test" {
		t.Errorf("pool = %+v", cfg.Pool.Pairs)
	}
	if cfg.Run.Params["neighbors"] == nil {
		t.Errorf("params = %v", cfg.Run.Params)
	}
}

func TestLoad_ConfigPathEnv(t *testing.T) {
	path := writeFile(t, "server:\n  port: 9200\n")
	t.Setenv(ConfigPathEnvVar, path)
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 9200 {
		t.Errorf("port = %d", cfg.Server.Port)
	}
}

func TestLoadFrom_MissingFile(t *testing.T) {
	if _, err := LoadFrom(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "bad level",
			mutate:  func(c *Config) { c.Logging.Level = "loud" },
			wantErr: "logging.level",
		},
		{
			name:    "bad format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "Format",
		},
		{
			name:    "unknown metric",
			mutate:  func(c *Config) { c.Evaluator.Metrics = []string{"NDCG"} },
			wantErr: "Metrics",
		},
		{
			name:    "grace too long",
			mutate:  func(c *Config) { c.Evaluator.ForceStopGrace = time.Hour },
			wantErr: "ForceStopGrace",
		},
		{
			name: "autostart without algorithms",
			mutate: func(c *Config) {
				c.Run.Autostart = true
				c.Pool.Pairs = []PairConfig{{Training: "mem://a", Testing: "mem://b"}}
			},
			wantErr: "run.algorithms",
		},
		{
			name: "autostart without pool",
			mutate: func(c *Config) {
				c.Run.Autostart = true
				c.Run.Algorithms = []string{"itemmean"}
			},
			wantErr: "pool.pairs",
		},
		{
			name:    "pair without testing",
			mutate:  func(c *Config) { c.Pool.Pairs = []PairConfig{{Training: "mem://a"}} },
			wantErr: "Testing",
		},
		{
			name: "archive without path",
			mutate: func(c *Config) {
				c.Archive.Path = ""
			},
			wantErr: "archive.path",
		},
		{
			name: "remote wildcard prefix",
			mutate: func(c *Config) {
				c.Remote.Enabled = true
				c.Remote.Prefix = "recbench.*"
			},
			wantErr: "Prefix",
		},
		{
			name: "remote without url",
			mutate: func(c *Config) {
				c.Remote.Enabled = true
				c.Remote.URL = ""
			},
			wantErr: "remote.url",
		},
		{
			name: "embedded remote without url",
			mutate: func(c *Config) {
				c.Remote.Enabled = true
				c.Remote.Embedded = true
				c.Remote.URL = ""
			},
		},
		{
			name:    "wildcard cors",
			mutate:  func(c *Config) { c.Server.CORSOrigins = []string{"*"} },
			wantErr: "cors_origins",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %q", err, tt.wantErr)
			}
		})
	}
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"RECBENCH_REMOTE__ENABLED":           "remote.enabled",
		"RECBENCH_EVALUATOR__BACKUP_DIR":     "evaluator.backup_dir",
		"RECBENCH_SUPERVISOR__FAILURE_DECAY": "supervisor.failure_decay",
		"HTTP_PORT":                          "server.port",
		"RECBENCH_QUIET":                     "",
		"PATH":                               "",
	}
	for in, want := range tests {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%q) = %q, want %q", in, got, want)
		}
	}
}
