// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when CONFIG_PATH is unset.
var DefaultConfigPaths = []string{
	"recbench.yaml",
	"recbench.yml",
	"/etc/recbench/config.yaml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

const envPrefix = "recbench_"

// aliases are accepted in addition to RECBENCH_ prefixed variables.
var aliases = map[string]string{
	"log_level":  "logging.level",
	"log_format": "logging.format",
	"http_host":  "server.host",
	"http_port":  "server.port",
	"nats_url":   "remote.url",
	"backup_dir": "evaluator.backup_dir",
}

// sliceConfigPaths may arrive as comma-separated strings from the
// environment.
var sliceConfigPaths = []string{
	"evaluator.metrics",
	"run.algorithms",
	"server.cors_origins",
}

// Load reads defaults, the config file found by findConfigFile and the
// environment, then validates the result.
func Load() (*Config, error) {
	return LoadFrom(findConfigFile())
}

// LoadFrom is Load with an explicit file. An empty path skips the file
// layer.
func LoadFrom(path string) (*Config, error) {
	type layer struct {
		name     string
		provider koanf.Provider
		parser   koanf.Parser
	}
	layers := []layer{{name: "defaults", provider: structs.Provider(defaultConfig(), "koanf")}}
	if path != "" {
		layers = append(layers, layer{name: "file " + path, provider: file.Provider(path), parser: yaml.Parser()})
	}
	layers = append(layers, layer{name: "environment", provider: env.Provider("", ".", envKey)})

	k := koanf.New(".")
	for _, l := range layers {
		if err := k.Load(l.provider, l.parser); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", l.name, err)
		}
	}
	if err := splitSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if p := os.Getenv(ConfigPathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps RECBENCH_SECTION__FIELD to section.field. Unrelated
// variables map to "" and are skipped.
func envKey(key string) string {
	key = strings.ToLower(key)
	if mapped, ok := aliases[key]; ok {
		return mapped
	}
	if !strings.HasPrefix(key, envPrefix) {
		return ""
	}
	key = strings.TrimPrefix(key, envPrefix)
	if !strings.Contains(key, "__") {
		return ""
	}
	return strings.ReplaceAll(key, "__", ".")
}

func splitSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		s, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := make([]string, 0, strings.Count(s, ",")+1)
		for _, p := range strings.Split(s, ",") {
			if p = strings.TrimSpace(p); p != "" {
				parts = append(parts, p)
			}
		}
		if err := k.Set(path, parts); err != nil {
			return fmt.Errorf("config: split %s: %w", path, err)
		}
	}
	return nil
}
