// Recbench - Recommendation Algorithm Evaluation Harness
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recbench

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/tomtom215/recbench/internal/logging"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field rules and the constraints between sections.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, fe := range verrs {
				msgs[i] = fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.ActualTag(), fe.Value())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return err
	}

	checks := []func() error{
		c.validateLogging,
		c.validateRun,
		c.validateArchive,
		c.validateRemote,
		c.validateServer,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("logging.level %q is not a known level", c.Logging.Level)
	}
	return nil
}

func (c *Config) validateRun() error {
	if !c.Run.Autostart {
		return nil
	}
	if len(c.Run.Algorithms) == 0 {
		return fmt.Errorf("run.algorithms is required when run.autostart is set")
	}
	if len(c.Pool.Pairs) == 0 {
		return fmt.Errorf("pool.pairs is required when run.autostart is set")
	}
	return nil
}

func (c *Config) validateArchive() error {
	if c.Archive.Enabled && !c.Archive.InMemory && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required unless archive.in_memory is set")
	}
	return nil
}

func (c *Config) validateRemote() error {
	if !c.Remote.Enabled {
		return nil
	}
	if strings.ContainsAny(c.Remote.Prefix, " \t") {
		return fmt.Errorf("remote.prefix %q must not contain whitespace", c.Remote.Prefix)
	}
	if !c.Remote.Embedded && c.Remote.URL == "" {
		return fmt.Errorf("remote.url is required unless remote.embedded is set")
	}
	return nil
}

func (c *Config) validateServer() error {
	if !c.Server.Enabled {
		return nil
	}
	for _, origin := range c.Server.CORSOrigins {
		if origin == "*" {
			return fmt.Errorf("server.cors_origins must list explicit origins, not %q", origin)
		}
	}
	return nil
}
