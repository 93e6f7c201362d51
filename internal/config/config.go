// SPDX-FileCopyrightText: 2025 blackjack contributors
//
// SPDX-License-Identifier: Apache-2.0

// Package config defines the run-wide settings the CLI layer builds once
// and passes explicitly into the scheduler and test runner — no package in
// this module reaches for a process-global singleton the way the
// reference implementation's config.rs does with its OnceCell<Config>.
// Grounded on config.rs's shape (TestTypeConfig{parallel, attempts} per
// test type, plus timeout_scaling and loglevel), decoded the same way the
// teacher decodes its own settings: a plain struct with yaml tags.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// TypeConfig bounds one test type's concurrency and retry budget.
type TypeConfig struct {
	Parallel int `yaml:"parallel"`
	Attempts int `yaml:"attempts"`
}

// Config is the full set of run-wide settings.
type Config struct {
	TimeoutScaling float64    `yaml:"timeout_scaling"`
	LogLevel       string     `yaml:"loglevel"`
	Cluster        TypeConfig `yaml:"cluster"`
	User           TypeConfig `yaml:"user"`
}

// Default mirrors the reference implementation's Default impl.
func Default() Config {
	return Config{
		TimeoutScaling: 1.0,
		LogLevel:       "info",
		Cluster:        TypeConfig{Parallel: 1, Attempts: 1},
		User:           TypeConfig{Parallel: 4, Attempts: 2},
	}
}

// Load reads a YAML config file, falling back to Default when path is
// empty.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	return cfg, nil
}
