// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Chafer Contributors

// Package config loads and validates the runtime configuration file.
package config

import (
	"fmt"

	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// Config is the root of the chafer.yaml configuration file.
type Config struct {
	Registry RegistryConfig            `koanf:"registry" json:"registry"`
	Events   EventsConfig              `koanf:"events" json:"events,omitempty"`
	Shared   map[string]map[string]any `koanf:"shared" json:"shared,omitempty"`
	Log      LogConfig                 `koanf:"log" json:"log,omitempty"`
	Metrics  MetricsConfig             `koanf:"metrics" json:"metrics,omitempty"`
}

// RegistryConfig describes the plugin registry to build.
type RegistryConfig struct {
	// Name is the capability every plugin unit must expose.
	Name string `koanf:"name" json:"name"`
	// Path is the plugin directory.
	Path string `koanf:"path" json:"path"`
	// Patterns lists eligible file globs, defaulting to *.lua.
	Patterns []string `koanf:"patterns" json:"patterns,omitempty"`
}

// EventsConfig describes the event registry to build.
type EventsConfig struct {
	AllowUnregistered bool     `koanf:"allow-unregistered" json:"allow-unregistered,omitempty"`
	Declare           []string `koanf:"declare" json:"declare,omitempty"`
}

// LogConfig controls structured logging output.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty"`
	Level  string `koanf:"level" json:"level,omitempty"`
}

// MetricsConfig controls the observability endpoint. An empty address
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Registry: RegistryConfig{
			Name: "Plugin",
			Path: "plugins",
		},
		Events: EventsConfig{
			AllowUnregistered: true,
		},
		Log: LogConfig{
			Format: "text",
			Level:  "info",
		},
	}
}

// Load reads the configuration from an optional YAML file and overlays
// any matching command-line flags. Flag keys use dots as separators
// (registry.name, events.allow-unregistered, ...).
func Load(path string, flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	cfg := Default()
	if path != "" {
		if err := k.Load(file.Provider(path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return nil, fmt.Errorf("read flags: %w", err)
		}
	}
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration constraints.
func (c *Config) Validate() error {
	if c.Registry.Name == "" {
		return fmt.Errorf("registry.name is required")
	}
	if c.Registry.Path == "" {
		return fmt.Errorf("registry.path is required")
	}
	switch c.Log.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("log.format must be 'text' or 'json', got %q", c.Log.Format)
	}
	return nil
}
