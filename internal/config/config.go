// Package config loads engine-wide tunables: fire-all iteration caps,
// backward-resolver depth/solution caps, input-size limits, default
// salience, and the memoization toggle (§"Configuration").
//
// Grounded on the teacher's examples/go-client/configuration/EnvConfig.go:
// same envconfig.Process("", &cfg) idiom, same struct-tag style
// (envconfig name, default, required), same two-tier Engine/Generic
// split. A yaml.v2 loader is added alongside it (the teacher's
// tools/sim and rulesys packages favor YAML fixtures over env vars for
// batch/offline runs), since both are in the dependency pack and the
// spec's engine needs both a service-style env-driven path and a
// file-driven one for the cmd/ruliod demo.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config is the full set of tunables an engine instance is
// constructed from.
type Config struct {
	// MaxFireIterations caps RETE's fire_all drain loop (§3's safety
	// cap on runaway rule cascades).
	MaxFireIterations int `envconfig:"max-fire-iterations" yaml:"max_fire_iterations" default:"10000"`

	// DefaultSalience is not consulted by the parser or the engine: a
	// rule whose GRL source omits "salience N" gets salience 0.
	DefaultSalience int `envconfig:"default-salience" yaml:"default_salience" default:"0"`

	// MaxBackwardDepth caps goal-resolution recursion depth.
	MaxBackwardDepth int `envconfig:"max-backward-depth" yaml:"max_backward_depth" default:"50"`

	// MaxBackwardSolutions is passed to the backward resolver as
	// MaxSolutions, which the resolver does not consult: a query stops
	// at its first proof and never collects more than one.
	MaxBackwardSolutions int `envconfig:"max-backward-solutions" yaml:"max_backward_solutions" default:"100"`

	// EnableMemoization turns on the backward resolver's LRU proof
	// cache.
	EnableMemoization bool `envconfig:"enable-memoization" yaml:"enable_memoization" default:"true"`

	// MemoizationCacheSize bounds the LRU's entry count.
	MemoizationCacheSize int `envconfig:"memoization-cache-size" yaml:"memoization_cache_size" default:"1000"`

	// MaxInputSize is not consulted: internal/limits caps facts JSON
	// and rules GRL source with its own fixed limits.MaxInputSize.
	MaxInputSize int `envconfig:"max-input-size" yaml:"max_input_size" default:"1000000"`

	// Verbosity is a logging.LogLevel name ("EVERYTHING", "NOTHING",
	// "ANYWARN", ...). config doesn't import logging, and no caller in
	// this module maps the name onto logging.Verbosity, so the
	// process-wide filter keeps its own default.
	Verbosity string `envconfig:"verbosity" yaml:"verbosity" default:"EVERYTHING"`

	// DebugSessionTTLSeconds expires in-memory debug sessions this
	// long after their last event; 0 disables expiry.
	DebugSessionTTLSeconds int `envconfig:"debug-session-ttl-seconds" yaml:"debug_session_ttl_seconds" default:"3600"`
}

// Default returns a Config populated with every default tag's value,
// equivalent to loading from an empty environment.
func Default() (*Config, error) {
	return FromEnv()
}

// FromEnv loads Config from the process environment, the teacher's
// envconfig.Process("", cfg) idiom.
func FromEnv() (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// FromYAMLFile loads Config from a YAML file, for the cmd/ruliod demo
// and offline batch runs where an environment-variable surface is
// inconvenient.
func FromYAMLFile(path string) (*Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, fmt.Errorf("config: invalid yaml: %w", err)
	}
	return cfg, nil
}
