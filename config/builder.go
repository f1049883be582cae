package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/prometheus/client_golang/prometheus"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/tinystore"
)

// BuildStoreOptions converts parsed configuration into SDK store options.
//
// reg receives the store collectors when metrics are enabled; it may be
// nil otherwise.
func BuildStoreOptions(cfg *Config, logger *slog.Logger, reg prometheus.Registerer) ([]tinystore.Option, error) {
	opts := []tinystore.Option{
		tinystore.WithName(cfg.Name),
		tinystore.WithPanicPolicy(cfg.Policy()),
	}

	if logger != nil {
		opts = append(opts, tinystore.WithLogger(logger))
	}

	if cfg.Metrics.Enabled {
		if reg == nil {
			return nil, fmt.Errorf("metrics enabled but no registry given")
		}
		opts = append(opts, tinystore.WithMetrics(reg, cfg.Metrics.Namespace))
	}

	return opts, nil
}

// BuildHostOptions converts parsed configuration into SDK host options.
//
// g backs /metrics when metrics are enabled; it may be nil otherwise.
func BuildHostOptions(cfg *Config, logger *slog.Logger, g prometheus.Gatherer) []tinystore.HostOption {
	opts := []tinystore.HostOption{
		tinystore.WithPort(cfg.Port),
		tinystore.WithWriteRateLimit(cfg.RateLimit.RPS, cfg.RateLimit.Burst),
	}

	if cfg.Title != "" {
		opts = append(opts, tinystore.WithTitle(cfg.Title))
	}
	if logger != nil {
		opts = append(opts, tinystore.WithHostLogger(logger))
	}
	if cfg.ReadOnly {
		opts = append(opts, tinystore.WithReadOnly())
	}
	if cfg.Metrics.Enabled && g != nil {
		opts = append(opts, tinystore.WithMetricsHandler(g))
	}

	return opts
}

// InitialState returns the state a served store starts with: the inline
// state with the top-level keys of the state file merged over it.
//
// The result is never nil.
func InitialState(cfg *Config) (map[string]any, error) {
	state := cfg.State
	if state == nil {
		state = map[string]any{}
	}

	if cfg.StateFile == "" {
		return state, nil
	}

	seed, err := LoadSeed(cfg.StateFile)
	if err != nil {
		return nil, err
	}
	return tinystore.ShallowMerge(state, seed), nil
}

// LoadSeed reads a seed state file. The format is chosen by extension:
// .json is JSON, .toml is TOML, anything else is YAML. The document must
// be an object (a mapping); an empty file is an empty state.
func LoadSeed(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	seed, err := ParseSeed(data, FormatFromPath(path))
	if err != nil {
		return nil, fmt.Errorf("state file %s: %w", path, err)
	}
	return seed, nil
}

// ParseSeed parses seed state data in the given format.
func ParseSeed(data []byte, format Format) (map[string]any, error) {
	seed := map[string]any{}
	if len(bytes.TrimSpace(data)) == 0 {
		return seed, nil
	}

	switch format {
	case FormatJSON:
		if err := json.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	case FormatYAML:
		if err := yaml.Unmarshal(data, &seed); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported state format %q", format)
	}

	// "null" documents decode to a nil map
	if seed == nil {
		seed = map[string]any{}
	}
	return seed, nil
}
