// Package config provides YAML and TOML configuration parsing for
// tinystore.
//
// This package enables serving a store with the tinystore binary and a
// configuration file, as an alternative to the programmatic SDK approach.
//
// Example configuration:
//
//	name: cart
//	title: Checkout cart
//	port: 8080
//	log_level: info
//
//	rate_limit:
//	  rps: 20
//	  burst: 40
//
//	metrics:
//	  enabled: true
//
//	state:
//	  items: []
//	  total: 0
//
//	state_file: ${CART_SEED:-cart.seed.json}
//	watch: true
//
// The same keys are accepted in a .toml file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/jpalmerr/tinystore"
)

// Environment variables that override the file.
const (
	EnvPort     = "TINYSTORE_PORT"
	EnvLogLevel = "TINYSTORE_LOG_LEVEL"
)

const (
	defaultName          = "tinystore"
	defaultPort          = 8080
	defaultLogLevel      = "info"
	defaultPanicPolicy   = "recover"
	defaultRPS           = 20
	defaultBurst         = 40
	defaultWatchDebounce = 100 * time.Millisecond
)

// Format is a configuration or seed file format.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
	FormatJSON Format = "json"
)

// FormatFromPath picks the format from the file extension. Unknown
// extensions are read as YAML.
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatYAML
	}
}

// Config is the root configuration structure for a served store.
//
// It maps directly to the configuration file structure. Use [Load] or
// [Parse] to create a Config.
type Config struct {
	// Name is the store name used in logs and metric labels.
	// Defaults to "tinystore".
	Name string `yaml:"name" toml:"name"`

	// Title is the inspector page title. Defaults to Name.
	// Supports environment variable substitution: ${VAR} or ${VAR:-default}
	Title string `yaml:"title" toml:"title"`

	// Port is the HTTP server port. Defaults to 8080.
	Port int `yaml:"port" toml:"port"`

	// LogLevel is one of debug, info, warn, error. Defaults to info.
	LogLevel string `yaml:"log_level" toml:"log_level"`

	// PanicPolicy is "recover" (default) or "propagate".
	PanicPolicy string `yaml:"panic_policy" toml:"panic_policy"`

	// ReadOnly disables the HTTP write routes.
	ReadOnly bool `yaml:"read_only" toml:"read_only"`

	// RateLimit limits HTTP writes per client.
	RateLimit RateLimitConfig `yaml:"rate_limit" toml:"rate_limit"`

	// Metrics controls the Prometheus collectors and the /metrics route.
	Metrics MetricsConfig `yaml:"metrics" toml:"metrics"`

	// State is the inline initial state.
	State map[string]any `yaml:"state" toml:"state"`

	// StateFile is a JSON, YAML or TOML file whose top-level keys are
	// merged over State. Relative paths are resolved against the config
	// file's directory. Supports environment variable substitution.
	StateFile string `yaml:"state_file" toml:"state_file"`

	// Watch reloads StateFile when it changes, replacing the state.
	// Requires StateFile.
	Watch bool `yaml:"watch" toml:"watch"`

	// WatchDebounce is how long StateFile must stay quiet before a reload.
	// Defaults to 100ms.
	WatchDebounce Duration `yaml:"watch_debounce" toml:"watch_debounce"`
}

// RateLimitConfig configures the per-client token bucket on write routes.
type RateLimitConfig struct {
	// RPS is the sustained number of writes per second. Defaults to 20.
	RPS float64 `yaml:"rps" toml:"rps"`

	// Burst is the bucket size. Defaults to 40.
	Burst int `yaml:"burst" toml:"burst"`
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	// Enabled registers the store collectors and serves /metrics.
	Enabled bool `yaml:"enabled" toml:"enabled"`

	// Namespace prefixes metric names. Defaults to "tinystore".
	Namespace string `yaml:"namespace" toml:"namespace"`
}

// Duration wraps time.Duration for YAML and TOML unmarshalling.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// UnmarshalText implements encoding.TextUnmarshaler for Duration, which
// the TOML decoder uses.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}

	*d = Duration(parsed)
	return nil
}

// Duration returns the underlying time.Duration value.
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// envVarPattern matches ${VAR} and ${VAR:-default} syntax.
// Group 1: variable name
// Group 2: the ":-default" part (if present)
// Group 3: the default value (may be empty for ${VAR:-})
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// metricNamespacePattern is the Prometheus metric name alphabet.
var metricNamespacePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// expandEnvVars replaces ${VAR} and ${VAR:-default} patterns with environment values.
func expandEnvVars(s string) (string, error) {
	var firstErr error

	result := envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// already have an error, skip processing
		if firstErr != nil {
			return match
		}

		submatches := envVarPattern.FindStringSubmatch(match)
		if len(submatches) < 2 {
			return match
		}

		varName := submatches[1]
		hasDefault := len(submatches) > 2 && submatches[2] != ""
		defaultVal := ""
		if hasDefault && len(submatches) > 3 {
			defaultVal = submatches[3]
		}

		value, exists := os.LookupEnv(varName)
		if !exists {
			if hasDefault {
				return defaultVal
			}
			firstErr = fmt.Errorf("environment variable %q is not set", varName)
			return match
		}
		return value
	})

	if firstErr != nil {
		return "", firstErr
	}
	return result, nil
}

// Load reads and parses a configuration file. The format is chosen by
// extension: .toml is TOML, anything else is YAML.
//
// A relative state_file is resolved against the directory of path.
// Returns an error if the file cannot be read, parsed or validated.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	format := FormatFromPath(path)
	if format == FormatJSON {
		return nil, fmt.Errorf("unsupported config format %q: use YAML or TOML", filepath.Ext(path))
	}

	cfg, err := ParseFormat(data, format)
	if err != nil {
		return nil, err
	}

	if cfg.StateFile != "" && !filepath.IsAbs(cfg.StateFile) {
		cfg.StateFile = filepath.Join(filepath.Dir(path), cfg.StateFile)
	}
	return cfg, nil
}

// Parse parses YAML configuration data. See [ParseFormat].
func Parse(data []byte) (*Config, error) {
	return ParseFormat(data, FormatYAML)
}

// ParseFormat parses configuration data in the given format.
//
// TINYSTORE_PORT and TINYSTORE_LOG_LEVEL override the file. Environment
// variables are expanded in Title and StateFile. Defaults are applied for
// Name, Port, LogLevel, PanicPolicy, RateLimit and WatchDebounce.
func ParseFormat(data []byte, format Format) (*Config, error) {
	var cfg Config
	switch format {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse TOML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", format)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.expandAndValidate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// applyEnv applies the TINYSTORE_* overrides.
func (c *Config) applyEnv() error {
	if v, ok := os.LookupEnv(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: invalid port %q", EnvPort, v)
		}
		c.Port = port
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Name == "" {
		c.Name = defaultName
	}
	if c.Port == 0 {
		c.Port = defaultPort
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	if c.PanicPolicy == "" {
		c.PanicPolicy = defaultPanicPolicy
	}
	if c.RateLimit.RPS == 0 {
		c.RateLimit.RPS = defaultRPS
	}
	if c.RateLimit.Burst == 0 {
		c.RateLimit.Burst = defaultBurst
	}
	if c.WatchDebounce == 0 {
		c.WatchDebounce = Duration(defaultWatchDebounce)
	}
}

// expandAndValidate expands environment variables and validates the config.
func (c *Config) expandAndValidate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", c.Port)
	}

	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}

	if _, err := parsePanicPolicy(c.PanicPolicy); err != nil {
		return err
	}

	if c.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must be positive, got %v", c.RateLimit.RPS)
	}
	if c.RateLimit.Burst < 0 {
		return fmt.Errorf("rate_limit.burst must be positive, got %d", c.RateLimit.Burst)
	}

	if c.WatchDebounce.Duration() < 0 {
		return fmt.Errorf("watch_debounce must not be negative, got %s", c.WatchDebounce.Duration())
	}

	if ns := c.Metrics.Namespace; ns != "" && !metricNamespacePattern.MatchString(ns) {
		return fmt.Errorf("metrics.namespace %q: must match %s", ns, metricNamespacePattern)
	}

	title, err := expandEnvVars(c.Title)
	if err != nil {
		return fmt.Errorf("title: %w", err)
	}
	c.Title = title

	stateFile, err := expandEnvVars(c.StateFile)
	if err != nil {
		return fmt.Errorf("state_file: %w", err)
	}
	c.StateFile = stateFile

	if c.Watch && c.StateFile == "" {
		return errors.New("watch requires state_file")
	}

	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	level, _ := parseLevel(c.LogLevel)
	return level
}

// Policy returns the configured listener panic policy.
func (c *Config) Policy() tinystore.PanicPolicy {
	policy, _ := parsePanicPolicy(c.PanicPolicy)
	return policy
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log_level %q (must be debug, info, warn, or error)", s)
	}
}

func parsePanicPolicy(s string) (tinystore.PanicPolicy, error) {
	switch strings.ToLower(s) {
	case tinystore.RecoverPanics.String():
		return tinystore.RecoverPanics, nil
	case tinystore.PropagatePanics.String():
		return tinystore.PropagatePanics, nil
	default:
		return tinystore.RecoverPanics, fmt.Errorf("invalid panic_policy %q (must be recover or propagate)", s)
	}
}
