package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"semkb/internal/datalog"
	"semkb/internal/store"
)

// Config holds all semkb configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Element store sizing
	Store store.Config `yaml:"store"`

	// Rule engine
	Engine EngineConfig `yaml:"engine"`

	// Mangle rule sources
	Mangle MangleConfig `yaml:"mangle"`

	// Fact sources
	Ingest IngestConfig `yaml:"ingest"`

	// Prometheus exposition
	Metrics MetricsConfig `yaml:"metrics"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// EngineConfig configures the Datalog engine.
type EngineConfig struct {
	SemiNaive        bool   `yaml:"semi_naive"`
	Parallelism      int    `yaml:"parallelism"`
	FactLimit        int    `yaml:"fact_limit"` // 0 = unlimited
	TrackDerivations bool   `yaml:"track_derivations"`
	SlowThreshold    string `yaml:"slow_threshold"` // e.g. "5s"; empty disables the warning
}

// IngestConfig lists fact files loaded at startup.
type IngestConfig struct {
	FactPaths []string `yaml:"fact_paths"`
}

// MetricsConfig configures the metrics endpoint. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
	Path string `yaml:"path"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "semkb",
		Version: "0.3.0",

		Store: store.Config{
			ExpectedElements: 4096,
			ExpectedTriples:  16384,
		},

		Engine: EngineConfig{
			SemiNaive:     true,
			Parallelism:   1,
			SlowThreshold: "5s",
		},

		Mangle: defaultMangleConfig(),

		Metrics: MetricsConfig{
			Path: "/metrics",
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults. Environment overrides apply in both cases.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if level := os.Getenv("SEMKB_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
		c.Logging.DebugMode = true
	}
	if base := os.Getenv("SEMKB_BASE_IRI"); base != "" {
		c.Mangle.BaseIRI = base
	}
	if addr := os.Getenv("SEMKB_METRICS_ADDR"); addr != "" {
		c.Metrics.Addr = addr
	}
	// Malformed numbers are ignored; Validate reports negative values.
	if v := os.Getenv("SEMKB_FACT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Engine.FactLimit = n
		}
	}
}

// ValidLogLevels lists the accepted logging levels.
var ValidLogLevels = []string{"debug", "info", "warn", "error"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Engine.Parallelism < 0 {
		return fmt.Errorf("engine.parallelism must not be negative: %d", c.Engine.Parallelism)
	}
	if c.Engine.FactLimit < 0 {
		return fmt.Errorf("engine.fact_limit must not be negative: %d", c.Engine.FactLimit)
	}
	if _, err := time.ParseDuration(c.Engine.SlowThreshold); c.Engine.SlowThreshold != "" && err != nil {
		return fmt.Errorf("invalid engine.slow_threshold %q: %w", c.Engine.SlowThreshold, err)
	}
	if c.Mangle.BaseIRI == "" {
		return fmt.Errorf("mangle.base_iri must be set")
	}
	if _, err := time.ParseDuration(c.Mangle.WatchDebounce); c.Mangle.WatchDebounce != "" && err != nil {
		return fmt.Errorf("invalid mangle.watch_debounce %q: %w", c.Mangle.WatchDebounce, err)
	}

	validLevel := c.Logging.Level == ""
	for _, l := range ValidLogLevels {
		if c.Logging.Level == l {
			validLevel = true
			break
		}
	}
	if !validLevel {
		return fmt.Errorf("invalid logging level: %s (valid: %v)", c.Logging.Level, ValidLogLevels)
	}

	return nil
}

// EngineConfig maps the engine section onto datalog.Config.
func (c *Config) EngineConfig() datalog.Config {
	return datalog.Config{
		SemiNaive:        c.Engine.SemiNaive,
		Parallelism:      c.Engine.Parallelism,
		FactLimit:        c.Engine.FactLimit,
		TrackDerivations: c.Engine.TrackDerivations,
		SlowThreshold:    c.GetSlowThreshold(),
	}
}

// GetSlowThreshold returns the slow evaluation threshold, or 0 when unset
// or malformed.
func (c *Config) GetSlowThreshold() time.Duration {
	d, err := time.ParseDuration(c.Engine.SlowThreshold)
	if err != nil {
		return 0
	}
	return d
}
