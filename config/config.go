// Package config provides ambient run configuration for the crowd simulator:
// worker-pool sizing, logging verbosity, telemetry/CSV output, and the
// optional playback viewer's window settings. Engine tunables (k, p, t0,
// ksi, eps, eta, neighbor_dist, newton_iter, lbfgs_window, eps_x) are NOT
// part of this package — those are loaded exclusively through the
// line-based key=value parameter file handled by the params package.
package config

import (
	_ "embed"
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

// Config holds all ambient run configuration.
type Config struct {
	Workers   WorkersConfig   `yaml:"workers"`
	Logging   LoggingConfig   `yaml:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Viewer    ViewerConfig    `yaml:"viewer"`

	// Derived holds values computed once after loading.
	Derived DerivedConfig `yaml:"-"`
}

// WorkersConfig controls the energy package's persistent goroutine pool.
type WorkersConfig struct {
	Count int `yaml:"count"` // 0 = runtime.GOMAXPROCS(0)
}

// LoggingConfig controls the slog-based logger installed at process start.
type LoggingConfig struct {
	Level string `yaml:"level"` // "info" or "debug"
}

// TelemetryConfig controls the rolling perf-stats collector and the
// optional CSV trajectory sink.
type TelemetryConfig struct {
	PerfWindow    int `yaml:"perf_window"`    // rolling-average sample capacity
	LogEveryNStep int `yaml:"log_every_step"` // 0 disables periodic perf logging
	CSVFlushEvery int `yaml:"csv_flush_every"`
}

// ViewerConfig configures the optional raylib playback window.
type ViewerConfig struct {
	Width     int     `yaml:"width"`
	Height    int     `yaml:"height"`
	TargetFPS int     `yaml:"target_fps"`
	Scale     float64 `yaml:"scale"` // world units -> pixels
}

// DerivedConfig holds values computed once after loading.
type DerivedConfig struct {
	ResolvedWorkers int
}

var global *Config

// Init loads configuration from the given path, or uses embedded defaults
// if path is empty. Must be called before Cfg().
func Init(path string) error {
	cfg, err := Load(path)
	if err != nil {
		return err
	}
	global = cfg
	return nil
}

// MustInit is like Init but panics on error.
func MustInit(path string) {
	if err := Init(path); err != nil {
		panic(fmt.Sprintf("config: failed to initialize: %v", err))
	}
}

// Cfg returns the global configuration. Panics if Init was not called.
func Cfg() *Config {
	if global == nil {
		panic("config: Cfg() called before Init()")
	}
	return global
}

// Load loads configuration from a YAML file, overlaid on embedded defaults.
// If path is empty, only the embedded defaults are used.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if err := yaml.Unmarshal(defaultsYAML, cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded defaults: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	cfg.computeDerived()
	return cfg, nil
}

func (c *Config) computeDerived() {
	workers := c.Workers.Count
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
		if workers < 1 {
			workers = 1
		}
	}
	c.Derived.ResolvedWorkers = workers
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
