// Package config loads and validates the motionlog YAML configuration.
package config

import (
	"fmt"
	"net"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
)

// OutputConfig holds the table file paths. Paths ending in ".gz" are written
// and read gzip-compressed.
type OutputConfig struct {
	LivePath       string `yaml:"live_path"`
	AggregatedPath string `yaml:"aggregated_path"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config represents the complete application configuration
type Config struct {
	// Listen is the UDP address the recorder binds.
	Listen string `yaml:"listen"`
	// ReadTimeoutMs bounds each blocking receive so the loop can notice
	// shutdown with no traffic.
	ReadTimeoutMs int `yaml:"read_timeout_ms"`
	// ShutdownTimeoutMs bounds the wait for the read loop to drain on stop.
	ShutdownTimeoutMs int `yaml:"shutdown_timeout_ms"`
	// Devices declares every sensor the recorder will accept.
	Devices []device.Declaration `yaml:"devices"`
	Output  OutputConfig         `yaml:"output"`
	Metrics MetricsConfig        `yaml:"metrics"`
	Log     LogConfig            `yaml:"log"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:            "0.0.0.0:5555",
		ReadTimeoutMs:     500,
		ShutdownTimeoutMs: 10000,
		Output: OutputConfig{
			LivePath:       "output.csv",
			AggregatedPath: "output_aggregated.csv",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
			Path:    "/metrics",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a YAML file over the defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "config", "Load", "reading config file")
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parsing config file")
	}

	return &cfg, nil
}

// ReadTimeout returns the configured receive timeout as a duration.
func (c *Config) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMs) * time.Millisecond
}

// ShutdownTimeout returns the configured stop deadline as a duration.
func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutMs) * time.Millisecond
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if _, err := net.ResolveUDPAddr("udp", c.Listen); err != nil {
		return errors.WrapInvalid(
			fmt.Errorf("listen address %q: %w", c.Listen, err),
			"Config", "Validate", "listen address validation")
	}

	if c.ReadTimeoutMs < 0 {
		return errors.WrapInvalid(
			fmt.Errorf("read_timeout_ms cannot be negative: %w", errors.ErrInvalidConfig),
			"Config", "Validate", "read timeout validation")
	}

	if c.ShutdownTimeoutMs <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("shutdown_timeout_ms must be positive: %w", errors.ErrInvalidConfig),
			"Config", "Validate", "shutdown timeout validation")
	}

	if c.Output.LivePath == "" || c.Output.AggregatedPath == "" {
		return errors.WrapInvalid(
			fmt.Errorf("output paths are required: %w", errors.ErrMissingConfig),
			"Config", "Validate", "output path validation")
	}

	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return errors.WrapInvalid(
			fmt.Errorf("metrics port %d out of range: %w", c.Metrics.Port, errors.ErrInvalidConfig),
			"Config", "Validate", "metrics port validation")
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log level %q: %w", c.Log.Level, errors.ErrInvalidConfig),
			"Config", "Validate", "log level validation")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("log format %q: %w", c.Log.Format, errors.ErrInvalidConfig),
			"Config", "Validate", "log format validation")
	}

	seen := make(map[uint8]bool, len(c.Devices))
	for _, d := range c.Devices {
		if d.Name == "" {
			return errors.WrapInvalid(
				fmt.Errorf("device %d has no name: %w", d.ID, errors.ErrInvalidConfig),
				"Config", "Validate", "device validation")
		}
		if seen[d.ID] {
			return errors.WrapInvalid(
				fmt.Errorf("device id %d declared twice: %w", d.ID, errors.ErrInvalidConfig),
				"Config", "Validate", "device validation")
		}
		seen[d.ID] = true
	}

	return nil
}
