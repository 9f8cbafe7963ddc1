package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/motionlog/device"
	"github.com/c360/motionlog/errors"
)

func deviceDecl(id uint8, name string) device.Declaration {
	return device.Declaration{ID: id, Name: name}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "0.0.0.0:5555", cfg.Listen)
	assert.Equal(t, 500, cfg.ReadTimeoutMs)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout())
	assert.Equal(t, "output.csv", cfg.Output.LivePath)
	assert.Equal(t, "output_aggregated.csv", cfg.Output.AggregatedPath)
	assert.False(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9090, cfg.Metrics.Port)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "text", cfg.Log.Format)

	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
listen: "127.0.0.1:6000"
read_timeout_ms: 250
devices:
  - id: 1
    name: chest
  - id: 2
    name: wrist
output:
  live_path: session.csv.gz
metrics:
  enabled: true
  port: 9191
log:
  level: debug
  format: json
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "127.0.0.1:6000", cfg.Listen)
	assert.Equal(t, 250*time.Millisecond, cfg.ReadTimeout())
	require.Len(t, cfg.Devices, 2)
	assert.Equal(t, uint8(1), cfg.Devices[0].ID)
	assert.Equal(t, "chest", cfg.Devices[0].Name)

	// Unset keys keep their defaults.
	assert.Equal(t, "session.csv.gz", cfg.Output.LivePath)
	assert.Equal(t, "output_aggregated.csv", cfg.Output.AggregatedPath)
	assert.Equal(t, "/metrics", cfg.Metrics.Path)

	assert.True(t, cfg.Metrics.Enabled)
	assert.Equal(t, 9191, cfg.Metrics.Port)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.True(t, errors.IsFatal(err))
}

func TestLoadMalformedYAML(t *testing.T) {
	path := writeConfig(t, "listen: [unclosed")
	_, err := Load(path)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "bad listen address",
			mutate: func(c *Config) { c.Listen = "not-an-address:port" },
		},
		{
			name:   "negative timeout",
			mutate: func(c *Config) { c.ReadTimeoutMs = -1 },
		},
		{
			name:   "zero shutdown timeout",
			mutate: func(c *Config) { c.ShutdownTimeoutMs = 0 },
		},
		{
			name:   "empty live path",
			mutate: func(c *Config) { c.Output.LivePath = "" },
		},
		{
			name:   "metrics port out of range",
			mutate: func(c *Config) { c.Metrics.Port = 70000 },
		},
		{
			name:   "unknown log level",
			mutate: func(c *Config) { c.Log.Level = "verbose" },
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Log.Format = "logfmt" },
		},
		{
			name: "unnamed device",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, deviceDecl(3, ""))
			},
		},
		{
			name: "duplicate device id",
			mutate: func(c *Config) {
				c.Devices = append(c.Devices, deviceDecl(1, "chest"), deviceDecl(1, "wrist"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, errors.IsInvalid(err))
		})
	}
}
