package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	Devices         string
	Listen          string
	OutputPath      string
	AggregatedPath  string
	MetricsPort     int
	LogLevel        string
	LogFormat       string
	Debug           bool
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Define flags with environment variable fallback
	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("MOTIONLOG_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: MOTIONLOG_CONFIG)")

	flag.StringVar(&cfg.ConfigPath, "c",
		getEnv("MOTIONLOG_CONFIG", ""),
		"Path to configuration file, empty for built-in defaults (env: MOTIONLOG_CONFIG)")

	flag.StringVar(&cfg.Devices, "devices",
		getEnv("MOTIONLOG_DEVICES", ""),
		"Device declarations, e.g. \"1:chest, 2:wrist\" (env: MOTIONLOG_DEVICES)")

	flag.StringVar(&cfg.Listen, "listen",
		getEnv("MOTIONLOG_LISTEN", ""),
		"UDP listen address, overrides config (env: MOTIONLOG_LISTEN)")

	flag.StringVar(&cfg.OutputPath, "output",
		getEnv("MOTIONLOG_OUTPUT", ""),
		"Live table output path, overrides config (env: MOTIONLOG_OUTPUT)")

	flag.StringVar(&cfg.AggregatedPath, "aggregated-output",
		getEnv("MOTIONLOG_AGGREGATED_OUTPUT", ""),
		"Aggregated table output path, overrides config (env: MOTIONLOG_AGGREGATED_OUTPUT)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("MOTIONLOG_METRICS_PORT", -1),
		"Prometheus metrics port, 0 to disable, -1 to use config (env: MOTIONLOG_METRICS_PORT)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("MOTIONLOG_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error (env: MOTIONLOG_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("MOTIONLOG_LOG_FORMAT", ""),
		"Log format: json, text (env: MOTIONLOG_LOG_FORMAT)")

	flag.BoolVar(&cfg.Debug, "debug",
		getEnvBool("MOTIONLOG_DEBUG", false),
		"Enable debug mode (env: MOTIONLOG_DEBUG)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("MOTIONLOG_SHUTDOWN_TIMEOUT", 0),
		"Graceful shutdown timeout, 0 to use config (env: MOTIONLOG_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	// Custom usage
	flag.Usage = func() {
		printDetailedHelp()
	}

	flag.Parse()

	// Override log level if debug is set
	if cfg.Debug {
		cfg.LogLevel = "debug"
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	// Skip validation for special flags
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	// Validate config file exists when one was given
	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	// Validate log level
	validLevels := []string{"", "debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	// Validate log format
	validFormats := []string{"", "json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	// Validate metrics port
	if cfg.MetricsPort < -1 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.ShutdownTimeout < 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Multi-Sensor Motion Capture Recorder

Usage: %s [options] [record|aggregate [input]]

Commands:
  record      Listen for sensor datagrams and write the live table (default)
  aggregate   Time-align a recorded table onto a common clock

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Record with devices declared on the command line
  %s --devices="1:chest, 2:wrist" record

  # Record with a config file and metrics enabled
  %s --config=/etc/motionlog/config.yaml --metrics-port=9090 record

  # Aggregate a finished recording
  %s aggregate output.csv

  # Run with environment variables
  export MOTIONLOG_DEVICES="1:chest, 2:wrist"
  export MOTIONLOG_LOG_LEVEL=debug
  %s

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// flag0 returns the subcommand, if any.
func flag0() string {
	return flag.Arg(0)
}

// flagArg returns the i-th positional argument or "".
func flagArg(i int) string {
	return flag.Arg(i)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// Utility function to check if slice contains string
func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
