package main

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"
)

// CLIConfig carries everything settable from the command line.
type CLIConfig struct {
	ConfigPath      string
	ManifestPath    string
	Subjects        string
	LogLevel        string
	LogFormat       string
	MetricsAddr     string
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	// Settings the config loader already reads from the environment
	// (SIGSTREAMS_NATS_URLS, SIGSTREAMS_LOG_LEVEL, ...) default to empty
	// here so the loader keeps sole ownership of them.
	configDefault := getEnv("SIGSTREAMS_CONFIG", "configs/sigtap.json")
	flag.StringVar(&cfg.ConfigPath, "config", configDefault, "Path to configuration file (env: SIGSTREAMS_CONFIG)")
	flag.StringVar(&cfg.ConfigPath, "c", configDefault, "Path to configuration file (env: SIGSTREAMS_CONFIG)")

	flag.StringVar(&cfg.ManifestPath, "manifest", "",
		"Path to the channel manifest, overrides the tap.manifest config key")
	flag.StringVar(&cfg.Subjects, "subjects", getEnv("SIGSTREAMS_SUBJECTS", ""),
		"Comma-separated NATS subjects to tap, overrides the node-derived wildcard (env: SIGSTREAMS_SUBJECTS)")
	flag.StringVar(&cfg.LogLevel, "log-level", "",
		"Log level: debug, info, warn, error (defaults to the logging.level config key)")
	flag.StringVar(&cfg.LogFormat, "log-format", "",
		"Log format: json, text (defaults to the logging.format config key)")
	flag.StringVar(&cfg.MetricsAddr, "metrics-addr", "",
		"Metrics listen address, overrides the metrics.addr config key")
	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("SIGSTREAMS_SHUTDOWN_TIMEOUT", 30*time.Second),
		"Graceful shutdown timeout (env: SIGSTREAMS_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	flag.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and manifest, then exit")

	flag.Usage = printDetailedHelp
	flag.Parse()
	return cfg
}

// validateFlags rejects values that would only fail later and deeper.
// Empty log settings mean "use the config value" and pass through.
func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if _, err := os.Stat(cfg.ConfigPath); err != nil {
		return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
	}

	switch cfg.LogLevel {
	case "", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	switch cfg.LogFormat {
	case "", "json", "text":
	default:
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.Subjects != "" {
		for _, s := range strings.Split(cfg.Subjects, ",") {
			if strings.TrimSpace(s) == "" {
				return fmt.Errorf("invalid subjects list: %q", cfg.Subjects)
			}
		}
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}
	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - Event Stream Tap

Usage: %s [options]

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Tap every event the configured node publishes
  %s --config=/etc/sigstreams/sigtap.json --manifest=/etc/sigstreams/channels.yaml

  # Tap only stage 100 events with debug logging
  %s --subjects='sigstreams.lab.rig01.events.100.*' --log-level=debug

  # Run with environment variables
  export SIGSTREAMS_CONFIG=/etc/sigstreams/sigtap.json
  export SIGSTREAMS_TAP_MANIFEST=/etc/sigstreams/channels.yaml
  %s

  # Validate configuration and manifest only
  %s --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}
