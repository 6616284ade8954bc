// Package main implements the entry point for sigtap, a console tap for
// acquisition event streams. It subscribes to a node's event subjects,
// decodes every packet against the channel manifest and prints the result
// as structured log lines.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/neuroacq/sigstreams/channel"
	"github.com/neuroacq/sigstreams/config"
	"github.com/neuroacq/sigstreams/health"
	"github.com/neuroacq/sigstreams/metric"
	"github.com/neuroacq/sigstreams/pkg/tlsutil"
	"github.com/neuroacq/sigstreams/transport"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "sigtap"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	// Run application with proper error handling
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err, "exit_code", 1)
		os.Exit(1)
	}
}

func run() error {
	// Parse and validate CLI flags
	cliCfg, shouldExit, err := initializeCLI()
	if shouldExit || err != nil {
		return err
	}

	// Load configuration and build the final logger from it
	cfg, logger, err := initializeConfiguration(cliCfg)
	if err != nil {
		return err
	}

	metricsRegistry := metric.NewMetricsRegistry()
	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, metric.ServiceStarting)
	monitor := health.NewMonitor()

	// Build the channel registry before the validate-only gate so
	// --validate covers the manifest too
	registry, err := loadChannels(cliCfg, cfg, metricsRegistry)
	if err != nil {
		return err
	}

	if cliCfg.Validate {
		slog.Info("Configuration is valid", "channels", registry.Len())
		return nil
	}

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	// Connect to the broker
	client, err := buildClient(cfg, logger, metricsRegistry, monitor)
	if err != nil {
		return err
	}
	if err := connectToNATS(signalCtx, client); err != nil {
		return err
	}

	// Start the tap
	t := newTap(logger, monitor)
	sub, err := buildSubscriber(cliCfg, cfg, client, registry, t, logger, metricsRegistry)
	if err != nil {
		return fmt.Errorf("create subscriber: %w", err)
	}
	if err := sub.Start(signalCtx); err != nil {
		return fmt.Errorf("start subscriber: %w", err)
	}
	monitor.UpdateHealthy("tap", "waiting for events")

	// Serve metrics and health alongside the tap. The group context ends
	// on a signal or when the metrics server fails, either way the
	// shutdown path below runs.
	g, gctx := errgroup.WithContext(signalCtx)
	if cfg.Metrics.Enabled {
		server, err := buildMetricsServer(cfg, metricsRegistry, monitor)
		if err != nil {
			return err
		}
		g.Go(server.Start)
		g.Go(func() error {
			<-gctx.Done()
			return server.Stop()
		})
		slog.Info("Metrics server listening", "addr", server.Address(), "path", cfg.Metrics.Path)
	}

	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, metric.ServiceRunning)
	slog.Info("sigtap started", "subjects", sub.Subjects())

	<-gctx.Done()
	metricsRegistry.CoreMetrics().RecordServiceStatus(appName, metric.ServiceStopping)
	slog.Info("Shutting down", "events_printed", t.Count())

	return shutdown(cliCfg.ShutdownTimeout, sub, client, g)
}

// initializeCLI parses flags and sets up the bootstrap logger
func initializeCLI() (*CLIConfig, bool, error) {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return nil, false, fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil, true, nil
	}

	if cliCfg.ShowHelp {
		printHelp()
		return nil, true, nil
	}

	// Bootstrap logger until the config is loaded; the final logger comes
	// from initializeConfiguration once the logging section is known
	logger := setupLogger(fallback(cliCfg.LogLevel, "info"), fallback(cliCfg.LogFormat, "text"), false)
	slog.SetDefault(logger)

	slog.Info("Starting sigtap (event stream tap)",
		"version", Version,
		"build_time", BuildTime,
		"config_path", cliCfg.ConfigPath)

	return cliCfg, false, nil
}

// initializeConfiguration loads the config, validates it and rebuilds the
// logger with the merged logging settings. Flags win over config keys.
func initializeConfiguration(cliCfg *CLIConfig) (*config.Config, *slog.Logger, error) {
	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid configuration: %w", err)
	}

	if cliCfg.MetricsAddr != "" {
		cfg.Metrics.Addr = cliCfg.MetricsAddr
	}

	level := fallback(cliCfg.LogLevel, cfg.Logging.Level)
	format := fallback(cliCfg.LogFormat, cfg.Logging.Format)
	logger := setupLogger(level, format, cfg.Logging.AddSource)
	slog.SetDefault(logger)

	slog.Debug("Logger configured", "level", level, "format", format)
	return cfg, logger, nil
}

// loadChannels builds the channel registry from the manifest. Without a
// manifest only system packets decode, so the tap still prints clock and
// buffer-size traffic but drops stage events as unknown channels.
func loadChannels(cliCfg *CLIConfig, cfg *config.Config, registry *metric.MetricsRegistry) (*channel.Registry, error) {
	path := fallback(cliCfg.ManifestPath, cfg.Tap.Manifest)
	if path == "" {
		slog.Warn("No channel manifest given; stage and spike packets will not decode")
		return channel.NewRegistry(), nil
	}

	manifest, err := config.LoadManifest(path)
	if err != nil {
		return nil, fmt.Errorf("load manifest %s: %w", path, err)
	}

	channels, err := manifest.Build()
	if err != nil {
		return nil, fmt.Errorf("build channel registry: %w", err)
	}

	continuous, events, spikes, configs := channels.Counts()
	registry.CoreMetrics().RecordChannelCounts(continuous, events, spikes, configs)
	slog.Info("Channel manifest loaded",
		"path", path,
		"continuous", continuous,
		"events", events,
		"spikes", spikes,
		"configurations", configs)

	return channels, nil
}

// buildClient assembles the NATS client from the config
func buildClient(
	cfg *config.Config,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
	monitor *health.Monitor,
) (*transport.Client, error) {
	opts := []transport.Option{
		transport.WithName(fallback(cfg.NATS.Name, appName)),
		transport.WithTimeout(cfg.NATS.ConnectTimeout),
		transport.WithMaxReconnects(cfg.NATS.MaxReconnects),
		transport.WithReconnectWait(cfg.NATS.ReconnectWait),
		transport.WithLogger(logger),
		transport.WithMetrics(registry),
		transport.WithHealthMonitor(monitor),
	}

	switch {
	case cfg.NATS.Username != "":
		opts = append(opts, transport.WithCredentials(cfg.NATS.Username, cfg.NATS.Password))
	case cfg.NATS.Token != "":
		opts = append(opts, transport.WithToken(cfg.NATS.Token))
	}

	if cfg.NATS.TLS.Enabled {
		tlsCfg, err := tlsutil.ClientConfig(cfg.NATS.TLS.CertFile, cfg.NATS.TLS.KeyFile, cfg.NATS.TLS.CAFile)
		if err != nil {
			return nil, fmt.Errorf("TLS config: %w", err)
		}
		opts = append(opts, transport.WithTLS(tlsCfg))
	}

	client, err := transport.NewClient(strings.Join(cfg.NATS.URLs, ","), opts...)
	if err != nil {
		return nil, fmt.Errorf("create NATS client: %w", err)
	}
	return client, nil
}

// connectToNATS establishes the NATS connection and waits for it to be ready
func connectToNATS(ctx context.Context, client *transport.Client) error {
	slog.Info("Connecting to NATS", "url", client.URL())
	if err := client.Connect(ctx); err != nil {
		return fmt.Errorf("connect to NATS: %w", err)
	}

	connCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := client.WaitForConnection(connCtx); err != nil {
		return fmt.Errorf("NATS connection timeout: %w", err)
	}

	return nil
}

// buildSubscriber wires the tap behind a subscriber. An explicit subjects
// flag replaces the node-derived wildcard.
func buildSubscriber(
	cliCfg *CLIConfig,
	cfg *config.Config,
	client *transport.Client,
	channels *channel.Registry,
	t *tap,
	logger *slog.Logger,
	registry *metric.MetricsRegistry,
) (*transport.Subscriber, error) {
	var subjects []string
	if cliCfg.Subjects != "" {
		for _, s := range strings.Split(cliCfg.Subjects, ",") {
			subjects = append(subjects, strings.TrimSpace(s))
		}
	} else {
		subjects = []string{transport.Wildcard(cfg.SubjectRoot())}
	}

	return transport.NewSubscriber(client, channels, t.handle,
		transport.WithSubjects(subjects...),
		transport.WithDecodeWorkers(cfg.Tap.DecodeWorkers),
		transport.WithDecodeQueue(cfg.Tap.DecodeQueue),
		transport.WithSubscriberLogger(logger),
		transport.WithSubscriberMetrics(registry),
	)
}

// buildMetricsServer creates the metrics endpoint with a health handler
// backed by the monitor
func buildMetricsServer(cfg *config.Config, registry *metric.MetricsRegistry, monitor *health.Monitor) (*metric.Server, error) {
	port, err := parseMetricsPort(cfg.Metrics.Addr)
	if err != nil {
		return nil, fmt.Errorf("metrics address %q: %w", cfg.Metrics.Addr, err)
	}

	server := metric.NewServer(port, cfg.Metrics.Path, registry)
	server.SetHealthHandler(healthHandler(monitor))
	return server, nil
}

// parseMetricsPort extracts the port from a listen address like ":9090" or
// "0.0.0.0:9090". The metrics server binds all interfaces, host parts are
// accepted and ignored.
func parseMetricsPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0, err
	}
	return port, nil
}

// healthHandler serves the aggregated component health as JSON, 503 when
// any component reports unhealthy.
func healthHandler(monitor *health.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		agg := monitor.AggregateHealth(appName)

		w.Header().Set("Content-Type", "application/json")
		if agg.IsUnhealthy() {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		_ = json.NewEncoder(w).Encode(agg)
	}
}

// shutdown stops the subscriber, closes the connection and collects the
// metrics server result
func shutdown(timeout time.Duration, sub *transport.Subscriber, client *transport.Client, g *errgroup.Group) error {
	if err := sub.Stop(timeout); err != nil {
		slog.Error("Error stopping subscriber", "error", err)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := client.Close(closeCtx); err != nil {
		slog.Error("Error closing NATS connection", "error", err)
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	slog.Info("sigtap shutdown complete")
	return nil
}

// printHelp prints help information
func printHelp() {
	printDetailedHelp()
}

// loadConfig loads configuration from the specified file path
func loadConfig(path string) (*config.Config, error) {
	loader := config.NewLoader()
	cfg, err := loader.LoadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// fallback returns s unless it is empty, then alt
func fallback(s, alt string) string {
	if s != "" {
		return s
	}
	return alt
}
