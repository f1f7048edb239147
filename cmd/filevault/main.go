// filevault is a command-line and terminal client for the FileVault file store.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	filevault "github.com/fjmerc/filevault/sdk/go"
	"github.com/fjmerc/filevault/internal/config"
	"github.com/fjmerc/filevault/internal/metrics"
	"github.com/fjmerc/filevault/internal/store"
)

const version = "1.0.0"

var (
	// Global flags
	apiURL      string
	timeout     time.Duration
	logLevel    string
	logFormat   string
	metricsAddr string

	// Set up by setup() before any command runs
	cfg           *config.Config
	client        *filevault.Client
	cache         *store.Store
	metricsServer *http.Server
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd := newRootCmd()
	err := rootCmd.ExecuteContext(ctx)
	teardown()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "filevault",
		Short:   "FileVault CLI - browse, upload and manage deduplicated files",
		Version: version,
		Long: `FileVault CLI provides command-line and terminal access to a FileVault server.

Files with identical content are stored once; later uploads of the same
content become references to the original.

Configuration:
  Set FILEVAULT_API_URL (and other FILEVAULT_* variables), or use the flags below.

Examples:
  filevault list --type application/pdf
  filevault search report
  filevault upload ./invoice.pdf
  filevault stats
  filevault ui`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "url", "", "API base URL (or FILEVAULT_API_URL env)")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 0, "Request timeout (or FILEVAULT_TIMEOUT env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (or FILEVAULT_LOG_LEVEL env)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "Log format: text or json (or FILEVAULT_LOG_FORMAT env)")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (or FILEVAULT_METRICS_ADDR env)")

	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(searchCmd())
	rootCmd.AddCommand(infoCmd())
	rootCmd.AddCommand(deleteCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(downloadCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(uiCmd())
	rootCmd.AddCommand(typesCmd())

	return rootCmd
}

// setup loads configuration, applies flag overrides and builds the client,
// the store and the optional metrics endpoint.
func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.APIURL = apiURL
	}
	if flags.Changed("timeout") {
		cfg.Timeout = timeout
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = logFormat
	}
	if flags.Changed("metrics-addr") {
		cfg.MetricsAddr = metricsAddr
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger := newLogger(cfg)
	slog.SetDefault(logger)

	client, err = filevault.NewClient(filevault.ClientConfig{
		BaseURL:       cfg.APIURL,
		Timeout:       cfg.Timeout,
		RateLimit:     cfg.RateLimit,
		UserAgent:     "filevault-cli/" + version,
		WrapTransport: metrics.InstrumentTransport,
	})
	if err != nil {
		return err
	}

	opts := store.DefaultOptions()
	opts.DebounceDelay = cfg.DebounceDelay
	opts.StatsStaleTime = cfg.StatsStaleTime
	opts.ListRetries = cfg.ListRetries
	opts.DetailRetries = cfg.DetailRetries
	opts.RetryInterval = cfg.RetryInterval
	opts.CacheSize = cfg.CacheSize
	opts.Logger = logger
	cache = store.New(client, opts)

	slog.Debug("client configured",
		"api_url", cfg.APIURL,
		"timeout", cfg.Timeout,
		"rate_limit", cfg.RateLimit,
		"cache_size", cfg.CacheSize,
	)

	if cfg.MetricsAddr != "" {
		startMetricsServer(cfg.MetricsAddr, cache)
	}
	return nil
}

// newLogger writes to stderr so command output on stdout stays clean.
func newLogger(cfg *config.Config) *slog.Logger {
	level, _ := config.ParseLogLevel(cfg.LogLevel)
	handlerOpts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, handlerOpts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, handlerOpts))
}

func startMetricsServer(addr string, s *store.Store) {
	prometheus.MustRegister(metrics.NewStoreCollector(s))

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	metricsServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		slog.Info("metrics server listening", "address", addr)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server error", "error", err)
		}
	}()
}

func teardown() {
	if cache != nil {
		cache.Close()
	}
	if metricsServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := metricsServer.Shutdown(ctx); err != nil {
			slog.Error("metrics server shutdown failed", "error", err)
		}
	}
}
