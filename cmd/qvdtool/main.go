package main

import (
	"context"
	"expvar"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"

	"github.com/INLOpen/qvd/cache"
	"github.com/INLOpen/qvd/config"
	"github.com/INLOpen/qvd/hooks"
	"github.com/INLOpen/qvd/hooks/listeners"
	"github.com/INLOpen/qvd/qvd"
)

var (
	headerCacheHits   = expvar.NewInt("qvdtool_header_cache_hits")
	headerCacheMisses = expvar.NewInt("qvdtool_header_cache_misses")
)

// app is the state shared by every subcommand, built once the
// configuration is known.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	hooks   hooks.HookManager
	headers *cache.HeaderCache
	closers []func()

	stdout io.Writer
	stderr io.Writer
}

func (a *app) loadOptions() qvd.LoadOptions {
	return qvd.LoadOptions{
		ChunkSize:   a.cfg.Loader.ChunkSizeBytes,
		AllowedDir:  a.cfg.Loader.AllowedDir,
		Logger:      a.logger,
		Hooks:       a.hooks,
		HeaderCache: a.headers,
	}
}

func (a *app) saveOptions() qvd.SaveOptions {
	return qvd.SaveOptions{
		AllowedDir:       a.cfg.Loader.AllowedDir,
		ProgressInterval: a.cfg.Writer.ProgressIntervalRows,
		LockTimeout:      config.ParseDuration(a.cfg.Writer.LockTimeout, 5*time.Second, a.logger),
		Logger:           a.logger,
		Hooks:            a.hooks,
	}
}

func (a *app) close() {
	if a.hooks != nil {
		a.hooks.Stop()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

// createLogger creates a slog.Logger based on the provided configuration.
func createLogger(cfg config.LoggingConfig, stderr io.Writer) (*slog.Logger, io.Closer, error) {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, nil, fmt.Errorf("invalid log level: %s", cfg.Level)
	}

	var output io.Writer
	var closer io.Closer
	switch strings.ToLower(cfg.Output) {
	case "stdout":
		output = os.Stdout
	case "stderr":
		output = stderr
	case "file":
		if cfg.File == "" {
			return nil, nil, fmt.Errorf("log output is 'file' but no file path is specified")
		}
		file, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file %s: %w", cfg.File, err)
		}
		output = file
		closer = file
	case "none":
		output = io.Discard
	default:
		return nil, nil, fmt.Errorf("invalid log output: %s", cfg.Output)
	}

	logger := slog.New(slog.NewJSONHandler(output, &slog.HandlerOptions{Level: level}))
	return logger, closer, nil
}

// initTracerProvider creates and configures an OpenTelemetry TracerProvider.
// When tracing is disabled the global no-op provider is left in place.
func initTracerProvider(cfg config.TracingConfig, logger *slog.Logger) (func(), error) {
	if !cfg.Enabled {
		logger.Debug("Distributed tracing is disabled.")
		return func() {}, nil
	}

	logger.Info("Initializing distributed tracing...", "protocol", cfg.Protocol, "endpoint", cfg.Endpoint)

	ctx := context.Background()
	var exporter sdktrace.SpanExporter
	var err error
	switch strings.ToLower(cfg.Protocol) {
	case "http":
		exporter, err = otlptrace.New(ctx, otlptracehttp.NewClient(otlptracehttp.WithEndpoint(cfg.Endpoint), otlptracehttp.WithInsecure()))
	case "grpc":
		exporter, err = otlptrace.New(ctx, otlptracegrpc.NewClient(otlptracegrpc.WithEndpoint(cfg.Endpoint), otlptracegrpc.WithInsecure()))
	default:
		return nil, fmt.Errorf("unsupported tracing protocol: %q", cfg.Protocol)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create trace exporter: %w", err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceNameKey.String("qvdtool")))
	if err != nil {
		return nil, fmt.Errorf("failed to create trace resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Error shutting down tracer provider", "error", err)
		}
	}, nil
}

// setup loads the configuration and wires logging, tracing, hooks and the
// header cache into a.
func (a *app) setup(configPath, logLevel string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	a.cfg = cfg

	logger, logCloser, err := createLogger(cfg.Logging, a.stderr)
	if err != nil {
		return err
	}
	if logCloser != nil {
		a.closers = append(a.closers, func() { logCloser.Close() })
	}
	a.logger = logger

	shutdown, err := initTracerProvider(cfg.Tracing, logger)
	if err != nil {
		return err
	}
	a.closers = append(a.closers, shutdown)

	a.hooks = hooks.NewHookManager(logger)
	metrics := listeners.NewIOMetricsListener(logger)
	a.hooks.Register(hooks.EventPostLoad, metrics)
	a.hooks.Register(hooks.EventPostSave, metrics)
	a.headers = cache.NewHeaderCache(cfg.Loader.HeaderCacheSize, nil, nil)
	a.headers.LRU().SetMetrics(headerCacheHits, headerCacheMisses)
	return nil
}

// newRootCmd builds the command tree. The returned cleanup flushes traces
// and closes the log file; call it once the command has run.
func newRootCmd(stdout, stderr io.Writer) (*cobra.Command, func()) {
	a := &app{stdout: stdout, stderr: stderr}
	var configPath, logLevel string

	root := &cobra.Command{
		Use:   "qvdtool",
		Short: "Inspect, read and convert QVD files",
		Long: `qvdtool reads and writes QVD tables: an XML header, a symbol
table of distinct values per column, and a bit-packed index table.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(configPath, logLevel)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "qvdtool.yaml", "Path to the configuration file")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level")

	root.AddCommand(newInspectCmd(a), newHeadCmd(a), newConvertCmd(a), newStatsCmd(a))
	return root, a.close
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, cleanup := newRootCmd(os.Stdout, os.Stderr)
	err := root.ExecuteContext(ctx)
	cleanup()
	if err != nil {
		stop()
		os.Exit(1)
	}
}
