package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // e.g., "stdout", "stderr", "file", "none"
	File   string `yaml:"file"`   // Path to the log file, used if output is "file"
}

// LoaderConfig controls how QVD files are read.
type LoaderConfig struct {
	// ChunkSizeBytes is the read size used while scanning for the header delimiter.
	ChunkSizeBytes int `yaml:"chunk_size_bytes"`
	// AllowedDir restricts every path to this directory when non-empty.
	AllowedDir      string `yaml:"allowed_dir"`
	HeaderCacheSize int    `yaml:"header_cache_size"`
}

// WriterConfig controls how QVD files are written.
type WriterConfig struct {
	ProgressIntervalRows int    `yaml:"progress_interval_rows"`
	LockTimeout          string `yaml:"lock_timeout"`
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the top-level configuration struct.
type Config struct {
	Logging LoggingConfig `yaml:"logging"`
	Loader  LoaderConfig  `yaml:"loader"`
	Writer  WriterConfig  `yaml:"writer"`
	Tracing TracingConfig `yaml:"tracing"`
}

// ParseDuration parses a duration string. Returns the default duration if the string is empty or invalid.
// Logs a warning if the string is invalid but not empty.
func ParseDuration(durationStr string, defaultDuration time.Duration, logger *slog.Logger) time.Duration {
	if durationStr == "" || durationStr == "0" {
		return defaultDuration
	}
	d, err := time.ParseDuration(durationStr)
	if err != nil {
		if logger != nil {
			logger.Warn("Invalid duration format, using default", "input", durationStr, "default", defaultDuration.String(), "error", err)
		}
		return defaultDuration
	}
	return d
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stderr",
			File:   "qvdtool.log",
		},
		Loader: LoaderConfig{
			ChunkSizeBytes:  64 * 1024, // 64 KiB
			AllowedDir:      "",
			HeaderCacheSize: 128,
		},
		Writer: WriterConfig{
			ProgressIntervalRows: 10000,
			LockTimeout:          "5s",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
	}
}

// Load reads configuration from an io.Reader.
// This is the core logic, separated for testability.
func Load(r io.Reader) (*Config, error) {
	cfg := Default()

	// If the reader is nil, it's like an empty file, return defaults.
	if r == nil {
		return cfg, nil
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config data: %w", err)
	}
	if len(data) == 0 {
		return cfg, nil
	}

	// Unmarshal YAML into the config struct, overwriting defaults
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Loader.ChunkSizeBytes <= 0 {
		return fmt.Errorf("loader.chunk_size_bytes must be positive, got %d", c.Loader.ChunkSizeBytes)
	}
	if c.Loader.HeaderCacheSize < 0 {
		return fmt.Errorf("loader.header_cache_size must not be negative, got %d", c.Loader.HeaderCacheSize)
	}
	if c.Writer.ProgressIntervalRows <= 0 {
		return fmt.Errorf("writer.progress_interval_rows must be positive, got %d", c.Writer.ProgressIntervalRows)
	}
	switch c.Tracing.Protocol {
	case "grpc", "http":
	default:
		return fmt.Errorf("tracing.protocol must be grpc or http, got %q", c.Tracing.Protocol)
	}
	return nil
}

// LoadConfig reads configuration from a YAML file by path.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			// If file doesn't exist, return default config by calling Load with a nil reader.
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()

	return Load(file)
}
