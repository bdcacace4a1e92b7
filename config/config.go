// Package config loads the YAML configuration of the bulk-load tooling and
// maps it onto the explicit option values the writers take.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/INLOpen/nexustsf/core"
)

// WriterConfig holds the chunk write path thresholds and codec defaults.
type WriterConfig struct {
	PageSizeThresholdBytes  int    `yaml:"page_size_threshold_bytes"`
	MaxPointsPerPage        int    `yaml:"max_points_per_page"`
	ChunkSizeThresholdBytes int64  `yaml:"chunk_size_threshold_bytes"`
	TimeEncoding            string `yaml:"time_encoding"`
	TimeCompression         string `yaml:"time_compression"`
	WritePageCRC            bool   `yaml:"write_page_crc"`
}

// LoggingConfig holds logging-specific configurations.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // e.g., "debug", "info", "warn", "error"
	Output string `yaml:"output"` // "stdout", "stderr" or "none"
}

// TracingConfig holds configuration for distributed tracing.
type TracingConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"` // e.g., "localhost:4317" for a gRPC OTLP collector
	Protocol string `yaml:"protocol"` // "grpc" or "http"
}

// Config is the top-level configuration struct.
type Config struct {
	Writer  WriterConfig  `yaml:"writer"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
}

// Load reads configuration from an io.Reader. Defaults are filled first and
// then overwritten by whatever the YAML sets.
func Load(r io.Reader) (*Config, error) {
	cfg := &Config{
		Writer: WriterConfig{
			PageSizeThresholdBytes:  core.DefaultPageSizeThresholdBytes,
			MaxPointsPerPage:        core.DefaultMaxPointsPerPage,
			ChunkSizeThresholdBytes: core.DefaultChunkSizeThresholdBytes,
			TimeEncoding:            "TS_2DIFF",
			TimeCompression:         "LZ4",
			WritePageCRC:            false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: "stdout",
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Endpoint: "localhost:4317",
			Protocol: "grpc",
		},
	}

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
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}
	return cfg, nil
}

// LoadConfig reads configuration from a YAML file by path. A missing file
// yields the defaults.
func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Load(nil)
		}
		return nil, fmt.Errorf("failed to open config file %s: %w", path, err)
	}
	defer file.Close()
	return Load(file)
}

// WriteOptions maps the writer section onto the options value the chunk
// writers take.
func (c *Config) WriteOptions(logger *slog.Logger) (core.WriteOptions, error) {
	te, err := core.ParseEncoding(c.Writer.TimeEncoding)
	if err != nil {
		return core.WriteOptions{}, fmt.Errorf("writer.time_encoding: %w", err)
	}
	tc, err := core.ParseCompression(c.Writer.TimeCompression)
	if err != nil {
		return core.WriteOptions{}, fmt.Errorf("writer.time_compression: %w", err)
	}
	opts := core.WriteOptions{
		PageSizeThresholdBytes:  c.Writer.PageSizeThresholdBytes,
		MaxPointsPerPage:        c.Writer.MaxPointsPerPage,
		ChunkSizeThresholdBytes: c.Writer.ChunkSizeThresholdBytes,
		TimeEncoding:            te,
		TimeCompression:         tc,
		WritePageCRC:            c.Writer.WritePageCRC,
		Logger:                  logger,
	}
	return opts.Sanitize(), nil
}

// NewLogger builds a slog.Logger from the logging section.
func (c *Config) NewLogger() *slog.Logger {
	var level slog.Level
	switch c.Logging.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	var out io.Writer
	switch c.Logging.Output {
	case "none":
		return slog.New(slog.NewTextHandler(io.Discard, nil))
	case "stderr":
		out = os.Stderr
	default:
		out = os.Stdout
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
}
