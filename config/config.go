package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/c360/refbridge/errors"
)

// LogConfig controls the structured logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is json or text.
	Format string `yaml:"format"`
}

// RelationalConfig holds the SQLite entity store settings.
type RelationalConfig struct {
	// Path is the database file location.
	Path string `yaml:"path"`
}

// DocumentConfig holds the NATS JetStream document store settings.
type DocumentConfig struct {
	// URL is the NATS server address.
	URL string `yaml:"url"`
	// DocsBucket names the KV bucket holding documents.
	DocsBucket string `yaml:"docs_bucket"`
	// UIDBucket names the KV bucket indexing unique-ids.
	UIDBucket string `yaml:"uid_bucket"`
	// ConnectTimeout bounds the initial connection attempt.
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns metric collection on.
	Enabled bool `yaml:"enabled"`
	// Addr is the listen address for the /metrics endpoint.
	Addr string `yaml:"addr"`
}

// Config is the complete bridge service configuration.
type Config struct {
	Log        LogConfig        `yaml:"log"`
	Relational RelationalConfig `yaml:"relational"`
	Documents  DocumentConfig   `yaml:"documents"`
	Metrics    MetricsConfig    `yaml:"metrics"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Relational: RelationalConfig{
			Path: "refbridge.db",
		},
		Documents: DocumentConfig{
			URL:            "nats://localhost:4222",
			DocsBucket:     "refbridge_documents",
			UIDBucket:      "refbridge_uids",
			ConnectTimeout: 5 * time.Second,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Addr:    ":9090",
		},
	}
}

// Load reads a YAML config file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "read config file")
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Load", "parse config file")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for missing or contradictory settings.
func (c *Config) Validate() error {
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log level %q", errors.ErrInvalidConfig, c.Log.Level),
			"config", "Validate", "log level check")
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return errors.WrapInvalid(
			fmt.Errorf("%w: log format %q", errors.ErrInvalidConfig, c.Log.Format),
			"config", "Validate", "log format check")
	}

	if c.Relational.Path == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: relational.path", errors.ErrMissingConfig),
			"config", "Validate", "relational store check")
	}

	if c.Documents.URL == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: documents.url", errors.ErrMissingConfig),
			"config", "Validate", "document store check")
	}
	if c.Documents.DocsBucket == "" || c.Documents.UIDBucket == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: documents bucket names", errors.ErrMissingConfig),
			"config", "Validate", "bucket name check")
	}
	if c.Documents.DocsBucket == c.Documents.UIDBucket {
		return errors.WrapInvalid(
			fmt.Errorf("%w: documents and uid buckets must differ", errors.ErrInvalidConfig),
			"config", "Validate", "bucket name check")
	}
	if c.Documents.ConnectTimeout <= 0 {
		return errors.WrapInvalid(
			fmt.Errorf("%w: documents.connect_timeout", errors.ErrInvalidConfig),
			"config", "Validate", "timeout check")
	}

	if c.Metrics.Enabled && c.Metrics.Addr == "" {
		return errors.WrapInvalid(
			fmt.Errorf("%w: metrics.addr", errors.ErrMissingConfig),
			"config", "Validate", "metrics check")
	}

	return nil
}
