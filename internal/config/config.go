// Package config loads recon runtime settings.
//
// Precedence is defaults, then the YAML file, then RECON_* environment
// variables. Schema declarations live in CUE and are not part of this
// configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/roach88/recon/internal/querysql"
)

// DefaultPath is read when no explicit config path is given.
const DefaultPath = "recon.yaml"

// Config is the root configuration structure.
// It is read-only after Load() returns and safe for concurrent reads.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Query     QueryConfig     `yaml:"query"`
	Deploy    DeployConfig    `yaml:"deploy"`
	Log       LogConfig       `yaml:"log"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// DatabaseConfig locates the SQLite remote store.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// QueryConfig bounds generated lookup queries.
type QueryConfig struct {
	MaxClauses int    `yaml:"max_clauses"`
	MaxLength  int    `yaml:"max_length"`
	Dialect    string `yaml:"dialect"`
}

// DeployConfig contains deploy settings.
type DeployConfig struct {
	Timeout Duration `yaml:"timeout"` // Zero means no deadline
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TelemetryConfig configures trace export. An empty endpoint disables it.
type TelemetryConfig struct {
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// MetricsConfig configures the Prometheus textfile written after a run.
type MetricsConfig struct {
	File string `yaml:"file"`
}

// Duration is a wrapper around time.Duration that supports YAML string parsing.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler for Duration.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler for Duration.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Load loads configuration with precedence: defaults → YAML file → env vars.
//
// An empty path falls back to RECON_CONFIG_PATH and then DefaultPath; a
// missing file is only an error when the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := newDefaults()

	explicit := path != ""
	if !explicit {
		path = getEnv("RECON_CONFIG_PATH", DefaultPath)
	}

	if err := loadYAMLFile(cfg, path, explicit); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// newDefaults returns a Config with all default values.
func newDefaults() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path: "recon.db",
		},
		Query: QueryConfig{
			MaxClauses: querysql.DefaultMaxClauses,
			MaxLength:  querysql.DefaultMaxLength,
			Dialect:    querysql.DialectSQLite,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			ServiceName: "recon",
		},
	}
}

// loadYAMLFile decodes path into cfg. A missing file keeps the defaults
// unless required is set.
func loadYAMLFile(cfg *Config, path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) && !required {
			return nil
		}
		return fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides to the config.
// Only non-empty env vars override config values.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RECON_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("RECON_QUERY_MAX_CLAUSES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.MaxClauses = n
		}
	}
	if v := os.Getenv("RECON_QUERY_MAX_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Query.MaxLength = n
		}
	}
	if v := os.Getenv("RECON_QUERY_DIALECT"); v != "" {
		cfg.Query.Dialect = v
	}

	if v := os.Getenv("RECON_DEPLOY_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Deploy.Timeout = Duration(d)
		}
	}

	if v := os.Getenv("RECON_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("RECON_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	// OTEL_EXPORTER_OTLP_ENDPOINT is the OpenTelemetry convention
	if v := getEnv("RECON_TELEMETRY_ENDPOINT", os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); v != "" {
		cfg.Telemetry.Endpoint = v
	}

	if v := os.Getenv("RECON_METRICS_FILE"); v != "" {
		cfg.Metrics.File = v
	}
}

// validate checks value ranges and enumerations.
func (c *Config) validate() error {
	if c.Query.MaxClauses <= 0 {
		return fmt.Errorf("query.max_clauses must be positive, got %d", c.Query.MaxClauses)
	}
	if c.Query.MaxLength <= 0 {
		return fmt.Errorf("query.max_length must be positive, got %d", c.Query.MaxLength)
	}
	if _, err := querysql.DialectByName(c.Query.Dialect); err != nil {
		return fmt.Errorf("query.dialect: %w", err)
	}
	if c.Deploy.Timeout < 0 {
		return fmt.Errorf("deploy.timeout must not be negative")
	}
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("log.format must be text or json, got %q", c.Log.Format)
	}
	return nil
}

// Builder returns a query builder honoring the query settings.
func (c *Config) Builder() (*querysql.Builder, error) {
	d, err := querysql.DialectByName(c.Query.Dialect)
	if err != nil {
		return nil, err
	}
	b := querysql.NewBuilder(d)
	b.MaxClauses = c.Query.MaxClauses
	b.MaxLength = c.Query.MaxLength
	return b, nil
}

// getEnv returns the value of an environment variable or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
