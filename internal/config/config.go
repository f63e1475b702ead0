// Package config loads server configuration from YAML and the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/fidde/segment_decoder/internal/storage"
	"github.com/fidde/segment_decoder/internal/storage/sessions"
	"gopkg.in/yaml.v3"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Storage  StorageConfig  `yaml:"storage"`
	Sessions SessionsConfig `yaml:"sessions"`
	Analyzer AnalyzerConfig `yaml:"analyzer"`
	Log      LogConfig      `yaml:"log"`
}

// ServerConfig holds listen addresses.
type ServerConfig struct {
	APIAddr      string `yaml:"api_addr"`
	OTLPHTTPAddr string `yaml:"otlp_http_addr"`
	OTLPGRPCAddr string `yaml:"otlp_grpc_addr"`
}

// StorageConfig selects and configures the entry store.
type StorageConfig struct {
	Backend            string `yaml:"backend"`
	SQLitePath         string `yaml:"sqlite_path"`
	ClickHouseAddr     string `yaml:"clickhouse_addr"`
	ClickHouseDatabase string `yaml:"clickhouse_database"`
}

// SessionsConfig configures the session directory.
type SessionsConfig struct {
	Dir         string `yaml:"dir"`
	MaxSessions int    `yaml:"max_sessions"`
}

// AnalyzerConfig sizes the decode worker pool.
type AnalyzerConfig struct {
	// Workers is the number of decode goroutines; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text or json
}

// Default returns the built-in configuration.
func Default() *Config {
	st := storage.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			APIAddr:      "0.0.0.0:8080",
			OTLPHTTPAddr: "0.0.0.0:4318",
			OTLPGRPCAddr: "0.0.0.0:4317",
		},
		Storage: StorageConfig{
			Backend:            st.Backend,
			SQLitePath:         st.SQLitePath,
			ClickHouseAddr:     st.ClickHouseAddr,
			ClickHouseDatabase: st.ClickHouseDatabase,
		},
		Sessions: SessionsConfig{
			Dir:         sessions.DefaultSessionDir,
			MaxSessions: sessions.DefaultMaxSessions,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config YAML: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	c.Server.APIAddr = getEnv("SEGDECODE_API_ADDR", c.Server.APIAddr)
	c.Server.OTLPHTTPAddr = getEnv("SEGDECODE_OTLP_HTTP_ADDR", c.Server.OTLPHTTPAddr)
	c.Server.OTLPGRPCAddr = getEnv("SEGDECODE_OTLP_GRPC_ADDR", c.Server.OTLPGRPCAddr)

	c.Storage.Backend = getEnv("SEGDECODE_STORAGE_BACKEND", c.Storage.Backend)
	c.Storage.SQLitePath = getEnv("SEGDECODE_SQLITE_PATH", c.Storage.SQLitePath)
	c.Storage.ClickHouseAddr = getEnv("SEGDECODE_CLICKHOUSE_ADDR", c.Storage.ClickHouseAddr)
	c.Storage.ClickHouseDatabase = getEnv("SEGDECODE_CLICKHOUSE_DATABASE", c.Storage.ClickHouseDatabase)

	c.Sessions.Dir = getEnv("SEGDECODE_SESSION_DIR", c.Sessions.Dir)

	c.Log.Level = getEnv("SEGDECODE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("SEGDECODE_LOG_FORMAT", c.Log.Format)

	var err error
	if c.Sessions.MaxSessions, err = getEnvInt("SEGDECODE_MAX_SESSIONS", c.Sessions.MaxSessions); err != nil {
		return err
	}
	if c.Analyzer.Workers, err = getEnvInt("SEGDECODE_WORKERS", c.Analyzer.Workers); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with.
func (c *Config) Validate() error {
	var errs []error

	switch c.Storage.Backend {
	case storage.BackendMemory, storage.BackendClickHouse:
	case storage.BackendSQLite, storage.BackendDual:
		if c.Storage.SQLitePath == "" {
			errs = append(errs, errors.New("storage.sqlite_path is required for the sqlite and dual backends"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage.Backend))
	}

	if c.Analyzer.Workers < 0 {
		errs = append(errs, fmt.Errorf("analyzer.workers must not be negative, got %d", c.Analyzer.Workers))
	}
	if c.Sessions.MaxSessions <= 0 {
		errs = append(errs, fmt.Errorf("sessions.max_sessions must be positive, got %d", c.Sessions.MaxSessions))
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// StorageOptions converts the storage section for storage.NewStorage.
func (c *Config) StorageOptions() storage.Config {
	return storage.Config{
		Backend:            c.Storage.Backend,
		SQLitePath:         c.Storage.SQLitePath,
		ClickHouseAddr:     c.Storage.ClickHouseAddr,
		ClickHouseDatabase: c.Storage.ClickHouseDatabase,
	}
}

// SessionOptions converts the sessions section for sessions.NewWithConfig.
func (c *Config) SessionOptions() sessions.Config {
	cfg := sessions.DefaultConfig()
	cfg.SessionDir = c.Sessions.Dir
	cfg.MaxSessions = c.Sessions.MaxSessions
	return cfg
}

// NewLogger builds the structured logger described by the log section.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return level, fmt.Errorf("unknown log level %q", s)
	}
	return level, nil
}

// getEnv gets an environment variable with a default fallback.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt gets an integer environment variable with a default fallback.
func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return i, nil
}
