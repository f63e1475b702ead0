// Package storage provides storage implementations for decoded entries.
package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/fidde/segment_decoder/internal/storage/clickhouse"
	"github.com/fidde/segment_decoder/internal/storage/dual"
	"github.com/fidde/segment_decoder/internal/storage/memory"
	"github.com/fidde/segment_decoder/internal/storage/sqlite"
)

// Supported backends.
const (
	BackendMemory     = "memory"
	BackendSQLite     = "sqlite"
	BackendClickHouse = "clickhouse"
	BackendDual       = "dual"
)

var (
	_ Storage = (*memory.Store)(nil)
	_ Storage = (*sqlite.Store)(nil)
	_ Storage = (*clickhouse.Store)(nil)
	_ Storage = (*dual.Store)(nil)
)

// Config holds storage configuration.
type Config struct {
	// Backend selects the storage backend: "memory", "sqlite", "clickhouse" or
	// "dual" (SQLite primary, ClickHouse secondary).
	Backend string

	// SQLite-specific config
	SQLitePath string

	// ClickHouse-specific config
	ClickHouseAddr     string
	ClickHouseDatabase string
}

// DefaultConfig returns default storage configuration.
func DefaultConfig() Config {
	return Config{
		Backend:            BackendMemory,
		SQLitePath:         "./data/entries.db",
		ClickHouseAddr:     "localhost:9000",
		ClickHouseDatabase: "default",
	}
}

// NewStorage creates a storage implementation based on configuration.
func NewStorage(ctx context.Context, cfg Config, logger *slog.Logger) (Storage, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch cfg.Backend {
	case BackendMemory:
		logger.Info("using in-memory storage")
		return memory.New(), nil

	case BackendSQLite:
		logger.Info("using SQLite storage", "path", cfg.SQLitePath)
		store, err := sqlite.New(sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		return store, nil

	case BackendClickHouse:
		logger.Info("using ClickHouse storage", "addr", cfg.ClickHouseAddr)
		store, err := newClickHouse(ctx, cfg, logger)
		if err != nil {
			return nil, err
		}
		return store, nil

	case BackendDual:
		logger.Info("using dual storage", "primary", cfg.SQLitePath, "secondary", cfg.ClickHouseAddr)
		primary, err := sqlite.New(sqlite.DefaultConfig(cfg.SQLitePath))
		if err != nil {
			return nil, fmt.Errorf("creating SQLite store: %w", err)
		}
		secondary, err := newClickHouse(ctx, cfg, logger)
		if err != nil {
			primary.Close()
			return nil, err
		}
		return dual.New(dual.Config{Primary: primary, Secondary: secondary, Logger: logger}), nil

	default:
		return nil, fmt.Errorf("unknown storage backend: %s (supported: memory, sqlite, clickhouse, dual)", cfg.Backend)
	}
}

func newClickHouse(ctx context.Context, cfg Config, logger *slog.Logger) (*clickhouse.Store, error) {
	chCfg := clickhouse.DefaultConfig()
	chCfg.Addr = cfg.ClickHouseAddr
	if cfg.ClickHouseDatabase != "" {
		chCfg.Database = cfg.ClickHouseDatabase
	}

	store, err := clickhouse.NewStore(ctx, chCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("creating ClickHouse store: %w", err)
	}
	return store, nil
}
