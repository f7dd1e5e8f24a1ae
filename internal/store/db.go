package store

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/bloodwork/internal/config"
)

// Connect opens and pings a pgx pool sized from cfg.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Open selects the backend from the DATABASE_URL scheme, brings the schema up
// to date and returns a ready ResultStore.
func Open(ctx context.Context, cfg config.DatabaseConfig) (ResultStore, error) {
	if cfg.IsSQLite() {
		s, err := OpenSQLite(ctx, cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		slog.Info("result store ready", "backend", "sqlite", "path", cfg.SQLitePath())
		return s, nil
	}

	if err := RunMigrations(cfg.URL, cfg.MigrationsDir); err != nil {
		return nil, err
	}
	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	slog.Info("result store ready", "backend", "postgres")
	return NewPostgresStore(pool), nil
}
