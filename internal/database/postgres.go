package database

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stemsi/labquiz/internal/config"
)

// NewPostgresPool creates and validates the pool backing the PostgreSQL response store.
func NewPostgresPool(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	if cfg.MaxDBConns > 0 {
		poolCfg.MaxConns = cfg.MaxDBConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	event := log.Info().
		Int32("max_conns", poolCfg.MaxConns).
		Str("host", poolCfg.ConnConfig.Host)

	// The store recreates a missing table on first write; migrations are preferred.
	var responses int64
	err = pool.QueryRow(ctx, `SELECT count(*) FROM responses`).Scan(&responses)
	if err != nil {
		log.Warn().Err(err).Msg("responses table not readable; run cmd/migrate")
	} else {
		event = event.Int64("responses", responses)
	}
	event.Msg("PostgreSQL connected")

	return pool, nil
}
