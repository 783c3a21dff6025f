package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/bootstrap"
	"github.com/redis/go-redis/v9"
)

// connectInfra wires up the database plus, when enabled in config, a Redis
// client. The Redis client is nil when the cache is disabled.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectInfra(ctx context.Context, logger *slog.Logger, cfg *config.AppConfig) (*sql.DB, redis.UniversalClient, error) {
	db, err := bootstrap.ConnectDB(ctx, bootstrap.StorageConfig{Postgres: cfg.Postgres, Logger: logger})
	if err != nil {
		return nil, nil, fmt.Errorf("connect db: %w", err)
	}

	rdb, err := bootstrap.ConnectRedis(ctx, bootstrap.StorageConfig{Redis: cfg.Redis, Logger: logger})
	if err != nil {
		err = fmt.Errorf("connect redis: %w", err)
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close db: %w", closeErr))
		}
		return nil, nil, err
	}

	return db, rdb, nil
}

func closeInfra(db *sql.DB, rdb redis.UniversalClient) error {
	var errs []error
	if db != nil {
		if err := db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close db: %w", err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	return errors.Join(errs...)
}
