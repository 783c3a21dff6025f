package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/migrate"
)

// connectProbeTimeout bounds the liveness ping on every storage connection
// made at startup.
const connectProbeTimeout = 5 * time.Second

// StorageConfig carries what the storage tier needs to come up. Connect
// helpers read only the sections they use, so partial configs are fine.
type StorageConfig struct {
	Postgres config.DBConfig
	Redis    config.RedisConfig
	Logger   *slog.Logger
}

// ConnectDB opens the PostgreSQL pool and verifies it responds before
// handing it out.
func ConnectDB(ctx context.Context, cfg StorageConfig) (*sql.DB, error) {
	pg := cfg.Postgres
	pg.Sanitize()

	db, err := sql.Open("pgx", pg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(pg.MaxOpenConns)
	db.SetMaxIdleConns(pg.MaxIdleConns)
	db.SetConnMaxLifetime(pg.ConnMaxLifetime)

	probeCtx, cancel := context.WithTimeout(ctx, connectProbeTimeout)
	defer cancel()

	if err := db.PingContext(probeCtx); err != nil {
		err = fmt.Errorf("ping database: %w", err)
		if closeErr := db.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close database: %w", closeErr))
		}
		return nil, err
	}

	if cfg.Logger != nil {
		cfg.Logger.Info("database connected",
			"host", pg.Host,
			"port", pg.Port,
			"database", pg.Name,
			"max_open_conns", pg.MaxOpenConns,
		)
	}

	return db, nil
}

// RunMigrations brings the schema up to date.
func RunMigrations(ctx context.Context, db *sql.DB, logger *slog.Logger) error {
	if err := migrate.Run(ctx, db); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	if logger != nil {
		logger.InfoContext(ctx, "database migrations completed")
	}

	return nil
}
