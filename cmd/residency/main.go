// Command residency runs the message dispatch service. Config selects which
// parts come up in this process: the HTTP API, the dispatch workers, the
// retention janitor, or any mix of them.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/gagyekum/residency/internal/bootstrap"
)

func main() {
	logger := bootstrap.InitLogger()
	if err := run(context.Background(), logger); err != nil {
		logger.Error("fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // startup failures exit non-zero for process supervisors
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}
	if err := bootstrap.ValidateServiceConfig(&cfg); err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting residency service",
		"db_host", cfg.Postgres.Host,
		"db_port", cfg.Postgres.Port,
		"db_name", cfg.Postgres.Name,
		"email_backend", cfg.Messaging.EmailBackend,
		"sms_backend", cfg.Messaging.SMSBackend,
		"enabled_services", bootstrap.GetEnabledServices(&cfg))

	db, err := bootstrap.ConnectDB(ctx, bootstrap.StorageConfig{Postgres: cfg.Postgres, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer closeOnExit(ctx, logger, "database", db.Close)

	rdb, err := bootstrap.ConnectRedis(ctx, bootstrap.StorageConfig{Redis: cfg.Redis, Logger: logger})
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		defer closeOnExit(ctx, logger, "redis", rdb.Close)
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err := bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	services := bootstrap.NewServices(&cfg, db, rdb, logger)

	return bootstrap.Run(&bootstrap.RunConfig{
		Config:   &cfg,
		Services: services,
		DB:       db,
		Logger:   logger,
	})
}

// closeOnExit releases a shared resource during shutdown, logging failures
// instead of returning them.
func closeOnExit(ctx context.Context, logger *slog.Logger, name string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logger.ErrorContext(ctx, "close "+name+" failed", "error", err)
	}
}
