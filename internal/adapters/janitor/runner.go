// Package janitor runs the background job sweeper against the live database.
package janitor

import (
	"cmp"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/observability/statsd"
	"github.com/gagyekum/residency/internal/service"
)

// Runner owns a configured janitor loop.
type Runner struct {
	svc    *service.JanitorService
	logger *slog.Logger
}

// RunnerOptions carries what the sweeper needs. Repo, when set, replaces the
// default repository wiring, mainly for tests.
type RunnerOptions struct {
	DB      *sql.DB
	Config  config.JanitorConfig
	Logger  *slog.Logger
	Repo    core.JanitorRepository
	Metrics statsd.Sink
}

// NewRunner wires the janitor service against the database.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.DB == nil && opts.Repo == nil {
		return nil, errors.New("database connection is required")
	}
	logger := cmp.Or(opts.Logger, slog.Default())

	repo := opts.Repo
	if repo == nil {
		repo = data.NewMessageJobRepo(opts.DB, data.RepoConfig{Logger: logger})
	}

	svc, err := service.NewJanitorService(service.JanitorServiceOptions{
		Repo:    repo,
		Config:  opts.Config,
		Logger:  logger,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("wire janitor service: %w", err)
	}

	return &Runner{svc: svc, logger: logger}, nil
}

// Run blocks until ctx ends.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting janitor runner")
	return r.svc.Run(ctx)
}
