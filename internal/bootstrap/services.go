package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gagyekum/residency/config"
	"github.com/gagyekum/residency/internal/adapters/janitor"
	"github.com/gagyekum/residency/internal/core"
	"github.com/gagyekum/residency/internal/data"
	"github.com/gagyekum/residency/internal/observability/notify"
	"github.com/gagyekum/residency/internal/observability/notify/pagerduty"
	"github.com/gagyekum/residency/internal/observability/notify/slack"
	"github.com/gagyekum/residency/internal/observability/statsd"
	"github.com/gagyekum/residency/internal/service"
	"github.com/gagyekum/residency/internal/service/dispatch"
	"github.com/gagyekum/residency/internal/service/failurenotifier"
	"github.com/redis/go-redis/v9"
)

// ServiceContainer is the wired application: the domain services plus the
// shared observability handles the background workers reuse.
type ServiceContainer struct {
	Messaging     *service.MessagingService
	Residences    *service.ResidenceService
	Dispatcher    *dispatch.Coordinator
	StatusCache   *core.StatusCacheService
	Observability Observability
}

// Observability bundles the metrics sink and the failure fan-out shared by
// the dispatcher and the workers.
type Observability struct {
	Metrics  *statsd.Client
	Failures *failurenotifier.Service
}

// repoSet holds the data adapters behind the service ports.
type repoSet struct {
	Jobs       *data.MessageJobRepo
	Recipients *data.RecipientRepo
	Residences *data.ResidenceRepo
	Cache      *data.RedisCacheRepo
}

// NewServices wires repositories, transports, and observability into the
// container the HTTP layer and workers run on. A nil redis client simply
// disables status caching.
func NewServices(cfg *config.AppConfig, db *sql.DB, rdb redis.UniversalClient, logger *slog.Logger) ServiceContainer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == nil {
		cfg = &config.AppConfig{}
	}

	obs := buildObservability(logger, cfg.Observability)
	repos := buildRepositories(db, rdb, cfg.Redis, logger)

	var statusCache *core.StatusCacheService
	if repos.Cache != nil {
		statusCache = core.NewStatusCacheService(repos.Cache, cfg.StatusCache.TTL)
	}

	coordinator := newDispatchCoordinator(repos, cfg.Messaging, obs, logger)

	messaging := service.MustNewMessagingService(service.MessagingServiceOptions{
		Jobs:        repos.Jobs,
		Recipients:  repos.Recipients,
		Residences:  repos.Residences,
		Launcher:    coordinator,
		StatusCache: statusCache,
		Logger:      logger,
	})
	residences := service.NewResidenceService(service.ResidenceServiceOptions{Repo: repos.Residences})

	return ServiceContainer{
		Messaging:     messaging,
		Residences:    residences,
		Dispatcher:    coordinator,
		StatusCache:   statusCache,
		Observability: obs,
	}
}

// buildObservability stands up the statsd sink and the failure notifier.
// Each degrades to disabled rather than failing startup.
func buildObservability(logger *slog.Logger, cfg config.ObservabilityConfig) Observability {
	obs := Observability{Failures: buildFailureNotifier(logger, cfg.Notifications)}
	if !cfg.Metrics.IsEnabled() {
		return obs
	}

	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.Metrics.StatsdAddress,
		Prefix:  "residency",
		Logger:  logger,
	})
	if err != nil {
		logger.Error("statsd sink unavailable, metrics disabled", "error", err)
		return obs
	}

	obs.Metrics = client
	return obs
}

// buildFailureNotifier wires whatever alerting sinks the config enables. A
// sink that fails to construct is logged and skipped; alerting is never worth
// blocking startup over.
func buildFailureNotifier(logger *slog.Logger, cfg config.ObservabilityNotificationsConfig) *failurenotifier.Service {
	svc := failurenotifier.New(logger.With("component", "failure_notifier"))
	if !cfg.Enabled {
		return svc
	}

	sinks := []struct {
		name    string
		enabled bool
		build   func() (notify.Sink, error)
	}{
		{"slack", cfg.Slack.Enabled, func() (notify.Sink, error) {
			return slack.NewClient(slack.Config{
				WebhookURL:   cfg.Slack.WebhookURL,
				Channel:      cfg.Slack.Channel,
				Username:     cfg.Slack.Username,
				Timeout:      cfg.Timeout,
				RetryLimit:   cfg.RetryLimit,
				JobURLPrefix: cfg.Slack.JobURLPrefix,
			})
		}},
		{"pagerduty", cfg.PagerDuty.Enabled, func() (notify.Sink, error) {
			return pagerduty.NewClient(pagerduty.Config{
				RoutingKey: cfg.PagerDuty.RoutingKey,
				Source:     cfg.PagerDuty.Source,
				Component:  cfg.PagerDuty.Component,
				Timeout:    cfg.Timeout,
				RetryLimit: cfg.RetryLimit,
			})
		}},
	}

	for _, s := range sinks {
		if !s.enabled {
			continue
		}
		sink, err := s.build()
		if err != nil {
			logger.Error("alerting sink unavailable", "sink", s.name, "error", err)
			continue
		}
		svc.Register(s.name, sink)
	}

	return svc
}

// buildRepositories constructs the data adapters. The cache repo is
// namespaced with the configured key prefix so multiple deployments can share
// one Redis.
func buildRepositories(db *sql.DB, rdb redis.UniversalClient, redisCfg config.RedisConfig, logger *slog.Logger) *repoSet {
	repos := &repoSet{
		Jobs:       data.NewMessageJobRepo(db, data.RepoConfig{Logger: logger}),
		Recipients: data.NewRecipientRepo(db),
		Residences: data.NewResidenceRepo(db),
	}
	if rdb != nil {
		repos.Cache = data.NewRedisCacheRepoWithPrefix(rdb, redisCfg.KeyPrefix)
	}
	return repos
}

func newDispatchCoordinator(repos *repoSet, cfg config.MessagingConfig, obs Observability, logger *slog.Logger) *dispatch.Coordinator {
	return dispatch.MustNewCoordinator(dispatch.CoordinatorOptions{
		Jobs:       repos.Jobs,
		Recipients: repos.Recipients,
		Email:      buildEmailTransport(logger, cfg),
		SMS:        buildSMSTransport(logger, cfg),
		EmailConfig: dispatch.ChannelConfig{
			BatchSize:  cfg.Email.BatchSize,
			BatchDelay: cfg.Email.BatchDelay,
		},
		SMSConfig: dispatch.ChannelConfig{
			BatchSize:  cfg.SMS.BatchSize,
			BatchDelay: cfg.SMS.BatchDelay,
		},
		Logger:          logger,
		Metrics:         obs.Metrics,
		FailureNotifier: obs.Failures,
	})
}

// RunConfig carries everything Run needs to start and later drain the
// enabled services.
type RunConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	DB       *sql.DB
	Logger   *slog.Logger
}

// shutdownWaitTimeout caps how long graceful shutdown waits for the HTTP
// server to drain and background workers to finish.
const shutdownWaitTimeout = 15 * time.Second

// startupDeps carries what the worker launchers need.
type startupDeps struct {
	ctx     context.Context
	cfg     *RunConfig
	logger  *slog.Logger
	enabled config.ServiceSet
	errCh   chan error
}

// workerSpec describes a startable background worker.
type workerSpec struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// workerHandle tracks a running background worker.
type workerHandle struct {
	name string
	done <-chan struct{}
}

// launchWorker runs the worker in its own goroutine. A worker error is pushed
// onto the shared error channel; if that channel is full the error is logged
// and dropped rather than blocking the worker goroutine forever.
func launchWorker(deps *startupDeps, spec workerSpec) workerHandle {
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		err := spec.start(deps.ctx)
		if err == nil {
			return
		}
		wrapped := fmt.Errorf("%s failed: %w", spec.name, err)
		select {
		case deps.errCh <- wrapped:
		case <-deps.ctx.Done():
		default:
			logger.WarnContext(deps.ctx, "dropping worker error", "worker", spec.name, "error", wrapped)
		}
	}()

	logger.InfoContext(deps.ctx, "background worker started", "worker", spec.name, "mode", spec.mode)
	return workerHandle{name: spec.name, done: done}
}

func startWorkers(deps *startupDeps, specs []workerSpec) []workerHandle {
	if deps == nil {
		return nil
	}
	handles := make([]workerHandle, 0, len(specs))
	for _, spec := range specs {
		if !deps.enabled.Has(spec.mode) {
			continue
		}
		handles = append(handles, launchWorker(deps, spec))
	}
	return handles
}

func janitorWorker(deps *startupDeps) workerSpec {
	return workerSpec{
		mode: config.ServiceModeJanitor,
		name: "janitor",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var janitorCfg config.JanitorConfig
			if deps.cfg.Config != nil {
				janitorCfg = deps.cfg.Config.Janitor
			}
			runner, err := janitor.NewRunner(janitor.RunnerOptions{
				DB:      deps.cfg.DB,
				Config:  janitorCfg,
				Logger:  deps.logger,
				Metrics: deps.cfg.Services.Observability.Metrics,
			})
			if err != nil {
				return fmt.Errorf("create janitor runner: %w", err)
			}
			return runner.Run(ctx)
		},
	}
}

// startServices starts the HTTP server and every enabled background worker.
func startServices(deps *startupDeps) (*http.Server, []workerHandle) {
	var httpServer *http.Server
	if deps.enabled.Has(config.ServiceModeHTTP) {
		httpCfg := &HTTPServerConfig{Config: deps.cfg.Config, Services: deps.cfg.Services, Logger: deps.logger}
		httpServer = StartHTTPServer(httpCfg)
	}

	workers := startWorkers(deps, []workerSpec{
		janitorWorker(deps),
	})
	return httpServer, workers
}

// Run starts every enabled service and blocks until a termination signal
// arrives or one of them fails, then drains the rest.
func Run(cfg *RunConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("run config with app config is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	enabled, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}

	errCh := make(chan error, errorChannelBufferSize(enabled))
	httpServer, workers := startServices(&startupDeps{
		ctx:     runCtx,
		cfg:     cfg,
		logger:  logger,
		enabled: enabled,
		errCh:   errCh,
	})

	return waitForShutdown(shutdownConfig{
		cancel:           cancel,
		errCh:            errCh,
		httpServer:       httpServer,
		httpDrainTimeout: cfg.Config.HTTP.ShutdownTimeout,
		dispatcher:       cfg.Services.Dispatcher,
		logger:           logger,
		workers:          workers,
	})
}

// errorChannelBufferSize sizes the shared error channel to one slot per
// enabled service plus one spare, so a failing service never blocks on send
// while shutdown is already in progress.
func errorChannelBufferSize(enabled config.ServiceSet) int {
	return len(enabled.Names()) + 1
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	cancel           context.CancelFunc
	errCh            <-chan error
	httpServer       *http.Server
	httpDrainTimeout time.Duration
	dispatcher       *dispatch.Coordinator
	logger           *slog.Logger
	workers          []workerHandle
}

// waitForShutdown blocks until a termination signal arrives or a service
// reports an error, then drains everything.
func waitForShutdown(cfg shutdownConfig) error {
	sigCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-sigCtx.Done():
		cfg.logger.Info("shutdown signal received, stopping services")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop drains the HTTP server, in-flight dispatches, and background
// workers. The drain deadline is independent of the already-cancelled service
// context so in-flight deliveries get their full grace period.
func gracefulStop(cfg shutdownConfig) error {
	drainCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
	defer cancel()

	switch {
	case cfg.httpServer != nil:
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context:    drainCtx,
			Server:     cfg.httpServer,
			Dispatcher: cfg.dispatcher,
			Logger:     cfg.logger,
			Timeout:    cfg.httpDrainTimeout,
		}); err != nil {
			return err
		}
	case cfg.dispatcher != nil:
		// No HTTP server running; drain in-flight dispatchers directly.
		if err := cfg.dispatcher.Shutdown(drainCtx); err != nil {
			cfg.logger.Warn("dispatcher shutdown incomplete", "error", err)
		}
	}

	for _, w := range cfg.workers {
		awaitWorker(w, cfg.logger)
	}
	return nil
}

// awaitWorker waits for one background worker to finish, bounded by the
// shutdown timeout.
func awaitWorker(w workerHandle, logger *slog.Logger) {
	if w.done == nil {
		return
	}
	select {
	case <-w.done:
		logger.Info(w.name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + w.name + " to stop")
	}
}
