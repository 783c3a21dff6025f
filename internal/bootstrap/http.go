package bootstrap

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gagyekum/residency/config"
	httpx "github.com/gagyekum/residency/internal/http"
	"github.com/gagyekum/residency/internal/service/dispatch"
)

// HTTPServerConfig carries what the HTTP tier needs to come up.
type HTTPServerConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// StartHTTPServer wires the router, wraps it in middleware, and starts the
// server in a background goroutine. The returned server is kept around for
// graceful shutdown; nil means nothing was started.
func StartHTTPServer(cfg *HTTPServerConfig) *http.Server {
	if cfg == nil {
		return nil
	}
	logger := cmp.Or(cfg.Logger, slog.Default())

	var httpCfg config.HTTPConfig
	if cfg.Config != nil {
		httpCfg = cfg.Config.HTTP
	}
	// A zero-value config still gets sane timeouts; Sanitize is idempotent.
	httpCfg.Sanitize()

	router := httpx.NewRouter(httpx.RouterOptions{
		Messaging:  cfg.Services.Messaging,
		Residences: cfg.Services.Residences,
		Logger:     logger,
	})

	server := newServer(httpCfg, wrapMiddleware(logger, httpCfg, router))
	go func() {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("HTTP server failed", "error", err)
		}
	}()
	return server
}

// wrapMiddleware layers panic recovery, request logging, and optional gzip
// around the router. Compression sits innermost so the logger records the
// bytes that actually went out.
func wrapMiddleware(logger *slog.Logger, cfg config.HTTPConfig, h http.Handler) http.Handler {
	if cfg.CompressionEnabled {
		logger.Info("HTTP compression enabled", "level", cfg.CompressionLevel)
		h = httpx.Compression(httpx.CompressionConfig{Level: cfg.CompressionLevel})(h)
	}
	h = httpx.Logging(logger)(h)
	h = httpx.Recover(logger)(h)
	return h
}

// newServer builds the http.Server with the configured timeouts.
func newServer(cfg config.HTTPConfig, handler http.Handler) *http.Server {
	addr := cfg.Addr
	if addr == "" {
		addr = ":8080"
	}
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

// ShutdownConfig carries the pieces involved in draining the HTTP tier.
type ShutdownConfig struct {
	Context    context.Context
	Server     *http.Server
	Dispatcher *dispatch.Coordinator
	Logger     *slog.Logger

	// Timeout bounds the server drain alone; the dispatcher gets whatever
	// remains of Context afterwards. Zero falls back to 10s.
	Timeout time.Duration
}

// ShutdownHTTPServer stops the server, then drains in-flight dispatchers.
// The server stops first so no new jobs can be launched while the dispatcher
// is draining.
func ShutdownHTTPServer(cfg ShutdownConfig) error {
	if cfg.Server == nil {
		return nil
	}
	logger := cmp.Or(cfg.Logger, slog.Default())
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	logger.Info("shutting down HTTP server")
	drainCtx, cancel := context.WithTimeout(cfg.Context, timeout)
	defer cancel()
	if err := cfg.Server.Shutdown(drainCtx); err != nil {
		return fmt.Errorf("drain HTTP server: %w", err)
	}
	logger.Info("HTTP server stopped")

	if cfg.Dispatcher != nil {
		if err := cfg.Dispatcher.Shutdown(cfg.Context); err != nil {
			logger.Warn("dispatcher shutdown incomplete", "error", err)
		}
	}
	return nil
}
