// Package app provides the main application struct for centralized dependency management
// and lifecycle control of the vendor risk portal.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"vendorrisk/config"
	"vendorrisk/internal/auth"
	"vendorrisk/internal/conditional"
	"vendorrisk/internal/files"
	"vendorrisk/internal/freshness"
	"vendorrisk/internal/portal"
	"vendorrisk/internal/server"
)

// App represents the main application with all its dependencies.
// It provides centralized lifecycle management for all components.
type App struct {
	config    *config.Config
	portal    *portal.Result
	registry  *freshness.Registry
	responses *conditional.ResponseCache
	service   *portal.Service
	server    *server.Server

	shutdownMu sync.Mutex
	shutdown   bool
}

// New creates a new App with all dependencies initialized.
// The caller must call Shutdown to release resources.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("app config is required")
	}
	if cfg.Server.JWTSecret == "" {
		return nil, fmt.Errorf("JWT secret is required (set JWT_SECRET)")
	}

	app := &App{config: cfg}

	portalResult, err := portal.New(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.portal = portalResult

	persister, err := freshness.NewPersister(freshness.Config{
		Backend: cfg.Freshness.Backend,
		Path:    cfg.Freshness.Path,
		Redis: freshness.RedisConfig{
			URL: cfg.Freshness.Redis.URL,
			Key: cfg.Freshness.Redis.Key,
		},
	})
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize freshness registry: %w", err))
	}
	app.registry = freshness.New(persister)
	app.registry.Load(ctx)

	size := cfg.Cache.ResponseSize
	if size == 0 {
		size = conditional.DefaultResponseCacheSize
	}
	app.responses, err = conditional.NewResponseCache(size)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to create response cache: %w", err))
	}

	fileStore, err := files.New(ctx, cfg.Files, server.UploadsPath)
	if err != nil {
		return nil, app.abort(fmt.Errorf("failed to initialize file storage: %w", err))
	}

	issuer, err := auth.NewIssuer(cfg.Server.JWTSecret, auth.DefaultTokenTTL)
	if err != nil {
		return nil, app.abort(err)
	}

	app.service = portal.NewService(portalResult.Store, app.registry, fileStore)

	serverCfg := &server.Config{
		MetricsEnabled:  cfg.Metrics.Enabled,
		MetricsEndpoint: cfg.Metrics.Endpoint,
		BodyLimit:       cfg.Server.BodyLimit,
	}
	if local, ok := fileStore.(*files.LocalStore); ok {
		serverCfg.UploadsDir = local.Dir()
	}

	app.server = server.New(server.Deps{
		Service:   app.service,
		Auth:      auth.New(issuer, portalResult.Store),
		Registry:  app.registry,
		Responses: app.responses,
		Ready:     portalResult.Storage.Ping,
	}, serverCfg)

	app.logStartupInfo()
	return app, nil
}

// abort releases what New built before failing with err.
func (a *App) abort(err error) error {
	var closeErrs []error
	if a.registry != nil {
		closeErrs = append(closeErrs, a.registry.Close())
	}
	if a.portal != nil {
		closeErrs = append(closeErrs, a.portal.Close())
	}
	if closeErr := errors.Join(closeErrs...); closeErr != nil {
		return fmt.Errorf("%w (also: close error: %v)", err, closeErr)
	}
	return err
}

// Service returns the portal's business operations.
func (a *App) Service() *portal.Service {
	return a.service
}

// Handler returns the HTTP handler, for tests.
func (a *App) Handler() http.Handler {
	return a.server
}

// Start starts the HTTP server on the given address.
// This is a blocking call that returns when the server stops.
func (a *App) Start(addr string) error {
	if a.server == nil {
		return fmt.Errorf("server is not initialized")
	}
	slog.Info("starting server", "address", addr)
	if err := a.server.Start(addr); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			slog.Info("server stopped gracefully")
			return nil
		}
		return fmt.Errorf("server failed to start: %w", err)
	}
	return nil
}

// Shutdown gracefully tears down app components in dependency order.
// Order:
// 1. HTTP server shutdown via server.Shutdown(ctx), honoring the passed context timeout/cancellation.
// 2. Freshness registry close (drains the pending mirror write).
// 3. Storage close.
//
// Shutdown is idempotent and safe for repeated calls; after the first call, subsequent calls are no-ops.
// It attempts every close step, aggregates failures, and returns a joined error if any step fails.
func (a *App) Shutdown(ctx context.Context) error {
	a.shutdownMu.Lock()
	if a.shutdown {
		a.shutdownMu.Unlock()
		return nil
	}
	a.shutdown = true
	a.shutdownMu.Unlock()

	slog.Info("shutting down application...")

	var errs []error

	// 1. Shutdown HTTP server first (stop accepting new requests)
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			slog.Error("server shutdown error", "error", err)
			errs = append(errs, fmt.Errorf("server shutdown: %w", err))
		}
	}

	// 2. Flush the registry mirror
	if a.registry != nil {
		if err := a.registry.Close(); err != nil {
			slog.Error("freshness registry close error", "error", err)
			errs = append(errs, fmt.Errorf("registry close: %w", err))
		}
	}

	// 3. Close storage
	if a.portal != nil {
		if err := a.portal.Close(); err != nil {
			slog.Error("storage close error", "error", err)
			errs = append(errs, fmt.Errorf("storage close: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	slog.Info("application shutdown complete")
	return nil
}

// logStartupInfo logs the application configuration on startup.
func (a *App) logStartupInfo() {
	cfg := a.config

	if cfg.Metrics.Enabled {
		slog.Info("prometheus metrics enabled", "endpoint", cfg.Metrics.Endpoint)
	} else {
		slog.Info("prometheus metrics disabled")
	}

	slog.Info("storage configured", "type", cfg.Storage.Type)
	slog.Info("freshness registry configured",
		"backend", cfg.Freshness.Backend,
		"keys", a.registry.Len(),
	)
	slog.Info("file storage configured", "backend", cfg.Files.Backend)
}
