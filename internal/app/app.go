// Package app initializes and holds long-lived gateway services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/meting-gateway/internal/api"
	"github.com/JakeFAU/meting-gateway/internal/config"
	"github.com/JakeFAU/meting-gateway/internal/enrich"
	"github.com/JakeFAU/meting-gateway/internal/logging"
	"github.com/JakeFAU/meting-gateway/internal/metrics"
	"github.com/JakeFAU/meting-gateway/internal/policy/ratelimit"
	"github.com/JakeFAU/meting-gateway/internal/probe"
	"github.com/JakeFAU/meting-gateway/internal/provider"
	"github.com/JakeFAU/meting-gateway/internal/provider/memory"
	"github.com/JakeFAU/meting-gateway/internal/provider/upstream"
	"github.com/JakeFAU/meting-gateway/internal/resolver"
	"github.com/JakeFAU/meting-gateway/internal/telemetry"
)

// Version is reported on traces.
var Version = "dev"

// App holds the shared, long-lived services for the gateway. It is built
// once per command invocation and closed by a Cobra hook.
type App struct {
	cfg            config.Config
	logger         *zap.Logger
	registry       *provider.Registry
	enricher       *enrich.Orchestrator
	prober         *probe.Engine
	tracerShutdown func(context.Context) error
}

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the root logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Registry returns the provider registry.
func (a *App) Registry() *provider.Registry { return a.registry }

// Enricher returns the enrichment orchestrator.
func (a *App) Enricher() *enrich.Orchestrator { return a.enricher }

// Prober returns the media probe engine.
func (a *App) Prober() *probe.Engine { return a.prober }

// APIServer builds the HTTP surface over the app's services.
func (a *App) APIServer() *api.Server {
	return api.NewServer(a.registry, a.enricher, a.cfg.Gateway, a.logger.Named("api"))
}

// New creates and initializes an App from cfg. It fails fast if a critical
// service cannot be built.
func New(ctx context.Context, cfg config.Config) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("logger init failed: %w", err)
	}
	zap.ReplaceGlobals(logger)
	logger.Info("Initializing application services...")

	tp, err := telemetry.InitTracerProvider(ctx, "meting-gateway", Version)
	if err != nil {
		return nil, fmt.Errorf("tracer init failed: %w", err)
	}
	metrics.Init()

	registry, err := newRegistry(cfg, logger)
	if err != nil {
		return nil, err
	}

	res := resolver.New(logger.Named("resolver"))
	a := &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		enricher: enrich.New(res, logger.Named("enrich")),
		prober: probe.New(probe.Config{
			Timeout:   cfg.ProbeTimeout(),
			MaxHops:   cfg.Probe.MaxHops,
			UserAgent: cfg.Probe.UserAgent,
		}, logger.Named("probe")),
		tracerShutdown: tp.Shutdown,
	}
	logger.Info("Application services initialized successfully.")
	return a, nil
}

// newRegistry routes every server name to the configured upstream, or to an
// empty in-memory catalog when no upstream is set.
func newRegistry(cfg config.Config, logger *zap.Logger) (*provider.Registry, error) {
	registry := provider.NewRegistry()
	if cfg.Upstream.BaseURL == "" {
		logger.Warn("No upstream configured; serving from an empty in-memory catalog.")
		registry.SetFallback(memory.NewCatalog().Factory())
		return registry, nil
	}

	limiter := ratelimit.New(ratelimit.Config{
		DefaultRPS:   cfg.Upstream.RPS,
		DefaultBurst: cfg.Upstream.Burst,
	})
	up, err := upstream.New(upstream.Config{
		BaseURL:   cfg.Upstream.BaseURL,
		Timeout:   cfg.UpstreamTimeout(),
		UserAgent: cfg.Upstream.UserAgent,
	}, limiter, logger.Named("upstream"))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize upstream: %w", err)
	}
	logger.Info("Using upstream provider", zap.String("base_url", cfg.Upstream.BaseURL))
	registry.SetFallback(up.Factory())
	return registry, nil
}

// Close gracefully shuts down all services in the App container.
func (a *App) Close(ctx context.Context) {
	a.logger.Info("Shutting down application services...")
	if a.tracerShutdown != nil {
		if err := a.tracerShutdown(ctx); err != nil {
			a.logger.Warn("tracer shutdown failed", zap.Error(err))
		}
	}
	// Best effort; stderr sync fails on some platforms.
	_ = a.logger.Sync()
}
