// Package app wires configuration, telemetry, and the database connection
// around a generation pass.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"aggregen/internal/aggregate"
	"aggregen/internal/buildpass"
	"aggregen/internal/config"
	"aggregen/internal/introspection"
	"aggregen/internal/logging"
	"aggregen/internal/observability"
	"aggregen/internal/platform"
)

// App owns runtime resources for one aggregen invocation.
type App struct {
	cfg    *config.Config
	logger *logging.Logger

	loggerProvider *observability.LoggerProvider
	meterProvider  *observability.MeterProvider
	tracerProvider *observability.TracerProvider
	buildMetrics   *observability.BuildMetrics

	policy aggregate.AmbiguityPolicy
	db     *sql.DB

	cleanup cleanupStack

	stateMu     sync.Mutex
	initialized bool

	shutdownOnce sync.Once
}

// New creates an App lifecycle wrapper.
func New(cfg *config.Config, logger *logging.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	policy, err := aggregate.ParseAmbiguityPolicy(cfg.Aggregate.AmbiguousRelationships)
	if err != nil {
		return nil, err
	}
	return &App{cfg: cfg, logger: logger, policy: policy}, nil
}

// AttachLoggerProvider registers an optional logger provider for shutdown cleanup.
func (a *App) AttachLoggerProvider(provider *observability.LoggerProvider) {
	a.stateMu.Lock()
	defer a.stateMu.Unlock()
	a.loggerProvider = provider
}

// Run executes one generation pass. Init must be called first.
func (a *App) Run(ctx context.Context, dryRun bool) (*buildpass.Result, error) {
	a.stateMu.Lock()
	initialized := a.initialized
	a.stateMu.Unlock()
	if !initialized {
		return nil, fmt.Errorf("app is not initialized")
	}

	passCfg := a.passConfig(dryRun)
	result, err := buildpass.Run(ctx, passCfg)

	if a.meterProvider != nil && a.cfg.Observability.MetricsFile != "" {
		if writeErr := a.meterProvider.WriteTextfile(a.cfg.Observability.MetricsFile); writeErr != nil {
			a.logger.Warn("failed to write metrics file", "error", writeErr.Error())
		}
	}
	return result, err
}

func (a *App) passConfig(dryRun bool) buildpass.Config {
	cfg := a.cfg
	passCfg := buildpass.Config{
		Source:            cfg.Source.Kind,
		SchemaFile:        cfg.Source.SchemaFile,
		PlatformName:      cfg.Platform.Name,
		IdentifierQuoting: cfg.Platform.IdentifierQuoting,
		TablePrefix:       cfg.Platform.TablePrefix,
		Filters:           cfg.SchemaFilters,
		Naming:            cfg.Naming,
		AmbiguityPolicy:   a.policy,
		Package:           cfg.Output.Package,
		OutputDir:         cfg.Output.Dir,
		DDLFile:           cfg.Output.DDLFile,
		DryRun:            dryRun || cfg.Output.DryRun,
		Logger:            a.logger,
		Metrics:           a.buildMetrics,
	}
	if a.db != nil {
		passCfg.Queryer = a.db
		passCfg.PlatformName = config.EffectivePlatformName(cfg.Platform.Name)
		database, _ := cfg.Database.EffectiveDatabaseName(passCfg.PlatformName)
		passCfg.Target = introspection.Target{Database: database, Schema: cfg.Database.Schema}
	}
	return passCfg
}

func (a *App) platform() (platform.Platform, error) {
	return platform.Lookup(config.EffectivePlatformName(a.cfg.Platform.Name))
}
