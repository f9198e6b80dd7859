package app

import (
	"context"
	"database/sql"
	"log/slog"

	"aggregen/internal/config"
	"aggregen/internal/introspection"
	"aggregen/internal/logging"
	"aggregen/internal/observability"
	"aggregen/internal/platform"
)

func observabilityConfig(cfg *config.Config, otlp config.OTLPConfig) observability.Config {
	return observability.Config{
		ServiceName:      cfg.Observability.ServiceName,
		ServiceVersion:   cfg.Observability.ServiceVersion,
		Environment:      cfg.Observability.Environment,
		TraceSampleRatio: cfg.Observability.TraceSampleRatio,
		OTLPConfig: observability.OTLPExporterConfig{
			Endpoint:          otlp.Endpoint,
			Protocol:          otlp.Protocol,
			Insecure:          otlp.Insecure,
			TLSCertFile:       otlp.TLSCertFile,
			TLSClientCertFile: otlp.TLSClientCertFile,
			TLSClientKeyFile:  otlp.TLSClientKeyFile,
			Headers:           otlp.Headers,
			Timeout:           otlp.Timeout,
			Compression:       otlp.Compression,
			RetryEnabled:      otlp.RetryEnabled,
			RetryMaxAttempts:  otlp.RetryMaxAttempts,
		},
	}
}

// InitLogger builds the process logger and, when log export is enabled, an
// OTLP logger provider feeding it.
func InitLogger(ctx context.Context, cfg *config.Config) (*logging.Logger, *observability.LoggerProvider, error) {
	loggerCfg := logging.Config{
		Level:  cfg.Observability.Logging.Level,
		Format: cfg.Observability.Logging.Format,
	}
	logger := logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	if !cfg.Observability.Logging.ExportsEnabled {
		return logger, nil, nil
	}

	logsConfig := cfg.Observability.GetLogsConfig()
	logger.Debug("initializing OpenTelemetry logging",
		slog.String("otlp_endpoint", logsConfig.Endpoint),
		slog.String("otlp_protocol", logsConfig.Protocol),
		slog.Bool("insecure", logsConfig.Insecure),
	)

	loggerProvider, err := observability.InitLoggerProvider(ctx, observabilityConfig(cfg, logsConfig))
	if err != nil {
		return nil, nil, err
	}

	loggerCfg.LoggerProvider = loggerProvider.Provider()
	logger = logging.NewLogger(loggerCfg)
	slog.SetDefault(logger.Logger)

	return logger, loggerProvider, nil
}

// initMetrics sets up the Prometheus-backed meter provider when a metrics
// file is configured.
func initMetrics(cfg *config.Config, logger *logging.Logger) (*observability.MeterProvider, *observability.BuildMetrics, error) {
	if cfg.Observability.MetricsFile == "" {
		return nil, nil, nil
	}

	meterProvider, err := observability.InitMeterProvider(observabilityConfig(cfg, config.OTLPConfig{}))
	if err != nil {
		return nil, nil, err
	}

	buildMetrics, err := observability.InitBuildMetrics(meterProvider.Provider(), logger.Logger)
	if err != nil {
		_ = meterProvider.Shutdown(context.Background(), logger.Logger)
		return nil, nil, err
	}

	logger.Debug("OpenTelemetry metrics initialized",
		slog.String("metrics_file", cfg.Observability.MetricsFile),
	)
	return meterProvider, buildMetrics, nil
}

func initTracing(ctx context.Context, cfg *config.Config, logger *logging.Logger) (*observability.TracerProvider, error) {
	if !cfg.Observability.TracingEnabled {
		return nil, nil
	}

	tracesConfig := cfg.Observability.GetTracesConfig()
	logger.Debug("initializing OpenTelemetry tracing",
		slog.String("otlp_endpoint", tracesConfig.Endpoint),
		slog.String("otlp_protocol", tracesConfig.Protocol),
		slog.Bool("insecure", tracesConfig.Insecure),
	)

	return observability.InitTracerProvider(ctx, observabilityConfig(cfg, tracesConfig))
}

func connectDB(ctx context.Context, cfg *config.Config, p platform.Platform, logger *logging.Logger, statsMetrics bool) (*sql.DB, interface{ Unregister() error }, error) {
	dsn, err := cfg.Database.DSN(p.Name)
	if err != nil {
		return nil, nil, err
	}

	if cfg.Database.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Database.ConnectTimeout)
		defer cancel()
	}

	db, err := introspection.Open(ctx, p, introspection.OpenOptions{
		DSN:            dsn,
		TracingEnabled: cfg.Observability.TracingEnabled,
		Logger:         logger.Logger,
	})
	if err != nil {
		return nil, nil, err
	}

	if !statsMetrics {
		return db, nil, nil
	}
	statsReg, err := introspection.RegisterStatsMetrics(db, p)
	if err != nil {
		logger.Warn("failed to register DB stats metrics", slog.String("error", err.Error()))
		return db, nil, nil
	}
	return db, statsReg, nil
}
