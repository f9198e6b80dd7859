package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// BuildStats summarizes one generation pass.
type BuildStats struct {
	Source    string
	Tables    int
	Bindings  int
	Artifacts int
	Columns   int
	Duration  time.Duration
	Success   bool
}

// BuildMetrics holds counters for aggregate generation passes.
type BuildMetrics struct {
	buildCounter    metric.Int64Counter
	errorCounter    metric.Int64Counter
	tableCounter    metric.Int64Counter
	bindingCounter  metric.Int64Counter
	artifactCounter metric.Int64Counter
	columnCounter   metric.Int64Counter
	durationHist    metric.Float64Histogram
	lastSuccessUnix atomic.Int64
}

// InitBuildMetrics creates the build instruments on the given provider, or
// the global one when mp is nil.
func InitBuildMetrics(mp metric.MeterProvider, logger *slog.Logger) (*BuildMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	meter := mp.Meter("aggregen")

	m := &BuildMetrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.buildCounter, "aggregen.build.total", "Total number of generation passes"},
		{&m.errorCounter, "aggregen.build.errors.total", "Total number of failed generation passes"},
		{&m.tableCounter, "aggregen.tables.processed.total", "Parent tables processed for aggregate columns"},
		{&m.bindingCounter, "aggregen.bindings.total", "Aggregate column declarations bound to a child table"},
		{&m.artifactCounter, "aggregen.artifacts.total", "Generated methods emitted"},
		{&m.columnCounter, "aggregen.columns.added.total", "Target columns added to the schema"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("failed to create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	durationHist, err := meter.Float64Histogram(
		"aggregen.build.duration",
		metric.WithDescription("Duration of generation passes in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create build duration histogram: %w", err)
	}
	m.durationHist = durationHist

	lastSuccessGauge, err := meter.Int64ObservableGauge(
		"aggregen.build.last_success_unix",
		metric.WithDescription("Unix timestamp of the last successful generation pass"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create last success gauge: %w", err)
	}
	_, err = meter.RegisterCallback(
		func(ctx context.Context, observer metric.Observer) error {
			if value := m.lastSuccessUnix.Load(); value > 0 {
				observer.ObserveInt64(lastSuccessGauge, value)
			}
			return nil
		},
		lastSuccessGauge,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register last success gauge callback: %w", err)
	}

	logger.Debug("build metrics initialized")
	return m, nil
}

// RecordBuild records the outcome of a generation pass.
func (m *BuildMetrics) RecordBuild(ctx context.Context, stats BuildStats) {
	if m == nil {
		return
	}
	source := metric.WithAttributes(attribute.String("source", stats.Source))
	m.buildCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", stats.Source),
		attribute.Bool("success", stats.Success),
	))
	m.durationHist.Record(ctx, float64(stats.Duration.Milliseconds()), source)

	if !stats.Success {
		m.errorCounter.Add(ctx, 1, source)
		return
	}

	m.tableCounter.Add(ctx, int64(stats.Tables), source)
	m.bindingCounter.Add(ctx, int64(stats.Bindings), source)
	m.artifactCounter.Add(ctx, int64(stats.Artifacts), source)
	m.columnCounter.Add(ctx, int64(stats.Columns), source)
	m.lastSuccessUnix.Store(time.Now().Unix())
}
