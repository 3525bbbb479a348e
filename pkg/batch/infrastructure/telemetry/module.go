package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// NewTracerProviderFromConfig provides the TracerProvider used by the batch tracer.
// It is a no-op provider unless tracing is enabled; the SDK provider is shut down on stop,
// flushing buffered spans.
func NewTracerProviderFromConfig(lc fx.Lifecycle, cfg *config.Config) (trace.TracerProvider, error) {
	telemetry := cfg.Surfin.Telemetry
	if !telemetry.Tracing.Enabled {
		return tracenoop.NewTracerProvider(), nil
	}
	tp, err := NewTracerProvider(context.Background(), telemetry)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Telemetry: shutting down tracer provider.")
			return tp.Shutdown(ctx)
		},
	})
	return tp, nil
}

// NewMeterProviderFromConfig provides the MeterProvider used by the OpenTelemetry recorder.
func NewMeterProviderFromConfig(lc fx.Lifecycle, cfg *config.Config) (metric.MeterProvider, error) {
	telemetry := cfg.Surfin.Telemetry
	if !telemetry.Metrics.Enabled {
		return metricnoop.NewMeterProvider(), nil
	}
	mp, err := NewMeterProvider(context.Background(), telemetry)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			logger.Debugf("Telemetry: shutting down meter provider.")
			return mp.Shutdown(ctx)
		},
	})
	return mp, nil
}

// Module provides the OpenTelemetry trace.TracerProvider and metric.MeterProvider.
var Module = fx.Options(
	fx.Provide(NewTracerProviderFromConfig),
	fx.Provide(NewMeterProviderFromConfig),
)
