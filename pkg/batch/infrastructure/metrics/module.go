package metrics

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// DecorateMetricRecorder replaces the recorder provided by core/metrics when metrics are
// enabled: Prometheus always, OpenTelemetry as well when an exporter is configured, behind an
// AsyncMetricRecorder when metrics_async_buffer_size is positive.
func DecorateMetricRecorder(lc fx.Lifecycle, cfg *config.Config, base metrics.MetricRecorder, registry *prometheus.Registry, provider metric.MeterProvider) (metrics.MetricRecorder, error) {
	telemetry := cfg.Surfin.Telemetry
	if !telemetry.Metrics.Enabled {
		return base, nil
	}

	recorders := MultiRecorder{NewPrometheusRecorder(telemetry.Metrics.Namespace, registry)}
	if telemetry.Exporter != "" && telemetry.Exporter != config.ExporterNone {
		otelRecorder, err := NewOtelRecorder(provider)
		if err != nil {
			return nil, err
		}
		recorders = append(recorders, otelRecorder)
	}

	var recorder metrics.MetricRecorder = recorders
	if size := cfg.Surfin.Batch.MetricsAsyncBufferSize; size > 0 {
		async := NewAsyncMetricRecorder(size, recorders)
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				async.Close()
				return nil
			},
		})
		recorder = async
	}
	logger.Debugf("MetricRecorder decorated with %d backend(s).", len(recorders))
	return recorder, nil
}

// DecorateTracer replaces the no-op tracer with an OpenTelemetry tracer when tracing is enabled.
func DecorateTracer(cfg *config.Config, base metrics.Tracer, provider trace.TracerProvider) metrics.Tracer {
	if !cfg.Surfin.Telemetry.Tracing.Enabled {
		return base
	}
	logger.Debugf("Tracer decorated with OpenTelemetry.")
	return NewOpenTelemetryTracer(provider)
}

// Module provides the Prometheus registry and decorates the MetricRecorder and Tracer of
// core/metrics. It requires the telemetry module for the OpenTelemetry providers.
var Module = fx.Options(
	fx.Provide(NewRegistry),
	fx.Decorate(DecorateMetricRecorder),
	fx.Decorate(DecorateTracer),
)
