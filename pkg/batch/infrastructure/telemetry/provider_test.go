package telemetry_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/telemetry"
)

func TestNewResource_CarriesServiceName(t *testing.T) {
	res := telemetry.NewResource(config.TelemetryConfig{ServiceName: "billing"})

	v, ok := res.Set().Value(attribute.Key("service.name"))
	require.True(t, ok)
	assert.Equal(t, "billing", v.AsString())
}

func TestNewProviders_Exporters(t *testing.T) {
	for _, exporter := range []string{config.ExporterNone, config.ExporterOTLPGRPC, config.ExporterOTLPHTTP} {
		t.Run(exporter, func(t *testing.T) {
			ctx := context.Background()
			cfg := config.TelemetryConfig{ServiceName: "svc", Exporter: exporter, Endpoint: "localhost:4317", Insecure: true}

			tp, err := telemetry.NewTracerProvider(ctx, cfg)
			require.NoError(t, err)
			mp, err := telemetry.NewMeterProvider(ctx, cfg)
			require.NoError(t, err)

			_, span := tp.Tracer("test").Start(ctx, "probe")
			assert.True(t, span.SpanContext().IsValid())
			span.End()

			shutdownCtx, cancel := context.WithCancel(ctx)
			cancel()
			// Exporters never connected; shutdown only has to return.
			_ = tp.Shutdown(shutdownCtx)
			_ = mp.Shutdown(shutdownCtx)
		})
	}
}

func TestNewProviders_UnsupportedExporter(t *testing.T) {
	cfg := config.TelemetryConfig{Exporter: "zipkin"}

	_, err := telemetry.NewTracerProvider(context.Background(), cfg)
	assert.Error(t, err)
	_, err = telemetry.NewMeterProvider(context.Background(), cfg)
	assert.Error(t, err)
}

func TestModule(t *testing.T) {
	tests := []struct {
		name        string
		enabled     bool
		wantTracer  interface{}
		wantMetrics interface{}
	}{
		{"disabled", false, tracenoop.TracerProvider{}, metricnoop.MeterProvider{}},
		{"enabled", true, &sdktrace.TracerProvider{}, &sdkmetric.MeterProvider{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig()
			cfg.Surfin.Telemetry.Tracing.Enabled = tt.enabled
			cfg.Surfin.Telemetry.Metrics.Enabled = tt.enabled

			var (
				tp trace.TracerProvider
				mp metric.MeterProvider
			)
			app := fxtest.New(t, fx.NopLogger, fx.Supply(cfg), telemetry.Module, fx.Populate(&tp, &mp))
			app.RequireStart()
			app.RequireStop()

			assert.IsType(t, tt.wantTracer, tp)
			assert.IsType(t, tt.wantMetrics, mp)
		})
	}
}
