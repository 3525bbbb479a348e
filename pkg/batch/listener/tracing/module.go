package tracing

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const (
	// JobListenerName is the reference name of the tracing job listener.
	JobListenerName = "tracingJobListener"
	// StepListenerName is the reference name of the tracing step listener.
	StepListenerName = "tracingStepListener"
)

// NewTracingJobListenerBuilder creates a ComponentBuilder for TracingJobListener.
func NewTracingJobListenerBuilder(tracer metrics.Tracer) jsl.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]interface{},
	) (port.JobExecutionListener, error) {
		return NewTracingJobListener(tracer), nil
	}
}

// NewTracingStepListenerBuilder creates a ComponentBuilder for TracingStepListener.
func NewTracingStepListenerBuilder(tracer metrics.Tracer) jsl.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]interface{},
	) (port.StepExecutionListener, error) {
		return NewTracingStepListener(tracer), nil
	}
}

// AllTracingListenerBuilders is a struct to receive all tracing listener builders from Fx.
type AllTracingListenerBuilders struct {
	fx.In
	Config              *config.Config
	JobListenerBuilder  jsl.JobExecutionListenerBuilder  `name:"tracingJobListener"`
	StepListenerBuilder jsl.StepExecutionListenerBuilder `name:"tracingStepListener"`
}

// RegisterAllTracingListeners registers all tracing listener builders with the JobFactory.
// When tracing is enabled, the listeners are applied to every job and step.
func RegisterAllTracingListeners(jf *support.JobFactory, builders AllTracingListenerBuilders) {
	jf.RegisterJobListenerBuilder(JobListenerName, builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder(StepListenerName, builders.StepListenerBuilder)
	if !builders.Config.Surfin.Telemetry.Tracing.Enabled {
		return
	}
	jf.AddDefaultJobListener(JobListenerName, nil)
	jf.AddDefaultStepListener(StepListenerName, nil)
	logger.Debugf("All tracing listeners registered with JobFactory.")
}

// Module provides tracing-related components.
var Module = fx.Options(
	// The Tracer itself is provided by core/metrics and decorated by infrastructure/metrics.
	fx.Provide(fx.Annotate(NewTracingJobListenerBuilder, fx.ResultTags(`name:"tracingJobListener"`))),
	fx.Provide(fx.Annotate(NewTracingStepListenerBuilder, fx.ResultTags(`name:"tracingStepListener"`))),

	fx.Invoke(RegisterAllTracingListeners),
)
