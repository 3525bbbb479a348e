package metrics

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const (
	// JobListenerName is the reference name of the metrics job listener.
	JobListenerName = "metricsJobListener"
	// StepListenerName is the reference name of the metrics step listener.
	StepListenerName = "metricsStepListener"
)

// NewMetricsJobListenerBuilder creates a ComponentBuilder for MetricsJobListener.
func NewMetricsJobListenerBuilder(recorder metrics.MetricRecorder) jsl.JobExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]interface{},
	) (port.JobExecutionListener, error) {
		return NewMetricsJobListener(recorder), nil
	}
}

// NewMetricsStepListenerBuilder creates a ComponentBuilder for MetricsStepListener.
func NewMetricsStepListenerBuilder(recorder metrics.MetricRecorder) jsl.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		_ map[string]interface{},
	) (port.StepExecutionListener, error) {
		return NewMetricsStepListener(recorder), nil
	}
}

// AllMetricsListenerBuilders is a struct to receive all metrics listener builders from Fx.
type AllMetricsListenerBuilders struct {
	fx.In
	Config              *config.Config
	Recorder            metrics.MetricRecorder
	JobListenerBuilder  jsl.JobExecutionListenerBuilder  `name:"metricsJobListener"`
	StepListenerBuilder jsl.StepExecutionListenerBuilder `name:"metricsStepListener"`
}

// RegisterAllMetricsListeners registers the metrics listener builders with the JobFactory.
// When metrics are enabled, the listeners are applied to every job and step and the
// recorder observes every flow transition and split.
func RegisterAllMetricsListeners(jf *support.JobFactory, builders AllMetricsListenerBuilders) {
	jf.RegisterJobListenerBuilder(JobListenerName, builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder(StepListenerName, builders.StepListenerBuilder)
	if !builders.Config.Surfin.Telemetry.Metrics.Enabled {
		logger.Debugf("Metrics are disabled; metrics listeners are available by reference only.")
		return
	}
	jf.AddDefaultJobListener(JobListenerName, nil)
	jf.AddDefaultStepListener(StepListenerName, nil)
	jf.AddTransitionObserver(NewFlowTransitionObserver(builders.Recorder))
	jf.AddSplitObserver(NewSplitObserver(builders.Recorder))
	logger.Debugf("All metrics listeners registered with JobFactory.")
}

// Module aggregates all listener components provided by this package.
var Module = fx.Options(
	// Job Listener
	fx.Provide(fx.Annotate(NewMetricsJobListenerBuilder, fx.ResultTags(`name:"metricsJobListener"`))),
	// Step Listener
	fx.Provide(fx.Annotate(NewMetricsStepListenerBuilder, fx.ResultTags(`name:"metricsStepListener"`))),

	// Register all builders
	fx.Invoke(RegisterAllMetricsListeners),
)
