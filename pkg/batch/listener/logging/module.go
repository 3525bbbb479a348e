package logging

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const (
	// JobListenerName is the reference name of the logging job listener.
	JobListenerName = "loggingJobListener"
	// StepListenerName is the reference name of the logging step listener.
	StepListenerName = "loggingStepListener"
)

// NewLoggingJobListenerBuilder creates a ComponentBuilder for LoggingJobListener.
func NewLoggingJobListenerBuilder() jsl.JobExecutionListenerBuilder {
	return func(
		cfg *config.Config,
		properties map[string]interface{},
	) (port.JobExecutionListener, error) {
		var props Properties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewLoggingJobListener(props, cfg.Surfin.Security.MaskedParameterKeys), nil
	}
}

// NewLoggingStepListenerBuilder creates a ComponentBuilder for LoggingStepListener.
func NewLoggingStepListenerBuilder() jsl.StepExecutionListenerBuilder {
	return func(
		_ *config.Config,
		properties map[string]interface{},
	) (port.StepExecutionListener, error) {
		var props Properties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewLoggingStepListener(props), nil
	}
}

// AllListenerBuilders is a struct to receive all listener builders from Fx.
type AllListenerBuilders struct {
	fx.In
	JobListenerBuilder  jsl.JobExecutionListenerBuilder  `name:"loggingJobListener"`
	StepListenerBuilder jsl.StepExecutionListenerBuilder `name:"loggingStepListener"`
}

// RegisterAllListeners registers the logging listener builders with the JobFactory and
// applies both listeners to every job and step.
func RegisterAllListeners(jf *support.JobFactory, builders AllListenerBuilders) {
	jf.RegisterJobListenerBuilder(JobListenerName, builders.JobListenerBuilder)
	jf.RegisterStepExecutionListenerBuilder(StepListenerName, builders.StepListenerBuilder)
	jf.AddDefaultJobListener(JobListenerName, nil)
	jf.AddDefaultStepListener(StepListenerName, nil)
	logger.Debugf("All logging listeners registered with JobFactory.")
}

// Module aggregates all listener components provided by this package.
var Module = fx.Options(
	// Job Listener
	fx.Provide(fx.Annotate(NewLoggingJobListenerBuilder, fx.ResultTags(`name:"loggingJobListener"`))),
	// Step Listener
	fx.Provide(fx.Annotate(NewLoggingStepListenerBuilder, fx.ResultTags(`name:"loggingStepListener"`))),

	// Register all builders
	fx.Invoke(RegisterAllListeners),
)
