package generic

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/expression"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/configbinder"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Reference names of the generic tasklets.
const (
	ExecutionContextWriterTaskletName = "executionContextWriterTasklet"
	FailingTaskletName                = "failingTasklet"
)

// NewExecutionContextWriterTaskletBuilder creates a jsl.TaskletBuilder for ExecutionContextWriterTasklet.
func NewExecutionContextWriterTaskletBuilder(resolver expression.Resolver) jsl.TaskletBuilder {
	return func(_ *config.Config, properties map[string]interface{}) (port.Tasklet, error) {
		return NewExecutionContextWriterTasklet(ExecutionContextWriterTaskletName, properties, resolver)
	}
}

// NewFailingTaskletBuilder creates a jsl.TaskletBuilder for FailingTasklet.
func NewFailingTaskletBuilder() jsl.TaskletBuilder {
	return func(_ *config.Config, properties map[string]interface{}) (port.Tasklet, error) {
		var props FailingTaskletProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewFailingTasklet(FailingTaskletName, props), nil
	}
}

// RegisterExecutionContextWriterTaskletBuilder registers the builder with the JobFactory.
func RegisterExecutionContextWriterTaskletBuilder(jf *support.JobFactory, builder jsl.TaskletBuilder) {
	jf.RegisterTaskletBuilder(ExecutionContextWriterTaskletName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", ExecutionContextWriterTaskletName)
}

// RegisterFailingTaskletBuilder registers the builder with the JobFactory.
func RegisterFailingTaskletBuilder(jf *support.JobFactory, builder jsl.TaskletBuilder) {
	jf.RegisterTaskletBuilder(FailingTaskletName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", FailingTaskletName)
}

// Module provides TaskletBuilders for generic Tasklets.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewExecutionContextWriterTaskletBuilder,
		fx.ResultTags(`name:"executionContextWriterTasklet"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterExecutionContextWriterTaskletBuilder,
		fx.ParamTags(``, `name:"executionContextWriterTasklet"`),
	)),
	fx.Provide(fx.Annotate(
		NewFailingTaskletBuilder,
		fx.ResultTags(`name:"failingTasklet"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterFailingTaskletBuilder,
		fx.ParamTags(``, `name:"failingTasklet"`),
	)),
)
