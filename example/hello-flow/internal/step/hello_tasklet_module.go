package step

import (
	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/configbinder"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// NewHelloTaskletBuilder creates a jsl.TaskletBuilder for HelloTasklet.
func NewHelloTaskletBuilder() jsl.TaskletBuilder {
	return func(_ *config.Config, properties map[string]interface{}) (port.Tasklet, error) {
		var props HelloTaskletProperties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewHelloTasklet(props), nil
	}
}

// RegisterHelloTaskletBuilder registers the builder under the JSL ref "helloTasklet".
func RegisterHelloTaskletBuilder(jf *support.JobFactory, builder jsl.TaskletBuilder) {
	jf.RegisterTaskletBuilder("helloTasklet", builder)
	logger.Debugf("Builder for HelloTasklet registered with JobFactory. JSL ref: 'helloTasklet'")
}

// Module provides the HelloTasklet builder.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewHelloTaskletBuilder,
		fx.ResultTags(`name:"helloTasklet"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterHelloTaskletBuilder,
		fx.ParamTags(``, `name:"helloTasklet"`),
	)),
)
