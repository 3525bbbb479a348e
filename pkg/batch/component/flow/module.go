package flow

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

// ConditionalDeciderName is the reference name of ConditionalDecider.
const ConditionalDeciderName = "conditionalDecider"

// NewConditionalDeciderBuilder creates a jsl.DeciderBuilder for ConditionalDecider.
func NewConditionalDeciderBuilder(resolver expression.Resolver) jsl.DeciderBuilder {
	return func(_ *config.Config, properties map[string]interface{}) (port.Decider, error) {
		var props Properties
		if err := configbinder.BindProperties(properties, &props); err != nil {
			return nil, err
		}
		return NewConditionalDecider(ConditionalDeciderName, props, resolver), nil
	}
}

// RegisterConditionalDeciderBuilder registers the builder with the JobFactory.
func RegisterConditionalDeciderBuilder(jf *support.JobFactory, builder jsl.DeciderBuilder) {
	jf.RegisterDeciderBuilder(ConditionalDeciderName, builder)
	logger.Debugf("Component '%s' was registered with JobFactory.", ConditionalDeciderName)
}

// Module provides the DeciderBuilder for ConditionalDecider.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewConditionalDeciderBuilder,
		fx.ResultTags(`name:"conditionalDecider"`),
	)),
	fx.Invoke(fx.Annotate(
		RegisterConditionalDeciderBuilder,
		fx.ParamTags(``, `name:"conditionalDecider"`),
	)),
)
