package support

import (
	"go.uber.org/fx"

	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// JobDefinitionsParams collects the JSL documents contributed to the "jobDefinitions" group.
type JobDefinitionsParams struct {
	fx.In
	Definitions []jsl.JSLDefinitionBytes `group:"jobDefinitions"`
}

// RegisterJobDefinitions loads every contributed JSL document into the JobFactory.
func RegisterJobDefinitions(jf *JobFactory, p JobDefinitionsParams) error {
	for _, data := range p.Definitions {
		def, err := jf.LoadJobDefinition(data)
		if err != nil {
			return err
		}
		logger.Debugf("JobFactory: job '%s' (%s) is available.", def.ID, def.Name)
	}
	return nil
}

// Module defines Fx options related to JobFactory.
var Module = fx.Options(
	fx.Provide(NewJobFactory),
	fx.Invoke(RegisterJobDefinitions),
)
