package runner

import (
	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
)

// SimpleJobRunnerParams defines dependencies for SimpleJobRunner.
type SimpleJobRunnerParams struct {
	fx.In
	Config        *config.Config
	JobRepository repository.JobRepository
	Tracer        metrics.Tracer
}

// NewJobRunner provides the concrete JobRunner implementation (SimpleJobRunner).
func NewJobRunner(p SimpleJobRunnerParams) JobRunner {
	return NewSimpleJobRunner(p.JobRepository, p.Tracer, p.Config.Surfin.Security.MaskedParameterKeys)
}

// Module provides the JobRunner implementation.
var Module = fx.Options(
	fx.Provide(NewJobRunner),
)
