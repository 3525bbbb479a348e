package test

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// NoOpTasklet finishes immediately.
type NoOpTasklet struct{}

// Execute implements port.Tasklet.
func (NoOpTasklet) Execute(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	return port.RepeatStatusFinished, nil
}

// NoOpTaskletBuilder builds a NoOpTasklet. It matches jsl.TaskletBuilder.
func NoOpTaskletBuilder(_ *config.Config, _ map[string]interface{}) (port.Tasklet, error) {
	return NoOpTasklet{}, nil
}
