// Package step provides the tasklet of the hello-flow example.
package step

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// HelloTaskletProperties are the JSL properties of HelloTasklet.
type HelloTaskletProperties struct {
	Message string `yaml:"message"`
}

// HelloTasklet logs a greeting and records it in the job execution context.
type HelloTasklet struct {
	message string
}

// NewHelloTasklet creates a new instance of HelloTasklet.
func NewHelloTasklet(props HelloTaskletProperties) *HelloTasklet {
	if props.Message == "" {
		props.Message = "Hello, World!"
	}
	return &HelloTasklet{message: props.Message}
}

// Execute implements port.Tasklet.
func (t *HelloTasklet) Execute(ctx context.Context, stepExecution *model.StepExecution) (port.RepeatStatus, error) {
	logger.Infof("HelloTasklet: %s", t.message)
	stepExecution.WriteCount++
	if je := stepExecution.JobExecution; je != nil {
		je.ExecutionContext.Put("greeting", t.message)
	}
	return port.RepeatStatusFinished, nil
}

var _ port.Tasklet = (*HelloTasklet)(nil)
