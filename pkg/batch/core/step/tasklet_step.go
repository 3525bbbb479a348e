package step

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// TaskletStep is a step for Tasklet-oriented processing. It calls the tasklet until it reports
// RepeatStatusFinished, checking for interruption before every call and saving the
// execution context after every continuable call.
type TaskletStep struct {
	*AbstractStep
	tasklet port.Tasklet
}

// NewTaskletStep creates a new TaskletStep instance.
// A tasklet that also implements port.Stream is registered as a stream of the step.
func NewTaskletStep(name string, tasklet port.Tasklet, repo repository.StepExecution, opts ...Option) *TaskletStep {
	s := &TaskletStep{tasklet: tasklet}
	s.AbstractStep = NewAbstractStep(name, s, repo, opts...)
	if stream, ok := tasklet.(port.Stream); ok {
		s.RegisterStream(stream)
	}
	return s
}

// Tasklet returns the wrapped tasklet.
func (s *TaskletStep) Tasklet() port.Tasklet {
	return s.tasklet
}

// DoExecute implements Body.
func (s *TaskletStep) DoExecute(ctx context.Context, stepExecution *model.StepExecution) error {
	stream, isStream := s.tasklet.(port.Stream)
	for iteration := 1; ; iteration++ {
		if err := s.interruptionPolicy.CheckInterrupted(ctx, stepExecution); err != nil {
			return err
		}

		status, err := s.tasklet.Execute(ctx, stepExecution)
		if err != nil {
			return exception.NewBatchError(s.name, "Tasklet execution failed", err, false, false)
		}
		stepExecution.CommitCount++

		if isStream {
			if err := stream.Update(ctx, stepExecution.ExecutionContext); err != nil {
				return exception.NewBatchError(s.name, "Failed to update stream state", err, false, false)
			}
		}
		if status == port.RepeatStatusFinished {
			logger.Debugf("TaskletStep '%s' finished after %d iteration(s).", s.name, iteration)
			return nil
		}
		if err := s.repository.UpdateStepExecutionContext(ctx, stepExecution); err != nil {
			return exception.NewBatchError(s.name, "Failed to save ExecutionContext between tasklet iterations", err, false, false)
		}
	}
}

var _ port.Step = (*TaskletStep)(nil)
