package job

import (
	"context"
	"errors"
	"fmt"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// StepHandler runs a step for a JobExecution, taking earlier executions of the same job instance into account.
type StepHandler interface {
	// HandleStep returns the StepExecution that represents step in jobExecution. It is a new
	// execution when the step ran, or the last execution from an earlier run when the step was skipped.
	HandleStep(ctx context.Context, s port.Step, jobExecution *model.JobExecution) (*model.StepExecution, error)
}

// SimpleStepHandler starts a step unless it already completed for the job instance,
// enforcing the step's start limit and restoring its execution context on restart.
type SimpleStepHandler struct {
	repository       repository.JobRepository
	executionContext *model.ExecutionContext
}

var _ StepHandler = (*SimpleStepHandler)(nil)

// NewSimpleStepHandler creates a step handler. New step executions that are not restarts start
// with a copy of executionContext, or an empty context when it is nil.
func NewSimpleStepHandler(repo repository.JobRepository, executionContext *model.ExecutionContext) *SimpleStepHandler {
	return &SimpleStepHandler{repository: repo, executionContext: executionContext}
}

func (h *SimpleStepHandler) HandleStep(ctx context.Context, s port.Step, jobExecution *model.JobExecution) (*model.StepExecution, error) {
	if jobExecution.IsStopping() {
		return nil, step.NewJobInterruptedError("JobExecution interrupted.")
	}

	last, err := h.repository.GetLastStepExecution(ctx, jobExecution.JobInstance, s.Name())
	if err != nil {
		return nil, exception.NewBatchError(s.Name(), "Failed to look up the last step execution", err, false, false)
	}
	if last != nil && last.JobExecutionID() == jobExecution.ID {
		// A step that ran earlier in this same job execution is run again.
		last = nil
	}

	start, err := h.shouldStart(ctx, last, jobExecution, s)
	if err != nil {
		return nil, err
	}
	if !start {
		return last, nil
	}

	current := jobExecution.CreateStepExecution(s.Name())
	if last != nil && last.Status != model.BatchStatusCompleted {
		current.ExecutionContext = last.ExecutionContext.Copy()
		current.ExecutionContext.Remove(model.ExecutedKey)
	} else if h.executionContext != nil {
		current.ExecutionContext = h.executionContext.Copy()
	}

	if err := h.repository.AddStepExecution(ctx, current); err != nil {
		return current, exception.NewBatchError(s.Name(), "Failed to add StepExecution", err, false, false)
	}

	logger.Infof("Job '%s': executing step [%s]", jobExecution.JobName, s.Name())
	if err := s.Execute(ctx, current); err != nil {
		if errors.Is(err, exception.ErrJobInterrupted) {
			jobExecution.SetStatus(model.BatchStatusStopping)
		}
		return current, err
	}
	current.ExecutionContext.Put(model.ExecutedKey, true)

	if err := h.repository.UpdateJobExecutionContext(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': failed to save the job execution context after step [%s]: %v", jobExecution.JobName, s.Name(), err)
	}

	if current.Status == model.BatchStatusStopping || current.Status == model.BatchStatusStopped {
		jobExecution.SetStatus(model.BatchStatusStopping)
		return current, step.NewJobInterruptedError("Job interrupted by step execution")
	}
	return current, nil
}

// shouldStart decides whether s runs again given its last execution from an earlier job execution.
func (h *SimpleStepHandler) shouldStart(ctx context.Context, last *model.StepExecution, jobExecution *model.JobExecution, s port.Step) (bool, error) {
	if last == nil {
		return true, nil
	}

	switch last.Status {
	case model.BatchStatusUnknown:
		return false, exception.NewBatchError(s.Name(),
			"Cannot restart step from UNKNOWN status. The last execution ended with a failure that could not be rolled back, so it may be dangerous to proceed. Manual intervention is probably necessary.",
			exception.ErrJobRestart, false, false)
	case model.BatchStatusCompleted:
		if !s.IsAllowStartIfComplete() {
			logger.Infof("Step already complete or not restartable, so no action to execute: %s", last)
			return false, nil
		}
	case model.BatchStatusAbandoned:
		logger.Infof("Step was abandoned by an earlier run and is not restarted: %s", last)
		return false, nil
	}

	limit := s.StartLimit()
	if limit <= 0 {
		return true, nil
	}
	count, err := h.repository.GetStepExecutionCount(ctx, jobExecution.JobInstance, s.Name())
	if err != nil {
		return false, exception.NewBatchError(s.Name(), "Failed to count step executions", err, false, false)
	}
	if count < limit {
		return true, nil
	}
	return false, exception.NewBatchError(s.Name(),
		fmt.Sprintf("Maximum start limit exceeded for step: %s StartMax: %d", s.Name(), limit),
		exception.ErrStartLimitExceeded, false, false)
}
