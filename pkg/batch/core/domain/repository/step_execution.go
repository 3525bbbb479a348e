package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

var ErrStepExecutionNotFound = errors.New("step execution not found")

func init() {
	exception.RegisterErrorType("ErrStepExecutionNotFound", ErrStepExecutionNotFound)
}

// StepExecution stores step executions. Every step execution must belong to a job
// execution the repository already knows.
type StepExecution interface {
	AddStepExecution(ctx context.Context, stepExecution *model.StepExecution) error

	// UpdateStepExecution fails with an optimistic locking error when the stored version
	// differs from stepExecution.Version.
	UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error

	// UpdateStepExecutionContext persists only the ExecutionContext of the StepExecution.
	UpdateStepExecutionContext(ctx context.Context, stepExecution *model.StepExecution) error

	// GetLastStepExecution returns the most recent execution of stepName across all executions
	// of the instance, or nil when the step never ran.
	GetLastStepExecution(ctx context.Context, jobInstance *model.JobInstance, stepName string) (*model.StepExecution, error)

	// GetStepExecutionCount returns how often stepName was started for the instance.
	GetStepExecutionCount(ctx context.Context, jobInstance *model.JobInstance, stepName string) (int, error)

	FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error)
}
