package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// ErrJobExecutionNotFound is the error returned when a JobExecution is not found.
var ErrJobExecutionNotFound = errors.New("job execution not found")

// ErrJobInstanceAlreadyComplete is returned when a launch targets an instance that already completed.
var ErrJobInstanceAlreadyComplete = errors.New("job instance already complete")

func init() {
	exception.RegisterErrorType("ErrJobExecutionNotFound", ErrJobExecutionNotFound)
	exception.RegisterErrorType("JobInstanceAlreadyCompleteException", ErrJobInstanceAlreadyComplete)
}

type JobExecution interface {
	// CreateJobExecution finds or creates the JobInstance for jobName and params and persists a
	// new JobExecution for it. On restart the new execution starts with the ExecutionContext of
	// the previous one.
	CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// UpdateJobExecution updates the state of an existing JobExecution.
	UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error

	// UpdateJobExecutionContext persists only the ExecutionContext of the JobExecution.
	UpdateJobExecutionContext(ctx context.Context, jobExecution *model.JobExecution) error

	// GetLastJobExecution returns the most recent execution of the instance identified by jobName
	// and params, or nil when there is none.
	GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error)

	// FindJobExecutionByID finds a JobExecution by its ID, including its StepExecutions.
	FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error)

	// FindJobExecutionsByJobInstance finds all JobExecutions of the instance, newest first.
	FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error)
}

// CheckRelaunch returns an error if a new execution must not be created for an instance with
// the given executions: one of them is still running, one ended in an unknown state, or one
// already completed.
func CheckRelaunch(jobName string, executions []*model.JobExecution) error {
	for _, je := range executions {
		status := je.GetStatus()
		switch {
		case status.IsRunning():
			return exception.NewBatchError(jobName, "a job execution for this job is already running: "+je.ID, exception.ErrJobExecutionAlreadyRunning, false, false)
		case status == model.BatchStatusUnknown:
			return exception.NewBatchError(jobName, "cannot restart job from UNKNOWN status; the last execution ended with a failure that could not be rolled back", exception.ErrJobRestart, false, false)
		case status == model.BatchStatusCompleted || status == model.BatchStatusAbandoned:
			return exception.NewBatchError(jobName, "a job instance already exists and is complete for these parameters", ErrJobInstanceAlreadyComplete, false, false)
		}
	}
	return nil
}
