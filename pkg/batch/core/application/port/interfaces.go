// Package port defines the core interfaces (ports) of the batch flow engine.
// These interfaces separate the flow state machine from the components it drives,
// allowing steps, listeners and deciders to be implemented and tested independently.
package port

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// ErrStepNotFound is returned by a StepLocator that does not know the requested step.
var ErrStepNotFound = errors.New("step not found")

// Step is a single unit of work executed by a job flow.
type Step interface {
	// Name returns the logical name of the step. It is unique within a job.
	//
	// Returns:
	//   string: The logical name of the step.
	Name() string
	// Execute runs the step for the given StepExecution. The implementation must set the
	// status and exit status of stepExecution before returning.
	//
	// Parameters:
	//   ctx: The context for the operation. Cancellation is treated as an interruption.
	//   stepExecution: The StepExecution created for this run.
	//
	// Returns:
	//   error: An error only when the step could not be run at all. Failures of the step body
	//          are recorded on stepExecution instead.
	Execute(ctx context.Context, stepExecution *model.StepExecution) error
	// IsAllowStartIfComplete reports whether a step that already completed for the job instance
	// is executed again on restart.
	//
	// Returns:
	//   bool: true if a completed step should be re-executed.
	IsAllowStartIfComplete() bool
	// StartLimit returns how many times the step may be started for one job instance.
	//
	// Returns:
	//   int: The start limit. Values <= 0 mean unlimited.
	StartLimit() int
}

// StepLocator looks up steps by name. Jobs and composite steps implement it.
type StepLocator interface {
	// StepNames returns the names of all steps reachable from the locator.
	//
	// Returns:
	//   []string: The step names.
	StepNames() []string
	// GetStep returns the step with the given name.
	//
	// Parameters:
	//   name: The step name.
	//
	// Returns:
	//   Step: The step.
	//   error: ErrStepNotFound if no such step exists.
	GetStep(name string) (Step, error)
}

// Job is an executable batch job.
type Job interface {
	// Name returns the logical name of the job.
	//
	// Returns:
	//   string: The job name.
	Name() string
	// Execute runs the job for the given JobExecution. Failures are recorded on the execution.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The JobExecution to drive.
	//
	// Returns:
	//   error: An error if the execution could not be persisted or started.
	Execute(ctx context.Context, jobExecution *model.JobExecution) error
	// IsRestartable reports whether a failed or stopped instance of the job may be restarted.
	//
	// Returns:
	//   bool: true if restarts are allowed.
	IsRestartable() bool
}

// RepeatStatus tells a TaskletStep whether the tasklet has more work to do.
type RepeatStatus int

const (
	// RepeatStatusFinished ends the tasklet loop.
	RepeatStatusFinished RepeatStatus = iota
	// RepeatStatusContinuable asks the step to call the tasklet again.
	RepeatStatusContinuable
)

// Tasklet is the business logic of a tasklet-oriented step.
type Tasklet interface {
	// Execute performs one unit of work.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   stepExecution: The current StepExecution. Its ExecutionContext holds checkpoint state.
	//
	// Returns:
	//   RepeatStatus: RepeatStatusContinuable to be called again, RepeatStatusFinished when done.
	//   error: An error if the work failed.
	Execute(ctx context.Context, stepExecution *model.StepExecution) (RepeatStatus, error)
}

// Stream is implemented by components that hold resources or checkpoint state across a step run.
type Stream interface {
	// Open acquires resources and restores state from ec.
	Open(ctx context.Context, ec *model.ExecutionContext) error
	// Update writes the current checkpoint state into ec.
	Update(ctx context.Context, ec *model.ExecutionContext) error
	// Close releases resources.
	Close(ctx context.Context) error
}

// Decider chooses the outcome of a decision state from the state of the job.
type Decider interface {
	// Decide returns the status used to select the next transition.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   jobExecution: The current JobExecution.
	//   stepExecution: The most recent StepExecution, or nil if no step has run yet.
	//
	// Returns:
	//   model.FlowExecutionStatus: The decided status.
	//   error: An error if the decision could not be made.
	Decide(ctx context.Context, jobExecution *model.JobExecution, stepExecution *model.StepExecution) (model.FlowExecutionStatus, error)
}

// StepExecutionListener receives step lifecycle callbacks.
type StepExecutionListener interface {
	// BeforeStep is called after the step execution is marked STARTED and before the step body runs.
	BeforeStep(ctx context.Context, stepExecution *model.StepExecution)
	// AfterStep is called after the step body, whatever its outcome. A non-zero return value is
	// combined into the step's exit status with ExitStatus.And.
	AfterStep(ctx context.Context, stepExecution *model.StepExecution) model.ExitStatus
}

// JobExecutionListener receives job lifecycle callbacks.
type JobExecutionListener interface {
	// BeforeJob is called once the job execution is STARTED and before its flow runs.
	BeforeJob(ctx context.Context, jobExecution *model.JobExecution)
	// AfterJob is called after the flow, whatever its outcome, before the final update is persisted.
	AfterJob(ctx context.Context, jobExecution *model.JobExecution)
}

// Ordered is implemented by listeners that must run at a fixed position.
// Lower values run earlier in before-callbacks and later in after-callbacks.
type Ordered interface {
	Order() int
}

type contextKey string

// StepExecutionKey is the context key under which the running StepExecution is stored.
const StepExecutionKey contextKey = "stepExecution"

// GetContextWithStepExecution stores a StepExecution in the context.
//
// Parameters:
//
//	ctx: The parent context.
//	se: The StepExecution to store.
//
// Returns:
//
//	context.Context: A new context carrying se.
func GetContextWithStepExecution(ctx context.Context, se *model.StepExecution) context.Context {
	return context.WithValue(ctx, StepExecutionKey, se)
}

// GetStepExecutionFromContext retrieves the StepExecution stored by GetContextWithStepExecution, or nil.
//
// Parameters:
//
//	ctx: The context for the operation.
//
// Returns:
//
//	*model.StepExecution: The stored StepExecution, or nil if none.
func GetStepExecutionFromContext(ctx context.Context) *model.StepExecution {
	if se, ok := ctx.Value(StepExecutionKey).(*model.StepExecution); ok {
		return se
	}
	return nil
}
