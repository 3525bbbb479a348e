// Package flow implements the flow state machine: states, exit-code driven transitions
// and the algorithm that walks them until an end transition is reached.
package flow

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// Executor is the context a flow runs in. It executes steps on behalf of states and
// carries the job-level bookkeeping that states read and update.
type Executor interface {
	// ExecuteStep runs step and returns the exit code of the resulting StepExecution.
	//
	// Parameters:
	//   ctx: The context for the operation.
	//   step: The step to run.
	//
	// Returns:
	//   string: The exit code of the step execution.
	//   error: An interruption or other error that must stop the flow.
	ExecuteStep(ctx context.Context, step port.Step) (string, error)
	// GetJobExecution returns the JobExecution the flow belongs to.
	GetJobExecution() *model.JobExecution
	// GetStepExecution returns the most recent StepExecution run by this executor, or nil.
	GetStepExecution() *model.StepExecution
	// IsRestart reports whether the current run resumes an earlier, interrupted run.
	IsRestart() bool
	// AbandonStepExecution marks a left-over StepExecution of the previous run as ABANDONED.
	AbandonStepExecution(ctx context.Context) error
	// AddExitStatus combines code into the exit status of the JobExecution.
	AddExitStatus(code string)
	// UpdateJobExecutionStatus sets the BatchStatus of the JobExecution from a flow status.
	UpdateJobExecutionStatus(status model.FlowExecutionStatus)
	// Close is called once when a flow finishes, with the state and status it ended in.
	Close(result model.FlowExecution)
}

// Brancher is implemented by executors that can hand out an independent executor
// for a parallel branch. The branch shares the JobExecution but tracks its own
// current StepExecution, starting with none.
type Brancher interface {
	Branch() Executor
}

// branchOf returns the executor a split branch should use.
func branchOf(executor Executor) Executor {
	if b, ok := executor.(Brancher); ok {
		return b.Branch()
	}
	return executor
}
