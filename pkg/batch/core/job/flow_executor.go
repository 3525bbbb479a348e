// Package job drives flows on behalf of a JobExecution: the flow executor that runs steps
// for flow states, the step handler that decides whether a step runs on restart, and the
// FlowJob and FlowStep built on them.
package job

import (
	"context"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// executorState is shared by a FlowExecutor and every branch created from it.
type executorState struct {
	repository   repository.JobRepository
	handler      StepHandler
	jobExecution *model.JobExecution

	mu         sync.Mutex
	exitStatus model.ExitStatus

	// abandonMu serialises abandoning across branches.
	abandonMu sync.Mutex
}

// FlowExecutor implements flow.Executor against a JobExecution and a JobRepository.
// Branches created for split states share the JobExecution and the accumulated exit status
// but track their own most recent StepExecution, starting with none.
type FlowExecutor struct {
	shared *executorState

	mu            sync.RWMutex
	stepExecution *model.StepExecution
}

var (
	_ flow.Executor = (*FlowExecutor)(nil)
	_ flow.Brancher = (*FlowExecutor)(nil)
)

// NewFlowExecutor creates a flow executor for jobExecution.
//
// Parameters:
//
//	repo: The repository step executions are counted in and abandoned through.
//	handler: Runs the steps of step states.
//	jobExecution: The JobExecution the flow belongs to.
//
// Returns:
//
//	*FlowExecutor: The executor, with an EXECUTING exit status.
func NewFlowExecutor(repo repository.JobRepository, handler StepHandler, jobExecution *model.JobExecution) *FlowExecutor {
	return &FlowExecutor{
		shared: &executorState{
			repository:   repo,
			handler:      handler,
			jobExecution: jobExecution,
			exitStatus:   model.ExitStatusExecuting,
		},
	}
}

// Branch returns an executor for a parallel branch of the current flow.
func (e *FlowExecutor) Branch() flow.Executor {
	return &FlowExecutor{shared: e.shared}
}

// ExecuteStep runs step through the step handler and returns the exit code of the resulting
// StepExecution. A step that already ran for this job instance is flagged with model.RestartKey.
// An interruption is returned when the step execution was flagged terminate-only.
func (e *FlowExecutor) ExecuteStep(ctx context.Context, s port.Step) (string, error) {
	isRerun := e.isStepRestart(ctx, s)
	se, err := e.shared.handler.HandleStep(ctx, s, e.shared.jobExecution)
	e.setStepExecution(se)
	if err != nil {
		return "", err
	}
	if se == nil {
		return model.ExitCodeCompleted, nil
	}
	if se.IsTerminateOnly() {
		return "", &step.JobInterruptedError{Message: "Step requested termination: " + se.String(), Status: se.Status}
	}
	if isRerun {
		se.ExecutionContext.Put(model.RestartKey, true)
	}
	return se.ExitStatus.ExitCode, nil
}

func (e *FlowExecutor) isStepRestart(ctx context.Context, s port.Step) bool {
	count, err := e.shared.repository.GetStepExecutionCount(ctx, e.shared.jobExecution.JobInstance, s.Name())
	if err != nil {
		logger.Warnf("Job '%s': failed to count executions of step '%s': %v", e.shared.jobExecution.JobName, s.Name(), err)
		return false
	}
	return count > 0
}

func (e *FlowExecutor) GetJobExecution() *model.JobExecution {
	return e.shared.jobExecution
}

func (e *FlowExecutor) GetStepExecution() *model.StepExecution {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.stepExecution
}

func (e *FlowExecutor) setStepExecution(se *model.StepExecution) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stepExecution = se
}

// IsRestart reports whether the flow is at the beginning of a restart: no step ran yet in this
// job execution, or the most recent step execution was abandoned.
func (e *FlowExecutor) IsRestart() bool {
	if se := e.GetStepExecution(); se != nil && se.Status == model.BatchStatusAbandoned {
		return true
	}
	return len(e.shared.jobExecution.StepExecutions()) == 0
}

// AbandonStepExecution marks the most recent step execution ABANDONED when it ended worse than STOPPING,
// so that a restart does not replay it.
func (e *FlowExecutor) AbandonStepExecution(ctx context.Context) error {
	e.shared.abandonMu.Lock()
	defer e.shared.abandonMu.Unlock()

	se := e.GetStepExecution()
	if se == nil || se.Status == model.BatchStatusAbandoned || !se.Status.IsGreaterThan(model.BatchStatusStopping) {
		return nil
	}
	se.UpgradeStatus(model.BatchStatusAbandoned)
	logger.Debugf("Job '%s': abandoning step execution %s.", e.shared.jobExecution.JobName, se.ID)
	return e.shared.repository.UpdateStepExecution(ctx, se)
}

// AddExitStatus combines code into the accumulated exit status.
func (e *FlowExecutor) AddExitStatus(code string) {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	e.shared.exitStatus = e.shared.exitStatus.And(model.NewExitStatus(code))
}

// ExitStatus returns the accumulated exit status.
func (e *FlowExecutor) ExitStatus() model.ExitStatus {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	return e.shared.exitStatus
}

// UpdateJobExecutionStatus sets the job status from the final flow status and combines
// the status name into the job exit status.
func (e *FlowExecutor) UpdateJobExecutionStatus(status model.FlowExecutionStatus) {
	e.shared.mu.Lock()
	e.shared.exitStatus = e.shared.exitStatus.And(model.NewExitStatus(status.Name))
	exitStatus := e.shared.exitStatus
	e.shared.mu.Unlock()

	je := e.shared.jobExecution
	je.SetStatus(status.ToBatchStatus())
	je.SetExitStatus(exitStatus)
}

func (e *FlowExecutor) Close(result model.FlowExecution) {
	logger.Debugf("Job '%s': flow closed at %s.", e.shared.jobExecution.JobName, result)
}
