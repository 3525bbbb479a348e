package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
)

// ScriptedStep is a port.Step whose outcome is fixed in advance.
type ScriptedStep struct {
	StepName     string
	ExitCode     string
	Err          error
	AllowRestart bool
	Limit        int
	OnExecute    func(ctx context.Context, se *model.StepExecution)

	mu    sync.Mutex
	calls int
}

var _ port.Step = (*ScriptedStep)(nil)

// NewScriptedStep creates a step that completes with exitCode.
func NewScriptedStep(name, exitCode string) *ScriptedStep {
	return &ScriptedStep{StepName: name, ExitCode: exitCode}
}

// Name implements port.Step.
func (s *ScriptedStep) Name() string { return s.StepName }

// Execute marks the step execution COMPLETED with the scripted exit code, or returns Err.
func (s *ScriptedStep) Execute(ctx context.Context, se *model.StepExecution) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	if s.OnExecute != nil {
		s.OnExecute(ctx, se)
	}
	if s.Err != nil {
		se.Status = model.BatchStatusFailed
		se.ExitStatus = model.ExitStatusFailed
		return s.Err
	}
	se.Status = model.BatchStatusCompleted
	se.ExitStatus = model.NewExitStatus(s.ExitCode)
	return nil
}

// IsAllowStartIfComplete implements port.Step.
func (s *ScriptedStep) IsAllowStartIfComplete() bool { return s.AllowRestart }

// StartLimit implements port.Step.
func (s *ScriptedStep) StartLimit() int { return s.Limit }

// Calls returns how often Execute ran.
func (s *ScriptedStep) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// StubFlowExecutor is a flow.Executor that runs steps directly against an in-memory JobExecution
// and records what the flow asked of it.
type StubFlowExecutor struct {
	JobExecution *model.JobExecution
	Restart      bool
	AbandonErr   error

	shared        *stubRecord
	stepExecution *model.StepExecution
}

type stubRecord struct {
	mu        sync.Mutex
	executed  []string
	exitCodes []string
	closed    []model.FlowExecution
	statuses  []model.FlowExecutionStatus
	abandons  int
}

var (
	_ flow.Executor = (*StubFlowExecutor)(nil)
	_ flow.Brancher = (*StubFlowExecutor)(nil)
)

// NewStubFlowExecutor creates a StubFlowExecutor for a fresh job execution.
func NewStubFlowExecutor() *StubFlowExecutor {
	return &StubFlowExecutor{JobExecution: NewTestJobExecution("testJob"), shared: &stubRecord{}}
}

// ExecuteStep creates a step execution, runs step and returns its exit code.
func (e *StubFlowExecutor) ExecuteStep(ctx context.Context, step port.Step) (string, error) {
	se := e.JobExecution.CreateStepExecution(step.Name())
	e.stepExecution = se
	e.shared.mu.Lock()
	e.shared.executed = append(e.shared.executed, step.Name())
	e.shared.mu.Unlock()
	if err := step.Execute(ctx, se); err != nil {
		return "", err
	}
	return se.ExitStatus.ExitCode, nil
}

// GetJobExecution implements flow.Executor.
func (e *StubFlowExecutor) GetJobExecution() *model.JobExecution { return e.JobExecution }

// GetStepExecution implements flow.Executor.
func (e *StubFlowExecutor) GetStepExecution() *model.StepExecution { return e.stepExecution }

// SetStepExecution replaces the current step execution.
func (e *StubFlowExecutor) SetStepExecution(se *model.StepExecution) { e.stepExecution = se }

// IsRestart implements flow.Executor.
func (e *StubFlowExecutor) IsRestart() bool { return e.Restart }

// AbandonStepExecution counts the call.
func (e *StubFlowExecutor) AbandonStepExecution(ctx context.Context) error {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	e.shared.abandons++
	return e.AbandonErr
}

// AddExitStatus records code and combines it into the job exit status.
func (e *StubFlowExecutor) AddExitStatus(code string) {
	e.shared.mu.Lock()
	e.shared.exitCodes = append(e.shared.exitCodes, code)
	e.shared.mu.Unlock()
	e.JobExecution.SetExitStatus(e.JobExecution.GetExitStatus().And(model.NewExitStatus(code)))
}

// UpdateJobExecutionStatus records status.
func (e *StubFlowExecutor) UpdateJobExecutionStatus(status model.FlowExecutionStatus) {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	e.shared.statuses = append(e.shared.statuses, status)
	e.JobExecution.SetStatus(status.ToBatchStatus())
}

// Close records result.
func (e *StubFlowExecutor) Close(result model.FlowExecution) {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	e.shared.closed = append(e.shared.closed, result)
}

// Branch returns an executor sharing the job execution and the records of e.
func (e *StubFlowExecutor) Branch() flow.Executor {
	return &StubFlowExecutor{JobExecution: e.JobExecution, Restart: e.Restart, AbandonErr: e.AbandonErr, shared: e.shared}
}

// Executed returns the names of the executed steps in execution order.
func (e *StubFlowExecutor) Executed() []string {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	return append([]string(nil), e.shared.executed...)
}

// ExitCodes returns the exit codes added to the job.
func (e *StubFlowExecutor) ExitCodes() []string {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	return append([]string(nil), e.shared.exitCodes...)
}

// Closed returns the flow executions passed to Close.
func (e *StubFlowExecutor) Closed() []model.FlowExecution {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	return append([]model.FlowExecution(nil), e.shared.closed...)
}

// Abandons returns how often AbandonStepExecution was called.
func (e *StubFlowExecutor) Abandons() int {
	e.shared.mu.Lock()
	defer e.shared.mu.Unlock()
	return e.shared.abandons
}
