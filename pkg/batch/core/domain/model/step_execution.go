package model

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// StepExecution is one attempt to run a step, owned by exactly one JobExecution.
type StepExecution struct {
	ID               string
	StepName         string
	JobExecution     *JobExecution
	Status           BatchStatus
	ExitStatus       ExitStatus
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ExecutionContext *ExecutionContext
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	Version          int

	terminateOnly atomic.Bool

	mu                sync.RWMutex
	failureExceptions []error
}

// NewStepExecution creates a step execution in STARTING state.
// jobExecution may be nil for detached executions built by repositories.
func NewStepExecution(id string, jobExecution *JobExecution, stepName string) *StepExecution {
	return &StepExecution{
		ID:               id,
		StepName:         stepName,
		JobExecution:     jobExecution,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusExecuting,
		LastUpdated:      time.Now(),
		ExecutionContext: NewExecutionContext(),
	}
}

// JobExecutionID returns the id of the owning job execution.
func (se *StepExecution) JobExecutionID() string {
	if se.JobExecution == nil {
		return ""
	}
	return se.JobExecution.ID
}

// JobInstance returns the job instance the step execution belongs to.
func (se *StepExecution) JobInstance() *JobInstance {
	if se.JobExecution == nil {
		return nil
	}
	return se.JobExecution.JobInstance
}

// MarkAsStarted records the start time and moves the status to STARTED.
func (se *StepExecution) MarkAsStarted() {
	now := time.Now()
	se.StartTime = &now
	se.Status = BatchStatusStarted
	se.LastUpdated = now
}

// MarkAsEnded records the end time.
func (se *StepExecution) MarkAsEnded() {
	now := time.Now()
	se.EndTime = &now
	se.LastUpdated = now
}

// UpgradeStatus moves the status with BatchStatus.UpgradeTo so that it never regresses.
func (se *StepExecution) UpgradeStatus(status BatchStatus) {
	se.Status = se.Status.UpgradeTo(status)
	se.LastUpdated = time.Now()
}

// SetTerminateOnly flags the execution so that the step stops at its next interruption check.
func (se *StepExecution) SetTerminateOnly() {
	se.terminateOnly.Store(true)
	logger.Debugf("StepExecution (ID: %s, step: %s) flagged terminate-only.", se.ID, se.StepName)
}

// IsTerminateOnly reports whether a stop was requested for this execution.
func (se *StepExecution) IsTerminateOnly() bool {
	return se.terminateOnly.Load()
}

// AddFailureException records a failure cause.
func (se *StepExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	se.mu.Lock()
	defer se.mu.Unlock()
	se.failureExceptions = append(se.failureExceptions, err)
	se.LastUpdated = time.Now()
}

// FailureExceptions returns the recorded failures.
func (se *StepExecution) FailureExceptions() []error {
	se.mu.RLock()
	defer se.mu.RUnlock()
	return append([]error(nil), se.failureExceptions...)
}

// RestoreFailureMessages replaces the failure list with errors rebuilt from persisted messages.
func (se *StepExecution) RestoreFailureMessages(messages []string) {
	se.mu.Lock()
	defer se.mu.Unlock()
	se.failureExceptions = se.failureExceptions[:0]
	for _, msg := range messages {
		se.failureExceptions = append(se.failureExceptions, fmt.Errorf("%s", msg))
	}
}

func (se *StepExecution) String() string {
	return fmt.Sprintf("StepExecution: id=%s, name=%s, status=%s, exitStatus=%s", se.ID, se.StepName, se.Status, se.ExitStatus)
}
