package step

import (
	"context"
	"errors"
	"fmt"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// JobInterruptedError reports that a step or job was stopped on request.
// Status is the BatchStatus the interrupted execution ends with (STOPPED unless set otherwise).
type JobInterruptedError struct {
	Message string
	Status  model.BatchStatus
}

// NewJobInterruptedError creates an interruption ending in STOPPED.
func NewJobInterruptedError(format string, args ...interface{}) *JobInterruptedError {
	return &JobInterruptedError{Message: fmt.Sprintf(format, args...), Status: model.BatchStatusStopped}
}

func (e *JobInterruptedError) Error() string {
	return fmt.Sprintf("%s: %s", exception.JobInterruptedException, e.Message)
}

// Is makes errors.Is(err, exception.ErrJobInterrupted) hold for every JobInterruptedError.
func (e *JobInterruptedError) Is(target error) bool {
	return target == exception.ErrJobInterrupted
}

// InterruptedStatus returns the status an interrupted execution ends with, and whether err is an interruption.
// A bare exception.ErrJobInterrupted (or a wrap of it) maps to STOPPED.
func InterruptedStatus(err error) (model.BatchStatus, bool) {
	var jie *JobInterruptedError
	if errors.As(err, &jie) {
		return jie.Status, true
	}
	if errors.Is(err, exception.ErrJobInterrupted) {
		return model.BatchStatusStopped, true
	}
	return model.BatchStatusUnknown, false
}

// InterruptionPolicy decides whether a running step has to stop.
type InterruptionPolicy interface {
	// CheckInterrupted returns a *JobInterruptedError when the step must stop, nil otherwise.
	CheckInterrupted(ctx context.Context, stepExecution *model.StepExecution) error
}

// InterruptionPolicyFunc adapts a function to InterruptionPolicy.
type InterruptionPolicyFunc func(ctx context.Context, stepExecution *model.StepExecution) error

func (f InterruptionPolicyFunc) CheckInterrupted(ctx context.Context, stepExecution *model.StepExecution) error {
	return f(ctx, stepExecution)
}

// DefaultInterruptionPolicy interrupts a step whose execution is flagged terminate-only
// or whose context has been cancelled.
type DefaultInterruptionPolicy struct{}

func (DefaultInterruptionPolicy) CheckInterrupted(ctx context.Context, stepExecution *model.StepExecution) error {
	if stepExecution != nil && stepExecution.IsTerminateOnly() {
		return NewJobInterruptedError("step '%s' was flagged terminate-only", stepExecution.StepName)
	}
	if err := ctx.Err(); err != nil {
		return &JobInterruptedError{Message: fmt.Sprintf("context done: %v", err), Status: model.BatchStatusStopped}
	}
	return nil
}

var _ InterruptionPolicy = DefaultInterruptionPolicy{}
