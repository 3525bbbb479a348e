// Package exception provides the error types shared by the flow engine and a registry that maps
// error names used in configuration to concrete Go errors.
package exception

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"reflect"
	"runtime"
	"strings"
	"sync"
)

// Well-known error names. They are registered in the error registry and may be referenced from configuration.
const (
	JobInterruptedException           = "JobInterruptedException"
	NoSuchJobException                = "NoSuchJobException"
	JobRestartException               = "JobRestartException"
	StartLimitExceededException       = "StartLimitExceededException"
	UnexpectedJobExecutionException   = "UnexpectedJobExecutionException"
	JobExecutionAlreadyRunning        = "JobExecutionAlreadyRunningException"
	OptimisticLockingFailureException = "OptimisticLockingFailureException"
)

var (
	// ErrJobInterrupted marks an execution that was stopped on request. Step bodies report it and the
	// step lifecycle maps it to STOPPED.
	ErrJobInterrupted = errors.New(JobInterruptedException)
	// ErrNoSuchJob marks a failure caused by a job that does not exist.
	ErrNoSuchJob = errors.New(NoSuchJobException)
	// ErrJobRestart marks a step or job that cannot be restarted.
	ErrJobRestart = errors.New(JobRestartException)
	// ErrStartLimitExceeded marks a step that has been started more often than allowed.
	ErrStartLimitExceeded = errors.New(StartLimitExceededException)
	// ErrUnexpectedJobExecution marks a job failure that does not come from a step.
	ErrUnexpectedJobExecution = errors.New(UnexpectedJobExecutionException)
	// ErrJobExecutionAlreadyRunning marks an attempt to launch an instance that is still running.
	ErrJobExecutionAlreadyRunning = errors.New(JobExecutionAlreadyRunning)
	// ErrOptimisticLockingFailure marks a persisted record that was modified concurrently.
	ErrOptimisticLockingFailure = errors.New(OptimisticLockingFailureException)
)

var (
	errorRegistry = make(map[string]error)
	registryMutex sync.RWMutex
)

// RegisterErrorType registers an error under a name that configuration can refer to.
// It panics if name is empty or prototype is nil.
func RegisterErrorType(name string, prototype error) {
	registryMutex.Lock()
	defer registryMutex.Unlock()

	if name == "" {
		panic("Error type name cannot be empty")
	}
	if prototype == nil {
		panic(fmt.Sprintf("Cannot register nil prototype for name: %s", name))
	}
	errorRegistry[name] = prototype
}

// IsErrorTypeRegistered reports whether name is present in the registry.
func IsErrorTypeRegistered(name string) bool {
	registryMutex.RLock()
	defer registryMutex.RUnlock()
	_, ok := errorRegistry[name]
	return ok
}

// BatchError is the error type raised by framework components. It records the module where
// the error occurred, a message, the wrapped cause and the stack at creation time.
type BatchError struct {
	// Module indicates where the error occurred (e.g. "step", "flow", "repository").
	Module string
	// Message is a concise description of the error.
	Message string
	// OriginalErr is the wrapped cause.
	OriginalErr error
	isRetryable bool
	isSkippable bool
	// StackTrace is captured for debugging.
	StackTrace string
}

func captureStack() string {
	buf := make([]byte, 2048)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// NewBatchError creates a BatchError.
func NewBatchError(module, message string, originalErr error, isSkippable, isRetryable bool) *BatchError {
	return &BatchError{
		Module:      module,
		Message:     message,
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewBatchErrorf creates a BatchError from a format string.
// Trailing arguments are inspected from the end in the order
// [originalErr error], [isRetryable bool], [isSkippable bool]; the rest feed fmt.Sprintf.
//
//	NewBatchErrorf("step", "tasklet %s failed", name, err)
func NewBatchErrorf(module, format string, a ...interface{}) *BatchError {
	var originalErr error
	isRetryable := false
	isSkippable := false
	args := a

	if len(args) > 0 {
		if err, ok := args[len(args)-1].(error); ok {
			originalErr = err
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isRetryable = b
			args = args[:len(args)-1]
		}
	}
	if len(args) > 0 {
		if b, ok := args[len(args)-1].(bool); ok {
			isSkippable = b
			args = args[:len(args)-1]
		}
	}

	return &BatchError{
		Module:      module,
		Message:     fmt.Sprintf(format, args...),
		OriginalErr: originalErr,
		isRetryable: isRetryable,
		isSkippable: isSkippable,
		StackTrace:  captureStack(),
	}
}

// NewOptimisticLockingFailureException creates a BatchError wrapping ErrOptimisticLockingFailure.
func NewOptimisticLockingFailureException(module, message string, originalErr error) *BatchError {
	errToWrap := ErrOptimisticLockingFailure
	if originalErr != nil {
		errToWrap = errors.Join(ErrOptimisticLockingFailure, originalErr)
	}
	return NewBatchError(module, message, errToWrap, false, false)
}

// Error implements the error interface.
func (e *BatchError) Error() string {
	if e.OriginalErr != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Module, e.Message, e.OriginalErr)
	}
	return fmt.Sprintf("[%s] %s", e.Module, e.Message)
}

// Unwrap returns the wrapped cause.
func (e *BatchError) Unwrap() error {
	return e.OriginalErr
}

// IsRetryable reports whether the error may be retried.
func (e *BatchError) IsRetryable() bool {
	return e.isRetryable
}

// IsSkippable reports whether the failing item may be skipped.
func (e *BatchError) IsSkippable() bool {
	return e.isSkippable
}

// IsBatchError reports whether err is, or wraps, a BatchError.
func IsBatchError(err error) bool {
	var be *BatchError
	return errors.As(err, &be)
}

// IsOptimisticLockingFailure reports whether err wraps ErrOptimisticLockingFailure.
func IsOptimisticLockingFailure(err error) bool {
	return err != nil && errors.Is(err, ErrOptimisticLockingFailure)
}

// IsErrorOfType reports whether err matches errorTypeName. The name is resolved, in order, against
// the registry (errors.Is), the messages along the wrap chain, and the dynamic type names along the chain.
func IsErrorOfType(err error, errorTypeName string) bool {
	if err == nil {
		return false
	}

	registryMutex.RLock()
	target, ok := errorRegistry[errorTypeName]
	registryMutex.RUnlock()
	if ok && errors.Is(err, target) {
		return true
	}

	for current := err; current != nil; current = errors.Unwrap(current) {
		if strings.Contains(current.Error(), errorTypeName) {
			return true
		}
		if t := reflect.TypeOf(current); t != nil {
			if t.String() == errorTypeName || (t.Kind() == reflect.Ptr && t.Elem().String() == errorTypeName) {
				return true
			}
		}
	}
	return false
}

// ExtractErrorMessage returns the Message of a BatchError, or err.Error() for other errors.
func ExtractErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	if be, ok := err.(*BatchError); ok {
		return be.Message
	}
	return err.Error()
}

// FromPanic converts a recovered panic value into an error.
func FromPanic(module string, recovered interface{}) error {
	if err, ok := recovered.(error); ok {
		return NewBatchError(module, "panic recovered", err, false, false)
	}
	return NewBatchError(module, fmt.Sprintf("panic recovered: %v", recovered), nil, false, false)
}

func init() {
	RegisterErrorType(JobInterruptedException, ErrJobInterrupted)
	RegisterErrorType(NoSuchJobException, ErrNoSuchJob)
	RegisterErrorType(JobRestartException, ErrJobRestart)
	RegisterErrorType(StartLimitExceededException, ErrStartLimitExceeded)
	RegisterErrorType(UnexpectedJobExecutionException, ErrUnexpectedJobExecution)
	RegisterErrorType(JobExecutionAlreadyRunning, ErrJobExecutionAlreadyRunning)
	RegisterErrorType(OptimisticLockingFailureException, ErrOptimisticLockingFailure)

	RegisterErrorType("context.DeadlineExceeded", context.DeadlineExceeded)
	RegisterErrorType("context.Canceled", context.Canceled)
	RegisterErrorType("sql.ErrNoRows", sql.ErrNoRows)
}
