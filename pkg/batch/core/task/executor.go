// Package task provides the executors that run split branches: synchronously in the caller's
// goroutine, in fresh goroutines, or on a fixed pool of workers.
package task

import (
	"errors"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// ErrTaskRejected is returned when an executor refuses a task.
var ErrTaskRejected = errors.New("task rejected")

// Task is a unit of work submitted to a TaskExecutor.
type Task func()

// TaskExecutor runs tasks. Execute returns an error wrapping ErrTaskRejected when the task cannot be accepted.
// Accepted tasks run exactly once.
type TaskExecutor interface {
	Execute(task Task) error
}

// PendingRunner is implemented by executors that queue tasks. RunPending runs one queued task
// in the calling goroutine and reports false when nothing was queued.
type PendingRunner interface {
	RunPending() bool
}

// SyncTaskExecutor runs each task immediately in the calling goroutine.
type SyncTaskExecutor struct{}

// NewSyncTaskExecutor creates a SyncTaskExecutor.
func NewSyncTaskExecutor() *SyncTaskExecutor {
	return &SyncTaskExecutor{}
}

// Execute runs task before returning.
func (e *SyncTaskExecutor) Execute(task Task) error {
	if task == nil {
		return rejected("nil task")
	}
	task()
	return nil
}

func rejected(reason string) error {
	logger.Warnf("Task rejected: %s", reason)
	return exception.NewBatchError("task", reason, ErrTaskRejected, false, false)
}

var _ TaskExecutor = (*SyncTaskExecutor)(nil)
