// Package listener aggregates the listener modules and provides listeners used by launchers.
package listener

import (
	"context"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// JobCompletionSignaler is a JobExecutionListener that closes a channel
// when a job completes, signaling its completion to external components.
type JobCompletionSignaler struct {
	done chan struct{}
	once sync.Once

	mu        sync.Mutex
	execution *model.JobExecution
}

// NewJobCompletionSignaler creates a new instance of JobCompletionSignaler.
func NewJobCompletionSignaler() *JobCompletionSignaler {
	return &JobCompletionSignaler{done: make(chan struct{})}
}

// Done is closed after the first job execution the signaler is attached to finishes.
func (l *JobCompletionSignaler) Done() <-chan struct{} {
	return l.done
}

// Execution returns the finished job execution, or nil while the job is running.
func (l *JobCompletionSignaler) Execution() *model.JobExecution {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.execution
}

// Wait blocks until the job finishes or ctx is done.
func (l *JobCompletionSignaler) Wait(ctx context.Context) (*model.JobExecution, error) {
	select {
	case <-l.done:
		return l.Execution(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// BeforeJob does nothing.
func (l *JobCompletionSignaler) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

// AfterJob records jobExecution and closes the done channel. Later calls are ignored.
func (l *JobCompletionSignaler) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.once.Do(func() {
		logger.Infof("JobCompletionSignaler: Job '%s' (ID: %s) completed. Closing done channel.", jobExecution.JobName, jobExecution.ID)
		l.mu.Lock()
		l.execution = jobExecution
		l.mu.Unlock()
		close(l.done)
	})
}

// Verify that JobCompletionSignaler implements the port.JobExecutionListener interface.
var _ port.JobExecutionListener = (*JobCompletionSignaler)(nil)
