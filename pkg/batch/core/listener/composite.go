package listener

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// CompositeStepExecutionListener fans step callbacks out to its listeners.
type CompositeStepExecutionListener struct {
	listeners OrderedComposite[port.StepExecutionListener]
}

var _ port.StepExecutionListener = (*CompositeStepExecutionListener)(nil)

// NewCompositeStepExecutionListener creates a composite holding listeners.
func NewCompositeStepExecutionListener(listeners ...port.StepExecutionListener) *CompositeStepExecutionListener {
	c := &CompositeStepExecutionListener{}
	c.listeners.SetItems(listeners)
	return c
}

// Register adds a listener.
func (c *CompositeStepExecutionListener) Register(l port.StepExecutionListener) {
	c.listeners.Add(l)
}

// BeforeStep calls the listeners in order. A panic reaches the step, which fails.
func (c *CompositeStepExecutionListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	for _, l := range c.listeners.Forward() {
		l.BeforeStep(ctx, stepExecution)
	}
}

// AfterStep calls the listeners in reverse order and combines their exit statuses with And.
// The result is the zero ExitStatus when no listener returned one. A panicking listener is
// logged and skipped.
func (c *CompositeStepExecutionListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) model.ExitStatus {
	var combined model.ExitStatus
	for _, l := range c.listeners.Reverse() {
		func() {
			defer recoverListener("AfterStep", stepExecution.StepName)
			status := l.AfterStep(ctx, stepExecution)
			if combined.IsZero() {
				combined = status
			} else {
				combined = combined.And(status)
			}
		}()
	}
	return combined
}

// CompositeJobExecutionListener fans job callbacks out to its listeners.
type CompositeJobExecutionListener struct {
	listeners OrderedComposite[port.JobExecutionListener]
}

var _ port.JobExecutionListener = (*CompositeJobExecutionListener)(nil)

// NewCompositeJobExecutionListener creates a composite holding listeners.
func NewCompositeJobExecutionListener(listeners ...port.JobExecutionListener) *CompositeJobExecutionListener {
	c := &CompositeJobExecutionListener{}
	c.listeners.SetItems(listeners)
	return c
}

// Register adds a listener.
func (c *CompositeJobExecutionListener) Register(l port.JobExecutionListener) {
	c.listeners.Add(l)
}

// BeforeJob calls the listeners in order. A panic reaches the job, which fails.
func (c *CompositeJobExecutionListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range c.listeners.Forward() {
		l.BeforeJob(ctx, jobExecution)
	}
}

// AfterJob calls the listeners in reverse order. A panicking listener is logged and skipped.
func (c *CompositeJobExecutionListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, l := range c.listeners.Reverse() {
		func() {
			defer recoverListener("AfterJob", jobExecution.JobName)
			l.AfterJob(ctx, jobExecution)
		}()
	}
}

func recoverListener(callback, name string) {
	if r := recover(); r != nil {
		logger.Errorf("Listener %s for '%s' failed: %v", callback, name, exception.FromPanic("listener", r))
	}
}
