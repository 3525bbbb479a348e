// Package tracing provides job and step listeners that annotate the spans opened by the
// engine with lifecycle events and failures.
package tracing

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
)

// Order places the tracing listeners between the metrics and the logging listeners.
const Order = -100

// Event names recorded on the current span.
const (
	EventJobStarted   = "batch.job.started"
	EventJobFinished  = "batch.job.finished"
	EventStepStarted  = "batch.step.started"
	EventStepFinished = "batch.step.finished"
)

// TracingJobListener records job lifecycle events and failures on the job span.
type TracingJobListener struct {
	tracer metrics.Tracer
}

func NewTracingJobListener(tracer metrics.Tracer) *TracingJobListener {
	return &TracingJobListener{tracer: tracer}
}

func (l *TracingJobListener) Order() int { return Order }

func (l *TracingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.tracer.RecordEvent(ctx, EventJobStarted, map[string]interface{}{
		"job.instance_id": jobExecution.JobInstanceID(),
		"job.parameters":  len(jobExecution.Parameters.Params),
	})
}

func (l *TracingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	for _, err := range jobExecution.FailureExceptions() {
		l.tracer.RecordError(ctx, jobExecution.JobName, err)
	}
	l.tracer.RecordEvent(ctx, EventJobFinished, map[string]interface{}{
		"job.status":    jobExecution.GetStatus().String(),
		"job.exit_code": jobExecution.GetExitStatus().ExitCode,
		"job.steps":     len(jobExecution.StepExecutions()),
	})
}

var (
	_ port.JobExecutionListener = (*TracingJobListener)(nil)
	_ port.Ordered              = (*TracingJobListener)(nil)
)

// TracingStepListener records step lifecycle events and failures on the step span.
type TracingStepListener struct {
	tracer metrics.Tracer
}

func NewTracingStepListener(tracer metrics.Tracer) *TracingStepListener {
	return &TracingStepListener{tracer: tracer}
}

func (l *TracingStepListener) Order() int { return Order }

func (l *TracingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	restart, _ := stepExecution.ExecutionContext.GetBool(model.RestartKey)
	l.tracer.RecordEvent(ctx, EventStepStarted, map[string]interface{}{
		"step.restart": restart,
	})
}

// AfterStep leaves the exit status unchanged.
func (l *TracingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) model.ExitStatus {
	for _, err := range stepExecution.FailureExceptions() {
		l.tracer.RecordError(ctx, stepExecution.StepName, err)
	}
	l.tracer.RecordEvent(ctx, EventStepFinished, map[string]interface{}{
		"step.status":    stepExecution.Status.String(),
		"step.exit_code": stepExecution.ExitStatus.ExitCode,
		"step.read":      stepExecution.ReadCount,
		"step.write":     stepExecution.WriteCount,
		"step.filter":    stepExecution.FilterCount,
		"step.commit":    stepExecution.CommitCount,
		"step.rollback":  stepExecution.RollbackCount,
	})
	return model.ExitStatus{}
}

var (
	_ port.StepExecutionListener = (*TracingStepListener)(nil)
	_ port.Ordered               = (*TracingStepListener)(nil)
)
