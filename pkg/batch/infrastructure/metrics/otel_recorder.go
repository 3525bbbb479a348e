package metrics

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
)

// InstrumentationName names the meter and tracer of the batch engine.
const InstrumentationName = "github.com/tigerroll/surfin-flow/pkg/batch"

// OtelRecorder records batch metrics with OpenTelemetry instruments.
type OtelRecorder struct {
	jobStarted      metric.Int64Counter
	jobFinished     metric.Int64Counter
	jobDuration     metric.Float64Histogram
	stepStarted     metric.Int64Counter
	stepFinished    metric.Int64Counter
	stepDuration    metric.Float64Histogram
	stepItems       metric.Int64Counter
	flowTransitions metric.Int64Counter
	splitDuration   metric.Float64Histogram
}

// NewOtelRecorder creates the instruments on a meter obtained from provider.
func NewOtelRecorder(provider metric.MeterProvider) (*OtelRecorder, error) {
	meter := provider.Meter(InstrumentationName)
	r := &OtelRecorder{}
	var err error

	if r.jobStarted, err = meter.Int64Counter("batch.job.started", metric.WithDescription("Started job executions.")); err != nil {
		return nil, err
	}
	if r.jobFinished, err = meter.Int64Counter("batch.job.finished", metric.WithDescription("Finished job executions by status.")); err != nil {
		return nil, err
	}
	if r.jobDuration, err = meter.Float64Histogram("batch.job.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stepStarted, err = meter.Int64Counter("batch.step.started", metric.WithDescription("Started step executions.")); err != nil {
		return nil, err
	}
	if r.stepFinished, err = meter.Int64Counter("batch.step.finished", metric.WithDescription("Finished step executions by status.")); err != nil {
		return nil, err
	}
	if r.stepDuration, err = meter.Float64Histogram("batch.step.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	if r.stepItems, err = meter.Int64Counter("batch.step.items", metric.WithDescription("Items counted by steps, by kind.")); err != nil {
		return nil, err
	}
	if r.flowTransitions, err = meter.Int64Counter("batch.flow.transitions", metric.WithDescription("Transitions taken by flows.")); err != nil {
		return nil, err
	}
	if r.splitDuration, err = meter.Float64Histogram("batch.split.duration", metric.WithUnit("s")); err != nil {
		return nil, err
	}
	return r, nil
}

// RecordJobStart implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	r.jobStarted.Add(ctx, 1, metric.WithAttributes(attribute.String("job_name", execution.JobName)))
}

// RecordJobEnd implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	attrs := metric.WithAttributes(
		attribute.String("job_name", execution.JobName),
		attribute.String("status", execution.GetStatus().String()),
		attribute.String("exit_code", execution.GetExitStatus().ExitCode),
	)
	r.jobFinished.Add(ctx, 1, attrs)
	if d, ok := elapsed(execution.StartTime, execution.EndTime); ok {
		r.jobDuration.Record(ctx, d.Seconds(), attrs)
	}
}

// RecordStepStart implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	r.stepStarted.Add(ctx, 1, metric.WithAttributes(
		attribute.String("job_name", jobNameOf(execution)),
		attribute.String("step_name", execution.StepName),
	))
}

// RecordStepEnd implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	jobName := attribute.String("job_name", jobNameOf(execution))
	stepName := attribute.String("step_name", execution.StepName)
	attrs := metric.WithAttributes(
		jobName,
		stepName,
		attribute.String("status", execution.Status.String()),
		attribute.String("exit_code", execution.ExitStatus.ExitCode),
	)
	r.stepFinished.Add(ctx, 1, attrs)
	if d, ok := elapsed(execution.StartTime, execution.EndTime); ok {
		r.stepDuration.Record(ctx, d.Seconds(), attrs)
	}

	items := map[string]int{
		"read":     execution.ReadCount,
		"write":    execution.WriteCount,
		"filter":   execution.FilterCount,
		"commit":   execution.CommitCount,
		"rollback": execution.RollbackCount,
	}
	for kind, n := range items {
		if n == 0 {
			continue
		}
		r.stepItems.Add(ctx, int64(n), metric.WithAttributes(jobName, stepName, attribute.String("kind", kind)))
	}
}

// RecordFlowTransition implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordFlowTransition(ctx context.Context, flowName, from, status, to string) {
	r.flowTransitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow_name", flowName),
		attribute.String("from", from),
		attribute.String("status", status),
		attribute.String("to", to),
	))
}

// RecordSplit implements metrics.MetricRecorder.
func (r *OtelRecorder) RecordSplit(ctx context.Context, splitName string, flows int, status string, duration time.Duration) {
	r.splitDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("split_name", splitName),
		attribute.String("status", status),
		attribute.Int("flows", flows),
	))
}

var _ metrics.MetricRecorder = (*OtelRecorder)(nil)
