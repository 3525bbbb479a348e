package tracing_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	inframetrics "github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/listener/tracing"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

func eventNames(span sdktrace.ReadOnlySpan) []string {
	var names []string
	for _, e := range span.Events() {
		names = append(names, e.Name)
	}
	return names
}

func attr(attrs []attribute.KeyValue, key string) attribute.Value {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value
		}
	}
	return attribute.Value{}
}

func TestTracingListeners_AnnotateEngineSpans(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	tracer := inframetrics.NewOpenTelemetryTracer(tp)

	jl := tracing.NewTracingJobListener(tracer)
	sl := tracing.NewTracingStepListener(tracer)

	je := testutil.NewTestJobExecution("tracedJob")
	je.MarkAsStarted()
	jobCtx, endJob := tracer.StartJobSpan(context.Background(), je)
	jl.BeforeJob(jobCtx, je)

	se := testutil.NewTestStepExecution(je, "tracedStep")
	se.MarkAsStarted()
	stepCtx, endStep := tracer.StartStepSpan(jobCtx, se)
	sl.BeforeStep(stepCtx, se)
	se.Status = model.BatchStatusFailed
	se.ExitStatus = model.ExitStatusFailed
	se.ReadCount = 4
	se.AddFailureException(errors.New("bad record"))
	assert.True(t, sl.AfterStep(stepCtx, se).IsZero())
	endStep()

	je.SetStatus(model.BatchStatusFailed)
	je.SetExitStatus(model.ExitStatusFailed)
	je.AddFailureException(errors.New("job aborted"))
	je.MarkAsEnded()
	jl.AfterJob(jobCtx, je)
	endJob()

	spans := sr.Ended()
	require.Len(t, spans, 2)
	step, job := spans[0], spans[1]

	assert.Equal(t, []string{tracing.EventStepStarted, "exception", tracing.EventStepFinished}, eventNames(step))
	finished := step.Events()[2]
	assert.Equal(t, "FAILED", attr(finished.Attributes, "step.status").AsString())
	assert.Equal(t, int64(4), attr(finished.Attributes, "step.read").AsInt64())
	assert.Equal(t, codes.Error, step.Status().Code)

	assert.Equal(t, []string{tracing.EventJobStarted, "exception", tracing.EventJobFinished}, eventNames(job))
	assert.Equal(t, int64(1), attr(job.Events()[2].Attributes, "job.steps").AsInt64())
	assert.Equal(t, codes.Error, job.Status().Code)
}

func TestTracingListeners_Order(t *testing.T) {
	assert.Equal(t, tracing.Order, tracing.NewTracingJobListener(nil).Order())
	assert.Equal(t, tracing.Order, tracing.NewTracingStepListener(nil).Order())
}
