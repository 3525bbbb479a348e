package metrics

import (
	"context"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// Tracer starts spans around job and step executions.
type Tracer interface {
	// StartJobSpan starts a span for a JobExecution and returns the derived context and a
	// function that ends the span.
	StartJobSpan(ctx context.Context, execution *model.JobExecution) (context.Context, func())

	// StartStepSpan starts a span for a StepExecution.
	StartStepSpan(ctx context.Context, execution *model.StepExecution) (context.Context, func())

	// RecordError records err on the span in ctx.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent adds an event to the span in ctx.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
