// Package metrics defines the observability ports of the flow engine: a MetricRecorder for
// job, step, transition and split metrics, and a Tracer for spans around jobs and steps.
package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// MetricRecorder receives execution events from listeners and from the flow itself.
// Implementations must not block the caller for long; see the async decorator in
// infrastructure/metrics.
type MetricRecorder interface {
	RecordJobStart(ctx context.Context, execution *model.JobExecution)
	// RecordJobEnd is called after the final status and exit status are set.
	RecordJobEnd(ctx context.Context, execution *model.JobExecution)
	RecordStepStart(ctx context.Context, execution *model.StepExecution)
	RecordStepEnd(ctx context.Context, execution *model.StepExecution)

	// RecordFlowTransition records that flowName moved from state from to state to with status.
	// to is empty when the flow ended.
	RecordFlowTransition(ctx context.Context, flowName, from, status, to string)

	// RecordSplit records the join of a split over the given number of flows.
	RecordSplit(ctx context.Context, splitName string, flows int, status string, duration time.Duration)
}
