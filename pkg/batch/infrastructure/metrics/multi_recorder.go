package metrics

import (
	"context"
	"time"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
)

// MultiRecorder forwards every recording to each of its recorders in order.
type MultiRecorder []metrics.MetricRecorder

// RecordJobStart implements metrics.MetricRecorder.
func (m MultiRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	for _, r := range m {
		r.RecordJobStart(ctx, execution)
	}
}

// RecordJobEnd implements metrics.MetricRecorder.
func (m MultiRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	for _, r := range m {
		r.RecordJobEnd(ctx, execution)
	}
}

// RecordStepStart implements metrics.MetricRecorder.
func (m MultiRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	for _, r := range m {
		r.RecordStepStart(ctx, execution)
	}
}

// RecordStepEnd implements metrics.MetricRecorder.
func (m MultiRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	for _, r := range m {
		r.RecordStepEnd(ctx, execution)
	}
}

// RecordFlowTransition implements metrics.MetricRecorder.
func (m MultiRecorder) RecordFlowTransition(ctx context.Context, flowName, from, status, to string) {
	for _, r := range m {
		r.RecordFlowTransition(ctx, flowName, from, status, to)
	}
}

// RecordSplit implements metrics.MetricRecorder.
func (m MultiRecorder) RecordSplit(ctx context.Context, splitName string, flows int, status string, duration time.Duration) {
	for _, r := range m {
		r.RecordSplit(ctx, splitName, flows, status, duration)
	}
}

var _ metrics.MetricRecorder = MultiRecorder(nil)
