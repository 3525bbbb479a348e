// Package metrics provides the listeners and flow observers that feed a metrics.MetricRecorder.
package metrics

import (
	"context"
	"time"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
)

// Order places the metrics listeners first in before-callbacks and last in after-callbacks,
// so that recorded durations and exit statuses cover every other listener.
const Order = -200

// --- Job Execution Listener ---

type MetricsJobListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsJobListener(recorder metrics.MetricRecorder) *MetricsJobListener {
	return &MetricsJobListener{recorder: recorder}
}

func (l *MetricsJobListener) Order() int { return Order }

func (l *MetricsJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.recorder.RecordJobStart(ctx, jobExecution)
}

func (l *MetricsJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.recorder.RecordJobEnd(ctx, jobExecution)
}

var (
	_ port.JobExecutionListener = (*MetricsJobListener)(nil)
	_ port.Ordered              = (*MetricsJobListener)(nil)
)

// --- Step Execution Listener ---

type MetricsStepListener struct {
	recorder metrics.MetricRecorder
}

func NewMetricsStepListener(recorder metrics.MetricRecorder) *MetricsStepListener {
	return &MetricsStepListener{recorder: recorder}
}

func (l *MetricsStepListener) Order() int { return Order }

func (l *MetricsStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	l.recorder.RecordStepStart(ctx, stepExecution)
}

// AfterStep records the step end and leaves the exit status unchanged.
func (l *MetricsStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) model.ExitStatus {
	l.recorder.RecordStepEnd(ctx, stepExecution)
	return model.ExitStatus{}
}

var (
	_ port.StepExecutionListener = (*MetricsStepListener)(nil)
	_ port.Ordered               = (*MetricsStepListener)(nil)
)

// --- Flow observers ---

// NewFlowTransitionObserver records every flow transition with recorder.
func NewFlowTransitionObserver(recorder metrics.MetricRecorder) flow.TransitionObserver {
	return func(ctx context.Context, flowName, from string, status model.FlowExecutionStatus, to string) {
		recorder.RecordFlowTransition(ctx, flowName, from, status.Name, to)
	}
}

// NewSplitObserver records every split join with recorder.
func NewSplitObserver(recorder metrics.MetricRecorder) flow.SplitObserver {
	return func(ctx context.Context, splitName string, flows int, status model.FlowExecutionStatus, duration time.Duration) {
		recorder.RecordSplit(ctx, splitName, flows, status.Name, duration)
	}
}
