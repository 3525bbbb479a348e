package flow

import (
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// Aggregator reduces the results of parallel flows to a single status.
type Aggregator interface {
	Aggregate(executions []model.FlowExecution) model.FlowExecutionStatus
}

// AggregatorFunc adapts a function to Aggregator.
type AggregatorFunc func(executions []model.FlowExecution) model.FlowExecutionStatus

// Aggregate calls f.
func (f AggregatorFunc) Aggregate(executions []model.FlowExecution) model.FlowExecutionStatus {
	return f(executions)
}

// MaxValueAggregator returns the worst status of the executions, UNKNOWN when there are none.
// The result does not depend on the order of the executions.
type MaxValueAggregator struct{}

// Aggregate implements Aggregator.
func (MaxValueAggregator) Aggregate(executions []model.FlowExecution) model.FlowExecutionStatus {
	if len(executions) == 0 {
		return model.FlowExecutionStatusUnknown
	}
	worst := executions[0]
	for _, fe := range executions[1:] {
		if fe.Compare(worst) > 0 {
			worst = fe
		}
	}
	return worst.Status
}
