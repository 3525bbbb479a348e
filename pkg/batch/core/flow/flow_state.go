package flow

import (
	"context"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// FlowState runs a nested flow in the same executor.
type FlowState struct {
	namedState
	flow Flow
}

var (
	_ State      = (*FlowState)(nil)
	_ FlowHolder = (*FlowState)(nil)
)

// NewFlowState creates a FlowState.
func NewFlowState(name string, flow Flow) *FlowState {
	return &FlowState{namedState: namedState{name: name}, flow: flow}
}

// Handle starts the nested flow and returns the status it ended with.
func (s *FlowState) Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error) {
	execution, err := s.flow.Start(ctx, executor)
	if err != nil {
		return model.FlowExecutionStatusUnknown, err
	}
	return execution.Status, nil
}

// GetFlows returns the nested flow.
func (s *FlowState) GetFlows() []Flow {
	return []Flow{s.flow}
}
