package flow

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// DecisionState delegates the choice of the next transition to a Decider.
type DecisionState struct {
	namedState
	decider port.Decider
}

var _ State = (*DecisionState)(nil)

// NewDecisionState creates a DecisionState.
func NewDecisionState(name string, decider port.Decider) *DecisionState {
	return &DecisionState{namedState: namedState{name: name}, decider: decider}
}

// Handle asks the decider, passing the job execution and the last step execution.
func (s *DecisionState) Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error) {
	return s.decider.Decide(ctx, executor.GetJobExecution(), executor.GetStepExecution())
}

// Decider returns the wrapped decider.
func (s *DecisionState) Decider() port.Decider {
	return s.decider
}
