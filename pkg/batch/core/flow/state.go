package flow

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// State is a node of a flow.
type State interface {
	// Name returns the name of the state, unique within its flow.
	Name() string
	// Handle performs the work of the state and returns the status used to pick the next transition.
	Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error)
	// IsEndState reports whether the flow must stop after this state. End states
	// cannot have outgoing transitions.
	IsEndState() bool
}

// StepHolder is implemented by states that run a step.
type StepHolder interface {
	Step() port.Step
}

// FlowHolder is implemented by states that wrap nested flows.
type FlowHolder interface {
	GetFlows() []Flow
}

type namedState struct {
	name string
}

func (s namedState) Name() string {
	return s.name
}

func (s namedState) IsEndState() bool {
	return false
}
