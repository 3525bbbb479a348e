package flow

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// StepState runs a single step. Any step left over from an interrupted run is abandoned first.
type StepState struct {
	namedState
	step port.Step
}

var (
	_ State            = (*StepState)(nil)
	_ StepHolder       = (*StepState)(nil)
	_ port.StepLocator = (*StepState)(nil)
)

// NewStepState creates a StepState named after step.
func NewStepState(step port.Step) *StepState {
	return NewNamedStepState(step.Name(), step)
}

// NewNamedStepState creates a StepState with an explicit state name.
func NewNamedStepState(name string, step port.Step) *StepState {
	return &StepState{namedState: namedState{name: name}, step: step}
}

// Handle abandons the previous step execution if needed and executes the step.
// The exit code of the step becomes the status of the state.
func (s *StepState) Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error) {
	if err := executor.AbandonStepExecution(ctx); err != nil {
		return model.FlowExecutionStatusUnknown, err
	}
	exitCode, err := executor.ExecuteStep(ctx, s.step)
	if err != nil {
		return model.FlowExecutionStatusUnknown, err
	}
	return model.NewFlowExecutionStatus(exitCode), nil
}

// Step returns the wrapped step.
func (s *StepState) Step() port.Step {
	return s.step
}

// StepNames returns the name of the wrapped step followed by the steps it contains.
func (s *StepState) StepNames() []string {
	names := []string{s.step.Name()}
	if locator, ok := s.step.(port.StepLocator); ok {
		names = append(names, locator.StepNames()...)
	}
	return names
}

// GetStep finds the wrapped step or one of the steps nested in it.
func (s *StepState) GetStep(name string) (port.Step, error) {
	if s.step.Name() == name {
		return s.step, nil
	}
	if locator, ok := s.step.(port.StepLocator); ok {
		return locator.GetStep(name)
	}
	return nil, port.ErrStepNotFound
}
