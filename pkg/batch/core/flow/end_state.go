package flow

import (
	"context"
	"fmt"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// EndState ends a flow with a fixed status and records an exit code on the job.
// A stop-kind EndState is not an end state: on restart the flow continues after it.
type EndState struct {
	namedState
	status  model.FlowExecutionStatus
	code    string
	abandon bool
}

var _ State = (*EndState)(nil)

// NewEndState creates an EndState whose exit code is the status name.
func NewEndState(name string, status model.FlowExecutionStatus) *EndState {
	return NewEndStateWithCode(name, status, status.Name, false)
}

// NewEndStateWithCode creates an EndState.
//
// Parameters:
//
//	name: The state name.
//	status: The status the flow ends with.
//	code: The exit code added to the job. Empty means the status name.
//	abandon: For a stop state, whether the last step execution is abandoned so that it is
//	         not replayed on restart.
func NewEndStateWithCode(name string, status model.FlowExecutionStatus, code string, abandon bool) *EndState {
	if code == "" {
		code = status.Name
	}
	return &EndState{namedState: namedState{name: name}, status: status, code: code, abandon: abandon}
}

// Handle returns UNKNOWN when the last step ended in an unknown state. A stop state
// reached on restart reports COMPLETED so that the flow carries on; otherwise the exit
// code is added to the job and the configured status is returned.
func (s *EndState) Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error) {
	if se := executor.GetStepExecution(); se != nil && se.Status == model.BatchStatusUnknown {
		logger.Warnf("EndState '%s': last step execution '%s' is in an unknown state.", s.name, se.StepName)
		return model.FlowExecutionStatusUnknown, nil
	}
	if s.status.IsStop() {
		if executor.IsRestart() {
			return model.FlowExecutionStatusCompleted, nil
		}
		if s.abandon {
			if err := executor.AbandonStepExecution(ctx); err != nil {
				return model.FlowExecutionStatusUnknown, err
			}
		}
	}
	executor.AddExitStatus(s.code)
	return s.status, nil
}

// IsEndState reports false for stop states.
func (s *EndState) IsEndState() bool {
	return !s.status.IsStop()
}

// Status returns the configured status.
func (s *EndState) Status() model.FlowExecutionStatus {
	return s.status
}

// Code returns the configured exit code.
func (s *EndState) Code() string {
	return s.code
}

func (s *EndState) String() string {
	return fmt.Sprintf("EndState: [name=%s, status=%s, code=%s]", s.name, s.status.Name, s.code)
}
