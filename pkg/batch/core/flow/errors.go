package flow

import (
	"errors"
	"fmt"
)

// ErrInvalidFlow is wrapped by every error raised while assembling a flow.
var ErrInvalidFlow = errors.New("invalid flow definition")

// FlowExecutionError reports a failure while walking a flow: a malformed transition table
// discovered at run time, a rejected split branch, or an error escaping a state.
type FlowExecutionError struct {
	Message string
	Cause   error
}

func newFlowExecutionError(cause error, format string, args ...interface{}) *FlowExecutionError {
	return &FlowExecutionError{Message: fmt.Sprintf(format, args...), Cause: cause}
}

func (e *FlowExecutionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *FlowExecutionError) Unwrap() error {
	return e.Cause
}

func invalidFlow(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidFlow, fmt.Sprintf(format, args...))
}
