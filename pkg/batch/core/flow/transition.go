package flow

import (
	"fmt"
)

// StateTransition links a state to the state that follows it when the state's exit
// code matches Pattern. A transition without a next state ends the flow.
type StateTransition struct {
	state   State
	pattern string
	next    string
}

// NewStateTransition creates a transition from state to next for exit codes matching pattern.
// An empty pattern matches everything. An empty next makes it an end transition.
//
// Parameters:
//
//	state: The owning state.
//	pattern: A glob over exit codes ('*' and '?').
//	next: The name of the state to continue with, or "" to end the flow.
//
// Returns:
//
//	StateTransition: The transition.
//	error: An error wrapping ErrInvalidFlow if state is nil or an end state is given a next state.
func NewStateTransition(state State, pattern, next string) (StateTransition, error) {
	if state == nil {
		return StateTransition{}, invalidFlow("a transition must have a state")
	}
	if pattern == "" {
		pattern = "*"
	}
	if next != "" && state.IsEndState() {
		return StateTransition{}, invalidFlow("end state '%s' cannot have a next state (got '%s')", state.Name(), next)
	}
	return StateTransition{state: state, pattern: pattern, next: next}, nil
}

// NewEndStateTransition creates a transition that ends the flow when state's exit code matches pattern.
func NewEndStateTransition(state State, pattern string) (StateTransition, error) {
	return NewStateTransition(state, pattern, "")
}

// MustStateTransition is like NewStateTransition but panics on error. It is meant for
// statically known flow definitions.
func MustStateTransition(state State, pattern, next string) StateTransition {
	t, err := NewStateTransition(state, pattern, next)
	if err != nil {
		panic(err)
	}
	return t
}

// State returns the owning state.
func (t StateTransition) State() State {
	return t.state
}

// Pattern returns the exit code pattern.
func (t StateTransition) Pattern() string {
	return t.pattern
}

// Next returns the name of the following state, "" for an end transition.
func (t StateTransition) Next() string {
	return t.next
}

// IsEnd reports whether the transition ends the flow.
func (t StateTransition) IsEnd() bool {
	return t.next == ""
}

// Matches reports whether exitCode matches the transition pattern.
func (t StateTransition) Matches(exitCode string) bool {
	return Match(t.pattern, exitCode)
}

func (t StateTransition) String() string {
	name := "<nil>"
	if t.state != nil {
		name = t.state.Name()
	}
	return fmt.Sprintf("StateTransition: [state=%s, pattern=%s, next=%s]", name, t.pattern, t.next)
}

// CompareTransitions orders transitions of one state from the most specific pattern to the least specific.
func CompareTransitions(a, b StateTransition) int {
	return ComparePatterns(a.pattern, b.pattern)
}
