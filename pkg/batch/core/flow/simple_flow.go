package flow

import (
	"context"
	"errors"
	"sort"
	"strings"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Flow is a named graph of states.
type Flow interface {
	// Name returns the flow name.
	Name() string
	// Start runs the flow from its start state.
	Start(ctx context.Context, executor Executor) (model.FlowExecution, error)
	// Resume runs the flow from the named state.
	Resume(ctx context.Context, stateName string, executor Executor) (model.FlowExecution, error)
	// GetState returns the state with the given name.
	GetState(name string) (State, bool)
	// States returns all states in the order they were first seen.
	States() []State
}

// TransitionObserver is notified each time a flow moves from one state to another.
// to is empty when the flow ends.
type TransitionObserver func(ctx context.Context, flowName, from string, status model.FlowExecutionStatus, to string)

// SimpleFlow is a Flow defined by a list of state transitions.
type SimpleFlow struct {
	name          string
	startState    State
	states        []State
	stateMap      map[string]State
	transitionMap map[string][]StateTransition
	comparator    func(a, b StateTransition) int
	startName     string
	observer      TransitionObserver
}

var (
	_ Flow             = (*SimpleFlow)(nil)
	_ port.StepLocator = (*SimpleFlow)(nil)
)

// Option configures a SimpleFlow.
type Option func(*SimpleFlow)

// WithComparator orders the transitions of each state with cmp. Transitions that compare
// equal to an earlier one of the same state are dropped.
func WithComparator(cmp func(a, b StateTransition) int) Option {
	return func(f *SimpleFlow) {
		f.comparator = cmp
	}
}

// WithSpecificityOrdering orders the transitions of each state from the most specific pattern
// to the least specific one.
func WithSpecificityOrdering() Option {
	return WithComparator(CompareTransitions)
}

// WithStartState starts the flow at the named state instead of the state of the first transition.
func WithStartState(name string) Option {
	return func(f *SimpleFlow) {
		f.startName = name
	}
}

// WithTransitionObserver registers an observer for state changes.
func WithTransitionObserver(observer TransitionObserver) Option {
	return func(f *SimpleFlow) {
		f.observer = observer
	}
}

// NewSimpleFlow creates a flow from transitions and validates it.
//
// Parameters:
//
//	name: The flow name.
//	transitions: The transitions. The state of the first one is the default start state.
//	opts: Options.
//
// Returns:
//
//	*SimpleFlow: The flow.
//	error: An error wrapping ErrInvalidFlow when the list is empty, a next state is
//	       unknown, no end transition exists or the start state is unknown.
func NewSimpleFlow(name string, transitions []StateTransition, opts ...Option) (*SimpleFlow, error) {
	f := &SimpleFlow{
		name:          name,
		stateMap:      make(map[string]State),
		transitionMap: make(map[string][]StateTransition),
	}
	for _, opt := range opts {
		opt(f)
	}
	if err := f.initialize(transitions); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *SimpleFlow) initialize(transitions []StateTransition) error {
	if len(transitions) == 0 {
		return invalidFlow("flow '%s' has no transitions", f.name)
	}

	for _, t := range transitions {
		if t.state == nil {
			return invalidFlow("flow '%s' contains a transition without a state", f.name)
		}
		if _, ok := f.stateMap[t.state.Name()]; !ok {
			f.stateMap[t.state.Name()] = t.state
			f.states = append(f.states, t.state)
		}
	}

	hasEnd := false
	for _, t := range transitions {
		if t.IsEnd() {
			hasEnd = true
		} else if _, ok := f.stateMap[t.next]; !ok {
			return invalidFlow("missing state for [%s] in flow '%s'", t, f.name)
		}
		f.addTransition(t)
	}
	if !hasEnd {
		return invalidFlow("no end state was found in flow '%s': at least one transition must have no next state", f.name)
	}

	if f.comparator != nil {
		for name, ts := range f.transitionMap {
			sort.SliceStable(ts, func(i, j int) bool { return f.comparator(ts[i], ts[j]) < 0 })
			f.transitionMap[name] = ts
		}
	}

	f.startState = transitions[0].state
	if f.startName != "" {
		s, ok := f.stateMap[f.startName]
		if !ok {
			return invalidFlow("start state '%s' is not part of flow '%s'", f.startName, f.name)
		}
		f.startState = s
	}
	return nil
}

func (f *SimpleFlow) addTransition(t StateTransition) {
	name := t.state.Name()
	for _, existing := range f.transitionMap[name] {
		if f.comparator != nil && f.comparator(existing, t) == 0 {
			return
		}
		if existing.pattern == t.pattern && existing.next == t.next {
			return
		}
	}
	f.transitionMap[name] = append(f.transitionMap[name], t)
}

// Name returns the flow name.
func (f *SimpleFlow) Name() string {
	return f.name
}

// StartState returns the state the flow starts in.
func (f *SimpleFlow) StartState() State {
	return f.startState
}

// GetState returns the state with the given name.
func (f *SimpleFlow) GetState(name string) (State, bool) {
	s, ok := f.stateMap[name]
	return s, ok
}

// States returns the states of the flow.
func (f *SimpleFlow) States() []State {
	out := make([]State, len(f.states))
	copy(out, f.states)
	return out
}

// Transitions returns the transitions of the named state in evaluation order.
func (f *SimpleFlow) Transitions(stateName string) []StateTransition {
	ts := f.transitionMap[stateName]
	out := make([]StateTransition, len(ts))
	copy(out, ts)
	return out
}

// Start runs the flow from its start state.
func (f *SimpleFlow) Start(ctx context.Context, executor Executor) (model.FlowExecution, error) {
	return f.Resume(ctx, f.startState.Name(), executor)
}

// Resume walks the flow from stateName until an end transition is taken or the flow stops.
// An error raised by a state closes the executor at that state and is returned as a
// *FlowExecutionError.
func (f *SimpleFlow) Resume(ctx context.Context, stateName string, executor Executor) (model.FlowExecution, error) {
	status := model.FlowExecutionStatusUnknown
	state := f.stateMap[stateName]
	logger.Debugf("Flow '%s': resuming in state '%s'.", f.name, stateName)

	var stepExecution *model.StepExecution
	for isFlowContinued(state, status, stepExecution) {
		stateName = state.Name()
		logger.Debugf("Flow '%s': handling state '%s'.", f.name, stateName)

		next, err := f.handleState(ctx, state, executor)
		if err != nil {
			executor.Close(model.NewFlowExecution(stateName, status))
			var flowErr *FlowExecutionError
			if errors.As(err, &flowErr) {
				return model.FlowExecution{}, err
			}
			return model.FlowExecution{}, newFlowExecutionError(err, "Ended flow=%s at state=%s with exception", f.name, stateName)
		}
		status = next
		stepExecution = executor.GetStepExecution()

		state, err = f.nextState(stateName, status)
		if err != nil {
			return model.FlowExecution{}, err
		}
		if f.observer != nil {
			to := ""
			if state != nil {
				to = state.Name()
			}
			f.observer(ctx, f.name, stateName, status, to)
		}
	}

	result := model.NewFlowExecution(stateName, status)
	executor.Close(result)
	logger.Debugf("Flow '%s': completed in state '%s' with status %s.", f.name, stateName, status.Name)
	return result, nil
}

func (f *SimpleFlow) handleState(ctx context.Context, state State, executor Executor) (status model.FlowExecutionStatus, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newFlowExecutionError(nil, "state '%s' panicked: %v", state.Name(), r)
		}
	}()
	return state.Handle(ctx, executor)
}

// isFlowContinued reports whether the flow moves on to state. A STOPPED status normally
// ends the flow, except when a restarted step stopped before it was executed and the state
// is not the one that ran it.
func isFlowContinued(state State, status model.FlowExecutionStatus, stepExecution *model.StepExecution) bool {
	continued := state != nil && status != model.FlowExecutionStatusStopped

	if stepExecution != nil && stepExecution.ExecutionContext != nil && state != nil {
		ec := stepExecution.ExecutionContext
		executed, _ := ec.GetBool(model.ExecutedKey)
		restart, _ := ec.GetBool(model.RestartKey)
		if !executed && restart && status == model.FlowExecutionStatusStopped && !strings.HasSuffix(state.Name(), stepExecution.StepName) {
			continued = true
		}
	}
	return continued
}

// nextState picks the first transition of stateName that matches status. A PENDING status
// also matches transitions for STOPPED. A nil state means the flow ends.
func (f *SimpleFlow) nextState(stateName string, status model.FlowExecutionStatus) (State, error) {
	transitions, ok := f.transitionMap[stateName]
	if !ok {
		return nil, newFlowExecutionError(nil, "No transitions found in flow=%s for state=%s", f.name, stateName)
	}

	exitCode := status.Name
	next := ""
	for _, t := range transitions {
		if t.Matches(exitCode) || (exitCode == "PENDING" && t.Matches("STOPPED")) {
			if t.IsEnd() {
				return nil, nil
			}
			next = t.next
			break
		}
	}
	if next == "" {
		return nil, newFlowExecutionError(nil, "Next state not found in flow=%s for state=%s with exit status=%s", f.name, stateName, status.Name)
	}
	s, ok := f.stateMap[next]
	if !ok {
		return nil, newFlowExecutionError(nil, "Next state not specified in flow=%s for state=%s with exit status=%s", f.name, stateName, status.Name)
	}
	return s, nil
}

// StepNames returns the names of all steps in the flow, including nested flows.
func (f *SimpleFlow) StepNames() []string {
	var names []string
	seen := make(map[string]bool)
	walkSteps(f, func(step port.Step) bool {
		if !seen[step.Name()] {
			seen[step.Name()] = true
			names = append(names, step.Name())
		}
		if locator, ok := step.(port.StepLocator); ok {
			for _, n := range locator.StepNames() {
				if !seen[n] {
					seen[n] = true
					names = append(names, n)
				}
			}
		}
		return true
	})
	return names
}

// GetStep finds a step anywhere in the flow, including nested flows and steps.
func (f *SimpleFlow) GetStep(name string) (port.Step, error) {
	var found port.Step
	walkSteps(f, func(step port.Step) bool {
		if step.Name() == name {
			found = step
			return false
		}
		if locator, ok := step.(port.StepLocator); ok {
			if s, err := locator.GetStep(name); err == nil {
				found = s
				return false
			}
		}
		return true
	})
	if found == nil {
		return nil, port.ErrStepNotFound
	}
	return found, nil
}

// walkSteps visits the steps of flow and its nested flows until visit returns false.
func walkSteps(flow Flow, visit func(port.Step) bool) bool {
	for _, s := range flow.States() {
		switch st := s.(type) {
		case StepHolder:
			if !visit(st.Step()) {
				return false
			}
		case FlowHolder:
			for _, nested := range st.GetFlows() {
				if !walkSteps(nested, visit) {
					return false
				}
			}
		}
	}
	return true
}
