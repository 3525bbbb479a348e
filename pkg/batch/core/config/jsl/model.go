// Package jsl defines the models for the Job Specification Language (JSL) in the Surfin Flow engine.
// It is used to declaratively describe the flow of batch jobs in YAML format: steps, decisions,
// splits, nested flows and the transitions between them.
package jsl

import (
	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
)

// JSLDefinitionBytes holds the content of a JSL file as a byte slice.
// This is used when loading JSL definitions into memory.
type JSLDefinitionBytes []byte

// Job represents the top-level structure of a JSL file, containing the entire batch job definition.
type Job struct {
	// ID is the unique identifier for the job.
	ID string `yaml:"id"`
	// Name is the logical name of the job. Job instances and executions are recorded under it.
	Name string `yaml:"name"`
	// Description is an optional description for the job.
	Description string `yaml:"description,omitempty"`
	// Restartable defaults to true.
	Restartable *bool `yaml:"restartable,omitempty"`
	// Flow defines the execution flow of the job.
	Flow Flow `yaml:"flow"`
	// Listeners is an optional list of JobExecutionListener references applied to this job.
	Listeners []ComponentRef `yaml:"listeners,omitempty"`
}

// Flow is a set of elements connected by transitions.
type Flow struct {
	// ID names the flow. Nested flows default to the ID of the element that holds them.
	ID string `yaml:"id,omitempty"`
	// StartElement is the ID of the starting element in the flow.
	StartElement string `yaml:"start-element"`
	// Elements maps element IDs to their definitions. An element ID is also the state name,
	// and for steps the step name.
	Elements map[string]Element `yaml:"elements"`
}

// Element is one state of a flow. Exactly one of Step, Decision, Split, Flow and FlowStep is set.
type Element struct {
	Description string `yaml:"description,omitempty"`

	Step     *Step     `yaml:"step,omitempty"`
	Decision *Decision `yaml:"decision,omitempty"`
	Split    *Split    `yaml:"split,omitempty"`
	// Flow inlines a nested flow whose steps run in the enclosing job.
	Flow *Flow `yaml:"flow,omitempty"`
	// FlowStep wraps a nested flow into a single step.
	FlowStep *FlowStep `yaml:"flow-step,omitempty"`

	// Next is shorthand for a single transition on "*".
	Next string `yaml:"next,omitempty"`
	// Transitions defines the transition rules from this element. An element without
	// transitions and without Next ends the flow with its own status.
	Transitions []Transition `yaml:"transitions,omitempty"`
}

// StepSettings are the lifecycle settings shared by tasklet steps and flow steps.
type StepSettings struct {
	// StartLimit overrides batch.step.start_limit.
	StartLimit *int `yaml:"start-limit,omitempty"`
	// AllowStartIfComplete overrides batch.step.allow_start_if_complete.
	AllowStartIfComplete *bool `yaml:"allow-start-if-complete,omitempty"`
	// Listeners is an optional list of StepExecutionListener references applied to this step.
	Listeners []ComponentRef `yaml:"listeners,omitempty"`
	// ExitCodeMappings are merged over batch.step.exit_code_mappings.
	ExitCodeMappings map[string]string `yaml:"exit-code-mappings,omitempty"`
}

// Step is a tasklet-oriented step.
type Step struct {
	StepSettings `yaml:",inline"`
	// Tasklet is a reference to a registered Tasklet builder.
	Tasklet ComponentRef `yaml:"tasklet"`
}

// FlowStep is a step whose body runs a nested flow.
type FlowStep struct {
	StepSettings `yaml:",inline"`
	Flow         Flow `yaml:"flow"`
}

// ComponentRef refers to a registered component (e.g., tasklet, decider, listener).
type ComponentRef struct {
	// Ref is the reference name of the component.
	Ref string `yaml:"ref"`
	// Properties is an optional map of properties injected from JSL.
	Properties map[string]interface{} `yaml:"properties,omitempty"`
}

// Decision represents a conditional branching point in the flow.
type Decision struct {
	// Decider is a reference to a registered Decider builder.
	Decider ComponentRef `yaml:"decider"`
}

// Split represents the parallel execution of multiple flows.
type Split struct {
	// TaskExecutor optionally overrides batch.split for this split. Only "sync" and "async"
	// are accepted; pooled workers are shared and configured globally.
	TaskExecutor *TaskExecutor `yaml:"task-executor,omitempty"`
	// Flows are run concurrently. Their IDs default to "<split>-<index>".
	Flows []Flow `yaml:"flows"`
}

// TaskExecutor is the per-split executor override.
type TaskExecutor struct {
	Type             string `yaml:"type"`
	ConcurrencyLimit int    `yaml:"concurrency-limit,omitempty"`
}

// Transition defines the next element to execute based on the exit status.
// Exactly one of To, End, Fail and Stop is set.
type Transition struct {
	// On is the exit code pattern ("*" and "?" wildcards) that triggers the transition.
	On string `yaml:"on"`
	// To is the ID of the target element.
	To string `yaml:"to,omitempty"`
	// End completes the flow.
	End bool `yaml:"end,omitempty"`
	// Fail fails the flow.
	Fail bool `yaml:"fail,omitempty"`
	// Stop stops the flow. The job can be restarted.
	Stop bool `yaml:"stop,omitempty"`
	// Restart is the element a stopped flow resumes at on restart. Only valid with Stop.
	Restart string `yaml:"restart,omitempty"`
	// ExitCode overrides the exit code recorded on the job for End, Fail and Stop.
	ExitCode string `yaml:"exit-code,omitempty"`
	// Abandon marks the last step execution ABANDONED when stopping so that it is not replayed.
	Abandon bool `yaml:"abandon,omitempty"`
}

// TaskletBuilder is a function type for building Tasklets.
//
// Parameters:
//
//	cfg: The global framework configuration.
//	properties: Tasklet-specific properties injected from JSL.
//
// Returns:
//
//	The constructed Tasklet instance and an error.
type TaskletBuilder func(cfg *config.Config, properties map[string]interface{}) (port.Tasklet, error)

// DeciderBuilder is a function type for building Deciders.
type DeciderBuilder func(cfg *config.Config, properties map[string]interface{}) (port.Decider, error)

// JobExecutionListenerBuilder is a function type for building JobExecutionListeners.
//
// Parameters:
//
//	cfg: The global framework configuration.
//	properties: Listener-specific properties injected from JSL.
//
// Returns:
//
//	The constructed JobExecutionListener instance and an error.
type JobExecutionListenerBuilder func(cfg *config.Config, properties map[string]interface{}) (port.JobExecutionListener, error)

// StepExecutionListenerBuilder is a function type for building StepExecutionListeners.
type StepExecutionListenerBuilder func(cfg *config.Config, properties map[string]interface{}) (port.StepExecutionListener, error)
