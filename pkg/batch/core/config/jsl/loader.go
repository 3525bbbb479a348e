package jsl

import (
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const loaderModule = "jsl_loader"

// LoadJSLDefinitionFromBytes parses and validates a single JSL job definition.
func LoadJSLDefinitionFromBytes(data []byte) (*Job, error) {
	var jobDef Job
	if err := yaml.Unmarshal(data, &jobDef); err != nil {
		return nil, exception.NewBatchError(loaderModule, "Failed to parse JSL file", err, false, false)
	}
	if err := Validate(&jobDef); err != nil {
		return nil, err
	}
	logger.Infof("Loaded JSL job '%s'.", jobDef.ID)
	return &jobDef, nil
}

// Validate checks the structure of a job definition: required fields, exactly one kind per
// element, transitions pointing at existing elements and options used with the right kinds.
func Validate(jobDef *Job) error {
	if jobDef.ID == "" {
		return invalid("'id' is not defined in JSL file")
	}
	if jobDef.Name == "" {
		return invalid("JSL job '%s' does not have 'name' defined", jobDef.ID)
	}
	for _, l := range jobDef.Listeners {
		if l.Ref == "" {
			return invalid("JSL job '%s' has a listener without 'ref'", jobDef.ID)
		}
	}
	return validateFlow(jobDef.ID, &jobDef.Flow)
}

func validateFlow(path string, f *Flow) error {
	if f.StartElement == "" {
		return invalid("flow '%s' does not have 'start-element' defined", path)
	}
	if len(f.Elements) == 0 {
		return invalid("flow '%s' does not have 'elements' defined", path)
	}
	if _, ok := f.Elements[f.StartElement]; !ok {
		return invalid("flow '%s': start-element '%s' is not defined", path, f.StartElement)
	}
	for _, id := range SortedElementIDs(f) {
		if err := validateElement(path, id, f); err != nil {
			return err
		}
	}
	return nil
}

func validateElement(path, id string, f *Flow) error {
	e := f.Elements[id]
	where := path + "/" + id

	kinds := 0
	for _, set := range []bool{e.Step != nil, e.Decision != nil, e.Split != nil, e.Flow != nil, e.FlowStep != nil} {
		if set {
			kinds++
		}
	}
	if kinds != 1 {
		return invalid("element '%s' must define exactly one of step, decision, split, flow and flow-step (found %d)", where, kinds)
	}

	switch {
	case e.Step != nil:
		if e.Step.Tasklet.Ref == "" {
			return invalid("step '%s' does not have 'tasklet.ref' defined", where)
		}
		if err := validateSettings(where, e.Step.StepSettings); err != nil {
			return err
		}
	case e.Decision != nil:
		if e.Decision.Decider.Ref == "" {
			return invalid("decision '%s' does not have 'decider.ref' defined", where)
		}
		if len(e.Transitions) == 0 && e.Next == "" {
			return invalid("decision '%s' must define transitions", where)
		}
	case e.Split != nil:
		if len(e.Split.Flows) == 0 {
			return invalid("split '%s' does not define any flows", where)
		}
		if te := e.Split.TaskExecutor; te != nil && te.Type != config.TaskExecutorSync && te.Type != config.TaskExecutorAsync {
			return invalid("split '%s': task-executor type must be '%s' or '%s', got '%s'", where, config.TaskExecutorSync, config.TaskExecutorAsync, te.Type)
		}
		for i := range e.Split.Flows {
			if err := validateFlow(fmt.Sprintf("%s[%d]", where, i), &e.Split.Flows[i]); err != nil {
				return err
			}
		}
	case e.Flow != nil:
		if err := validateFlow(where, e.Flow); err != nil {
			return err
		}
	case e.FlowStep != nil:
		if err := validateSettings(where, e.FlowStep.StepSettings); err != nil {
			return err
		}
		if err := validateFlow(where, &e.FlowStep.Flow); err != nil {
			return err
		}
	}

	if e.Next != "" {
		if len(e.Transitions) > 0 {
			return invalid("element '%s' cannot define both 'next' and 'transitions'", where)
		}
		if _, ok := f.Elements[e.Next]; !ok {
			return invalid("element '%s': next element '%s' is not defined", where, e.Next)
		}
	}
	for i, t := range e.Transitions {
		if err := validateTransition(fmt.Sprintf("%s transition[%d]", where, i), t, f); err != nil {
			return err
		}
	}
	return nil
}

func validateSettings(where string, s StepSettings) error {
	if s.StartLimit != nil && *s.StartLimit < 0 {
		return invalid("step '%s': start-limit must not be negative", where)
	}
	for _, l := range s.Listeners {
		if l.Ref == "" {
			return invalid("step '%s' has a listener without 'ref'", where)
		}
	}
	return nil
}

func validateTransition(where string, t Transition, f *Flow) error {
	if t.On == "" {
		return invalid("%s does not define 'on'", where)
	}
	targets := 0
	for _, set := range []bool{t.To != "", t.End, t.Fail, t.Stop} {
		if set {
			targets++
		}
	}
	if targets != 1 {
		return invalid("%s must define exactly one of to, end, fail and stop", where)
	}
	if t.To != "" {
		if _, ok := f.Elements[t.To]; !ok {
			return invalid("%s: target element '%s' is not defined", where, t.To)
		}
		if t.ExitCode != "" {
			return invalid("%s: exit-code is only valid with end, fail or stop", where)
		}
	}
	if t.Restart != "" {
		if !t.Stop {
			return invalid("%s: restart is only valid with stop", where)
		}
		if _, ok := f.Elements[t.Restart]; !ok {
			return invalid("%s: restart element '%s' is not defined", where, t.Restart)
		}
	}
	if t.Abandon && !t.Stop {
		return invalid("%s: abandon is only valid with stop", where)
	}
	return nil
}

// SortedElementIDs returns the element IDs of f in lexical order.
func SortedElementIDs(f *Flow) []string {
	ids := make([]string, 0, len(f.Elements))
	for id := range f.Elements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func invalid(format string, args ...interface{}) error {
	return exception.NewBatchError(loaderModule, fmt.Sprintf(format, args...), ErrInvalidDefinition, false, false)
}
