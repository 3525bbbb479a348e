package jsl

import (
	"fmt"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/job"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const builderModule = "jsl_builder"

// Registry resolves the component references of a job definition.
type Registry interface {
	BuildTasklet(ref ComponentRef) (port.Tasklet, error)
	BuildDecider(ref ComponentRef) (port.Decider, error)
	BuildJobListener(ref ComponentRef) (port.JobExecutionListener, error)
	BuildStepListener(ref ComponentRef) (port.StepExecutionListener, error)
}

// BuildOptions carries the collaborators of the jobs built from definitions.
type BuildOptions struct {
	Config       *config.Config
	Repository   repository.JobRepository
	TaskExecutor task.TaskExecutor
	Tracer       metrics.Tracer
	Registry     Registry

	// DefaultJobListeners and DefaultStepListeners are added to every job and step
	// ahead of the listeners the definition names.
	DefaultJobListeners  []ComponentRef
	DefaultStepListeners []ComponentRef

	TransitionObserver flow.TransitionObserver
	SplitObserver      flow.SplitObserver
}

// BuildJob converts a validated job definition into a FlowJob.
//
// Element IDs become state names; end, fail and stop transitions become end states named
// "<element>.<kind><index>". Transitions of a state are matched from the most specific
// pattern to the least specific one.
func BuildJob(def *Job, opts BuildOptions) (*job.FlowJob, error) {
	if opts.Config == nil {
		opts.Config = config.NewConfig()
	}
	if opts.Tracer == nil {
		opts.Tracer = metrics.NewNoOpTracer()
	}
	if opts.TaskExecutor == nil {
		opts.TaskExecutor = task.NewSyncTaskExecutor()
	}
	b := &builder{opts: opts}

	f, err := b.buildFlow(nameOr(def.Flow.ID, def.ID), &def.Flow)
	if err != nil {
		return nil, err
	}

	listeners, err := b.jobListeners(def.Listeners)
	if err != nil {
		return nil, err
	}
	restartable := true
	if def.Restartable != nil {
		restartable = *def.Restartable
	}

	logger.Debugf("JSL job '%s' built as flow job '%s' (%d listeners, restartable=%t).", def.ID, def.Name, len(listeners), restartable)
	return job.NewFlowJob(def.Name, f, opts.Repository,
		job.WithJobListeners(listeners...),
		job.WithRestartable(restartable),
		job.WithJobTracer(opts.Tracer),
	), nil
}

type builder struct {
	opts BuildOptions
}

func (b *builder) buildFlow(name string, f *Flow) (*flow.SimpleFlow, error) {
	ids := SortedElementIDs(f)
	states := make(map[string]flow.State, len(ids))
	for _, id := range ids {
		state, err := b.buildState(id, f.Elements[id])
		if err != nil {
			return nil, err
		}
		states[id] = state
	}

	var transitions []flow.StateTransition
	for _, id := range ids {
		e := f.Elements[id]
		state := states[id]
		switch {
		case e.Next != "":
			t, err := flow.NewStateTransition(state, "*", e.Next)
			if err != nil {
				return nil, err
			}
			transitions = append(transitions, t)
		case len(e.Transitions) == 0:
			t, err := flow.NewEndStateTransition(state, "*")
			if err != nil {
				return nil, err
			}
			transitions = append(transitions, t)
		default:
			for i, def := range e.Transitions {
				ts, err := buildTransitions(id, i, state, def)
				if err != nil {
					return nil, err
				}
				transitions = append(transitions, ts...)
			}
		}
	}

	options := []flow.Option{flow.WithStartState(f.StartElement), flow.WithSpecificityOrdering()}
	if b.opts.TransitionObserver != nil {
		options = append(options, flow.WithTransitionObserver(b.opts.TransitionObserver))
	}
	return flow.NewSimpleFlow(name, transitions, options...)
}

func buildTransitions(id string, index int, state flow.State, def Transition) ([]flow.StateTransition, error) {
	if def.To != "" {
		t, err := flow.NewStateTransition(state, def.On, def.To)
		if err != nil {
			return nil, err
		}
		return []flow.StateTransition{t}, nil
	}

	var (
		status model.FlowExecutionStatus
		kind   string
	)
	switch {
	case def.End:
		status, kind = model.FlowExecutionStatusCompleted, "end"
	case def.Fail:
		status, kind = model.FlowExecutionStatusFailed, "fail"
	default:
		status, kind = model.FlowExecutionStatusStopped, "stop"
	}
	endName := fmt.Sprintf("%s.%s%d", id, kind, index)
	end := flow.NewEndStateWithCode(endName, status, def.ExitCode, def.Abandon)

	in, err := flow.NewStateTransition(state, def.On, endName)
	if err != nil {
		return nil, err
	}
	out, err := flow.NewStateTransition(end, "*", def.Restart)
	if err != nil {
		return nil, err
	}
	return []flow.StateTransition{in, out}, nil
}

func (b *builder) buildState(id string, e Element) (flow.State, error) {
	switch {
	case e.Step != nil:
		tasklet, err := b.opts.Registry.BuildTasklet(e.Step.Tasklet)
		if err != nil {
			return nil, componentError(id, "tasklet", e.Step.Tasklet.Ref, err)
		}
		opts, err := b.stepOptions(id, e.Step.StepSettings)
		if err != nil {
			return nil, err
		}
		return flow.NewStepState(step.NewTaskletStep(id, tasklet, b.opts.Repository, opts...)), nil

	case e.Decision != nil:
		decider, err := b.opts.Registry.BuildDecider(e.Decision.Decider)
		if err != nil {
			return nil, componentError(id, "decider", e.Decision.Decider.Ref, err)
		}
		return flow.NewDecisionState(id, decider), nil

	case e.Split != nil:
		flows := make([]flow.Flow, 0, len(e.Split.Flows))
		for i := range e.Split.Flows {
			f, err := b.buildFlow(nameOr(e.Split.Flows[i].ID, fmt.Sprintf("%s-%d", id, i)), &e.Split.Flows[i])
			if err != nil {
				return nil, err
			}
			flows = append(flows, f)
		}
		executor := b.opts.TaskExecutor
		if te := e.Split.TaskExecutor; te != nil {
			var err error
			executor, err = task.NewTaskExecutor(config.SplitConfig{TaskExecutor: te.Type, ConcurrencyLimit: te.ConcurrencyLimit})
			if err != nil {
				return nil, exception.NewBatchError(builderModule, fmt.Sprintf("split '%s': invalid task executor", id), err, false, false)
			}
		}
		var opts []flow.SplitOption
		if b.opts.SplitObserver != nil {
			opts = append(opts, flow.WithSplitObserver(b.opts.SplitObserver))
		}
		return flow.NewSplitState(id, flows, executor, opts...), nil

	case e.Flow != nil:
		f, err := b.buildFlow(nameOr(e.Flow.ID, id), e.Flow)
		if err != nil {
			return nil, err
		}
		return flow.NewFlowState(id, f), nil

	case e.FlowStep != nil:
		f, err := b.buildFlow(nameOr(e.FlowStep.Flow.ID, id), &e.FlowStep.Flow)
		if err != nil {
			return nil, err
		}
		opts, err := b.stepOptions(id, e.FlowStep.StepSettings)
		if err != nil {
			return nil, err
		}
		return flow.NewStepState(job.NewFlowStep(id, f, b.opts.Repository, opts...)), nil
	}
	return nil, exception.NewBatchError(builderModule, fmt.Sprintf("element '%s' has no kind", id), ErrInvalidDefinition, false, false)
}

// stepOptions applies the batch.step defaults, then the settings of the element.
func (b *builder) stepOptions(id string, s StepSettings) ([]step.Option, error) {
	defaults := b.opts.Config.Surfin.Batch.Step

	startLimit := defaults.StartLimit
	if s.StartLimit != nil {
		startLimit = *s.StartLimit
	}
	allow := defaults.AllowStartIfComplete
	if s.AllowStartIfComplete != nil {
		allow = *s.AllowStartIfComplete
	}
	mappings := make(map[string]string, len(defaults.ExitCodeMappings)+len(s.ExitCodeMappings))
	for k, v := range defaults.ExitCodeMappings {
		mappings[k] = v
	}
	for k, v := range s.ExitCodeMappings {
		mappings[k] = v
	}

	refs := append(append([]ComponentRef(nil), b.opts.DefaultStepListeners...), s.Listeners...)
	listeners := make([]port.StepExecutionListener, 0, len(refs))
	for _, ref := range refs {
		l, err := b.opts.Registry.BuildStepListener(ref)
		if err != nil {
			return nil, componentError(id, "step listener", ref.Ref, err)
		}
		listeners = append(listeners, l)
	}

	return []step.Option{
		step.WithStartLimit(startLimit),
		step.WithAllowStartIfComplete(allow),
		step.WithExitCodeMappings(mappings),
		step.WithListeners(listeners...),
		step.WithTracer(b.opts.Tracer),
	}, nil
}

func (b *builder) jobListeners(own []ComponentRef) ([]port.JobExecutionListener, error) {
	refs := append(append([]ComponentRef(nil), b.opts.DefaultJobListeners...), own...)
	listeners := make([]port.JobExecutionListener, 0, len(refs))
	for _, ref := range refs {
		l, err := b.opts.Registry.BuildJobListener(ref)
		if err != nil {
			return nil, componentError("job", "job listener", ref.Ref, err)
		}
		listeners = append(listeners, l)
	}
	return listeners, nil
}

func componentError(id, kind, ref string, err error) error {
	return exception.NewBatchError(builderModule, fmt.Sprintf("element '%s': failed to build %s '%s'", id, kind, ref), err, false, false)
}

func nameOr(name, fallback string) string {
	if name != "" {
		return name
	}
	return fallback
}
