// Package support provides the central JobFactory that turns JSL job definitions into
// executable flow jobs using registered component builders.
package support

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/fx"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	exception "github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

const module = "job_factory"

// JobFactory is a central factory for constructing jobs from JSL (Job Specification Language)
// definitions. It manages named builder functions for tasklets, deciders and listeners, the
// listeners applied to every job and step, and the observers attached to every flow and split.
type JobFactory struct {
	config        *config.Config
	jobRepository repository.JobRepository
	taskExecutor  task.TaskExecutor
	tracer        metrics.Tracer

	mu                   sync.RWMutex
	definitions          map[string]*jsl.Job
	taskletBuilders      map[string]jsl.TaskletBuilder
	deciderBuilders      map[string]jsl.DeciderBuilder
	jobListenerBuilders  map[string]jsl.JobExecutionListenerBuilder
	stepListenerBuilders map[string]jsl.StepExecutionListenerBuilder
	defaultJobListeners  []jsl.ComponentRef
	defaultStepListeners []jsl.ComponentRef
	transitionObservers  []flow.TransitionObserver
	splitObservers       []flow.SplitObserver
}

// JobFactoryParams defines the parameters that the NewJobFactory function
// receives via dependency injection (Fx).
type JobFactoryParams struct {
	fx.In
	Repo         repository.JobRepository
	Cfg          *config.Config
	TaskExecutor task.TaskExecutor
	Tracer       metrics.Tracer
}

// NewJobFactory creates a new instance of JobFactory.
func NewJobFactory(p JobFactoryParams) *JobFactory {
	return &JobFactory{
		config:               p.Cfg,
		jobRepository:        p.Repo,
		taskExecutor:         p.TaskExecutor,
		tracer:               p.Tracer,
		definitions:          make(map[string]*jsl.Job),
		taskletBuilders:      make(map[string]jsl.TaskletBuilder),
		deciderBuilders:      make(map[string]jsl.DeciderBuilder),
		jobListenerBuilders:  make(map[string]jsl.JobExecutionListenerBuilder),
		stepListenerBuilders: make(map[string]jsl.StepExecutionListenerBuilder),
	}
}

// GetConfig returns a reference to the Config held by the JobFactory.
func (f *JobFactory) GetConfig() *config.Config {
	return f.config
}

// RegisterTaskletBuilder registers a Tasklet builder function with the given name.
func (f *JobFactory) RegisterTaskletBuilder(name string, builder jsl.TaskletBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.taskletBuilders[name] = builder
}

// RegisterDeciderBuilder registers a Decider builder function with the given name.
func (f *JobFactory) RegisterDeciderBuilder(name string, builder jsl.DeciderBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deciderBuilders[name] = builder
}

// RegisterJobListenerBuilder registers a JobExecutionListener builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the listener.
//	builder: The function to build the JobExecutionListener.
func (f *JobFactory) RegisterJobListenerBuilder(name string, builder jsl.JobExecutionListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobListenerBuilders[name] = builder
}

// RegisterStepExecutionListenerBuilder registers a StepExecutionListener builder function with the given name.
//
// Parameters:
//
//	name: The reference name of the listener.
//	builder: The function to build the StepExecutionListener.
func (f *JobFactory) RegisterStepExecutionListenerBuilder(name string, builder jsl.StepExecutionListenerBuilder) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stepListenerBuilders[name] = builder
}

// AddDefaultJobListener applies the named job listener to every job created afterwards.
func (f *JobFactory) AddDefaultJobListener(name string, properties map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultJobListeners = append(f.defaultJobListeners, jsl.ComponentRef{Ref: name, Properties: properties})
}

// AddDefaultStepListener applies the named step listener to every step created afterwards.
func (f *JobFactory) AddDefaultStepListener(name string, properties map[string]interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.defaultStepListeners = append(f.defaultStepListeners, jsl.ComponentRef{Ref: name, Properties: properties})
}

// AddTransitionObserver attaches observer to every flow created afterwards.
func (f *JobFactory) AddTransitionObserver(observer flow.TransitionObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.transitionObservers = append(f.transitionObservers, observer)
}

// AddSplitObserver attaches observer to every split created afterwards.
func (f *JobFactory) AddSplitObserver(observer flow.SplitObserver) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.splitObservers = append(f.splitObservers, observer)
}

// RegisterJobDefinition validates def and makes it available to CreateJob under def.ID.
func (f *JobFactory) RegisterJobDefinition(def *jsl.Job) error {
	if err := jsl.Validate(def); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.definitions[def.ID]; exists {
		return exception.NewBatchError(module, fmt.Sprintf("JSL Job ID '%s' is duplicated", def.ID), jsl.ErrInvalidDefinition, false, false)
	}
	f.definitions[def.ID] = def
	logger.Debugf("JobFactory: definition of job '%s' registered.", def.ID)
	return nil
}

// LoadJobDefinition parses a JSL document and registers it.
func (f *JobFactory) LoadJobDefinition(data jsl.JSLDefinitionBytes) (*jsl.Job, error) {
	def, err := jsl.LoadJSLDefinitionFromBytes(data)
	if err != nil {
		return nil, err
	}
	if err := f.RegisterJobDefinition(def); err != nil {
		return nil, err
	}
	return def, nil
}

// JobIDs returns the IDs of the registered definitions in lexical order.
func (f *JobFactory) JobIDs() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ids := make([]string, 0, len(f.definitions))
	for id := range f.definitions {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CreateJob constructs the job registered under jobID. Every call builds fresh steps,
// components and listeners.
//
// Parameters:
//
//	jobID: The ID of the job definition.
//
// Returns:
//
//	The constructed port.Job interface and an error.
//	Returns an error wrapping exception.ErrNoSuchJob if the definition is not found,
//	or jsl.ErrUnknownComponent if a referenced builder is not registered.
func (f *JobFactory) CreateJob(jobID string) (port.Job, error) {
	f.mu.RLock()
	def, ok := f.definitions[jobID]
	opts := jsl.BuildOptions{
		Config:               f.config,
		Repository:           f.jobRepository,
		TaskExecutor:         f.taskExecutor,
		Tracer:               f.tracer,
		Registry:             f,
		DefaultJobListeners:  append([]jsl.ComponentRef(nil), f.defaultJobListeners...),
		DefaultStepListeners: append([]jsl.ComponentRef(nil), f.defaultStepListeners...),
		TransitionObserver:   fanOutTransitions(f.transitionObservers),
		SplitObserver:        fanOutSplits(f.splitObservers),
	}
	f.mu.RUnlock()
	if !ok {
		return nil, exception.NewBatchError(module, fmt.Sprintf("JSL definition for Job '%s' not found", jobID), exception.ErrNoSuchJob, false, false)
	}

	j, err := jsl.BuildJob(def, opts)
	if err != nil {
		return nil, exception.NewBatchError(module, fmt.Sprintf("Failed to build job '%s'", jobID), err, false, false)
	}
	return j, nil
}

// BuildTasklet implements jsl.Registry.
func (f *JobFactory) BuildTasklet(ref jsl.ComponentRef) (port.Tasklet, error) {
	f.mu.RLock()
	builder, ok := f.taskletBuilders[ref.Ref]
	f.mu.RUnlock()
	if !ok {
		return nil, unknown("Tasklet", ref.Ref)
	}
	return builder(f.config, ref.Properties)
}

// BuildDecider implements jsl.Registry.
func (f *JobFactory) BuildDecider(ref jsl.ComponentRef) (port.Decider, error) {
	f.mu.RLock()
	builder, ok := f.deciderBuilders[ref.Ref]
	f.mu.RUnlock()
	if !ok {
		return nil, unknown("Decider", ref.Ref)
	}
	return builder(f.config, ref.Properties)
}

// BuildJobListener implements jsl.Registry.
func (f *JobFactory) BuildJobListener(ref jsl.ComponentRef) (port.JobExecutionListener, error) {
	f.mu.RLock()
	builder, ok := f.jobListenerBuilders[ref.Ref]
	f.mu.RUnlock()
	if !ok {
		return nil, unknown("JobExecutionListener", ref.Ref)
	}
	return builder(f.config, ref.Properties)
}

// BuildStepListener implements jsl.Registry.
func (f *JobFactory) BuildStepListener(ref jsl.ComponentRef) (port.StepExecutionListener, error) {
	f.mu.RLock()
	builder, ok := f.stepListenerBuilders[ref.Ref]
	f.mu.RUnlock()
	if !ok {
		return nil, unknown("StepExecutionListener", ref.Ref)
	}
	return builder(f.config, ref.Properties)
}

var _ jsl.Registry = (*JobFactory)(nil)

func unknown(kind, ref string) error {
	return exception.NewBatchError(module, fmt.Sprintf("%s builder '%s' not registered", kind, ref), jsl.ErrUnknownComponent, false, false)
}

func fanOutTransitions(observers []flow.TransitionObserver) flow.TransitionObserver {
	if len(observers) == 0 {
		return nil
	}
	observers = append([]flow.TransitionObserver(nil), observers...)
	return func(ctx context.Context, flowName, from string, status model.FlowExecutionStatus, to string) {
		for _, o := range observers {
			o(ctx, flowName, from, status, to)
		}
	}
}

func fanOutSplits(observers []flow.SplitObserver) flow.SplitObserver {
	if len(observers) == 0 {
		return nil
	}
	observers = append([]flow.SplitObserver(nil), observers...)
	return func(ctx context.Context, splitName string, flows int, status model.FlowExecutionStatus, duration time.Duration) {
		for _, o := range observers {
			o(ctx, splitName, flows, status, duration)
		}
	}
}
