// Package step implements the step execution lifecycle shared by every step type,
// and the tasklet-oriented step built on it.
package step

import (
	"context"
	"errors"
	"sort"

	"github.com/hashicorp/go-multierror"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/listener"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Body is the work a step performs between opening and closing its streams.
type Body interface {
	DoExecute(ctx context.Context, stepExecution *model.StepExecution) error
}

// BodyFunc adapts a function to Body.
type BodyFunc func(ctx context.Context, stepExecution *model.StepExecution) error

func (f BodyFunc) DoExecute(ctx context.Context, stepExecution *model.StepExecution) error {
	return f(ctx, stepExecution)
}

// Releaser is implemented by bodies holding per-execution resources that must be dropped
// once the step execution is finished, whatever its outcome.
type Releaser interface {
	Release(stepExecution *model.StepExecution)
}

// AbstractStep runs a Body inside the common step lifecycle: status bookkeeping,
// listener callbacks, stream handling, exit status mapping and persistence.
type AbstractStep struct {
	name                 string
	body                 Body
	repository           repository.StepExecution
	listeners            *listener.CompositeStepExecutionListener
	streams              []port.Stream
	startLimit           int
	allowStartIfComplete bool
	interruptionPolicy   InterruptionPolicy
	exitCodeMappings     map[string]string
	tracer               metrics.Tracer
}

var _ port.Step = (*AbstractStep)(nil)

// Option configures an AbstractStep.
type Option func(*AbstractStep)

// WithStartLimit sets how often the step may be started per job instance. Values <= 0 mean unlimited.
func WithStartLimit(limit int) Option {
	return func(s *AbstractStep) { s.startLimit = limit }
}

// WithAllowStartIfComplete lets a completed step run again when its job is restarted.
func WithAllowStartIfComplete(allow bool) Option {
	return func(s *AbstractStep) { s.allowStartIfComplete = allow }
}

// WithListeners registers step execution listeners.
func WithListeners(listeners ...port.StepExecutionListener) Option {
	return func(s *AbstractStep) {
		for _, l := range listeners {
			s.listeners.Register(l)
		}
	}
}

// WithStreams registers streams that are opened before and closed after the body.
func WithStreams(streams ...port.Stream) Option {
	return func(s *AbstractStep) { s.streams = append(s.streams, streams...) }
}

// WithInterruptionPolicy replaces DefaultInterruptionPolicy.
func WithInterruptionPolicy(policy InterruptionPolicy) Option {
	return func(s *AbstractStep) {
		if policy != nil {
			s.interruptionPolicy = policy
		}
	}
}

// WithExitCodeMappings maps registered error type names to the exit code a failing step reports.
func WithExitCodeMappings(mappings map[string]string) Option {
	return func(s *AbstractStep) {
		for k, v := range mappings {
			s.exitCodeMappings[k] = v
		}
	}
}

// WithTracer sets the tracer used for the step span.
func WithTracer(tracer metrics.Tracer) Option {
	return func(s *AbstractStep) {
		if tracer != nil {
			s.tracer = tracer
		}
	}
}

// NewAbstractStep creates a step named name that runs body.
//
// Parameters:
//
//	name: The logical step name.
//	body: The work performed by the step.
//	repo: Receives the step execution and its context updates.
//	opts: Optional settings.
//
// Returns:
//
//	*AbstractStep: The configured step.
func NewAbstractStep(name string, body Body, repo repository.StepExecution, opts ...Option) *AbstractStep {
	s := &AbstractStep{
		name:               name,
		body:               body,
		repository:         repo,
		listeners:          listener.NewCompositeStepExecutionListener(),
		interruptionPolicy: DefaultInterruptionPolicy{},
		exitCodeMappings:   make(map[string]string),
		tracer:             metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *AbstractStep) Name() string {
	return s.name
}

func (s *AbstractStep) StartLimit() int {
	return s.startLimit
}

func (s *AbstractStep) IsAllowStartIfComplete() bool {
	return s.allowStartIfComplete
}

// RegisterListener adds a step execution listener after construction.
func (s *AbstractStep) RegisterListener(l port.StepExecutionListener) {
	s.listeners.Register(l)
}

// RegisterStream adds a stream after construction.
func (s *AbstractStep) RegisterStream(stream port.Stream) {
	s.streams = append(s.streams, stream)
}

// InterruptionPolicy returns the policy bodies poll between units of work.
func (s *AbstractStep) InterruptionPolicy() InterruptionPolicy {
	return s.interruptionPolicy
}

// Execute runs the step lifecycle for stepExecution.
// Failures of the body, the listeners, the streams and persistence are recorded on stepExecution.
// The only error returned is a failure to persist the STARTED status, in which case nothing else ran.
func (s *AbstractStep) Execute(ctx context.Context, stepExecution *model.StepExecution) error {
	logger.Debugf("Executing step: [%s]", s.name)

	stepExecution.MarkAsStarted()
	ctx = port.GetContextWithStepExecution(ctx, stepExecution)
	ctx, endSpan := s.tracer.StartStepSpan(ctx, stepExecution)
	defer endSpan()

	if err := s.repository.UpdateStepExecution(ctx, stepExecution); err != nil {
		s.tracer.RecordError(ctx, s.name, err)
		return exception.NewBatchError(s.name, "Failed to persist StepExecution as STARTED", err, false, false)
	}

	exitStatus := model.ExitStatusExecuting
	if err := s.run(ctx, stepExecution); err != nil {
		stepExecution.UpgradeStatus(determineBatchStatus(err))
		exitStatus = s.exitStatusForFailure(err)
		stepExecution.AddFailureException(err)
		s.tracer.RecordError(ctx, s.name, err)
		if stepExecution.Status == model.BatchStatusStopped {
			logger.Infof("Step '%s' was interrupted: %v", s.name, err)
		} else {
			logger.Errorf("Encountered an error executing step '%s': %v", s.name, err)
		}
	} else {
		exitStatus = model.ExitStatusCompleted.And(stepExecution.ExitStatus)
		stepExecution.UpgradeStatus(model.BatchStatusCompleted)
		logger.Debugf("Step execution success: id=%s", stepExecution.ID)
	}

	stepExecution.ExitStatus = exitStatus
	exitStatus = exitStatus.And(s.listeners.AfterStep(ctx, stepExecution))
	stepExecution.ExitStatus = exitStatus

	if err := s.repository.UpdateStepExecutionContext(ctx, stepExecution); err != nil {
		exitStatus = s.markUnknown(ctx, stepExecution, exitStatus, err)
	}

	stepExecution.MarkAsEnded()
	stepExecution.ExitStatus = exitStatus
	if err := s.repository.UpdateStepExecution(ctx, stepExecution); err != nil {
		s.markUnknown(ctx, stepExecution, exitStatus, err)
	}

	if err := s.closeStreams(ctx); err != nil {
		logger.Errorf("Step '%s': exception while closing step execution resources: %v", s.name, err)
		var merr *multierror.Error
		if errors.As(err, &merr) {
			for _, e := range merr.Errors {
				stepExecution.AddFailureException(e)
			}
		} else {
			stepExecution.AddFailureException(err)
		}
	}

	if r, ok := s.body.(Releaser); ok {
		r.Release(stepExecution)
	}

	logger.Debugf("Step '%s' finished. Status: %s, %s", s.name, stepExecution.Status, stepExecution.ExitStatus)
	return nil
}

// run covers the part of the lifecycle whose failures are mapped to a FAILED or STOPPED step.
func (s *AbstractStep) run(ctx context.Context, stepExecution *model.StepExecution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.FromPanic(s.name, r)
		}
	}()

	s.listeners.BeforeStep(ctx, stepExecution)
	if err := s.openStreams(ctx, stepExecution.ExecutionContext); err != nil {
		return err
	}
	if err := s.body.DoExecute(ctx, stepExecution); err != nil {
		return err
	}
	if stepExecution.IsTerminateOnly() {
		return NewJobInterruptedError("JobExecution interrupted.")
	}
	return nil
}

func (s *AbstractStep) openStreams(ctx context.Context, ec *model.ExecutionContext) error {
	for _, stream := range s.streams {
		if err := stream.Open(ctx, ec); err != nil {
			return exception.NewBatchError(s.name, "Failed to open stream", err, false, false)
		}
	}
	return nil
}

func (s *AbstractStep) closeStreams(ctx context.Context) error {
	var result *multierror.Error
	for _, stream := range s.streams {
		if err := stream.Close(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// markUnknown flags a step whose meta data could not be saved.
func (s *AbstractStep) markUnknown(ctx context.Context, stepExecution *model.StepExecution, exitStatus model.ExitStatus, err error) model.ExitStatus {
	stepExecution.Status = model.BatchStatusUnknown
	stepExecution.AddFailureException(err)
	s.tracer.RecordError(ctx, s.name, err)
	logger.Errorf("Encountered an error saving batch meta data for step %s in job %s. "+
		"This job is now in an unknown state and should not be restarted: %v",
		s.name, jobNameOf(stepExecution), err)
	exitStatus = exitStatus.And(model.ExitStatusUnknown)
	stepExecution.ExitStatus = exitStatus
	return exitStatus
}

// exitStatusForFailure returns the exit status a step reports when err ended it.
// Configured mappings take precedence over the defaults; they are tried in key order.
func (s *AbstractStep) exitStatusForFailure(err error) model.ExitStatus {
	var status model.ExitStatus
	switch {
	case isInterruption(err):
		status = model.ExitStatusStopped.AddExitDescriptionFromError(err)
	case errors.Is(err, exception.ErrNoSuchJob):
		status = model.NewExitStatus(model.ExitCodeNoSuchJob).AddExitDescriptionFromError(err)
	default:
		status = model.ExitStatusFailed.AddExitDescriptionFromError(err)
	}

	names := make([]string, 0, len(s.exitCodeMappings))
	for name := range s.exitCodeMappings {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if exception.IsErrorOfType(err, name) {
			return status.ReplaceExitCode(s.exitCodeMappings[name])
		}
	}
	return status
}

func isInterruption(err error) bool {
	_, ok := InterruptedStatus(err)
	return ok
}

func determineBatchStatus(err error) model.BatchStatus {
	if status, ok := InterruptedStatus(err); ok {
		return status
	}
	return model.BatchStatusFailed
}

func jobNameOf(stepExecution *model.StepExecution) string {
	if stepExecution.JobExecution == nil {
		return ""
	}
	return stepExecution.JobExecution.JobName
}
