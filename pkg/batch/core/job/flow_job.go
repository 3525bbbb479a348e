package job

import (
	"context"
	"errors"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/listener"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// FlowJob is a port.Job that runs a flow.
type FlowJob struct {
	name          string
	flow          flow.Flow
	jobRepository repository.JobRepository
	listeners     *listener.CompositeJobExecutionListener
	restartable   bool
	tracer        metrics.Tracer
}

var (
	_ port.Job         = (*FlowJob)(nil)
	_ port.StepLocator = (*FlowJob)(nil)
)

// FlowJobOption configures a FlowJob.
type FlowJobOption func(*FlowJob)

// WithJobListeners registers job execution listeners.
func WithJobListeners(listeners ...port.JobExecutionListener) FlowJobOption {
	return func(j *FlowJob) {
		for _, l := range listeners {
			j.listeners.Register(l)
		}
	}
}

// WithRestartable sets whether a failed or stopped instance may be restarted. Jobs are restartable by default.
func WithRestartable(restartable bool) FlowJobOption {
	return func(j *FlowJob) { j.restartable = restartable }
}

// WithJobTracer sets the tracer used for the job span.
func WithJobTracer(tracer metrics.Tracer) FlowJobOption {
	return func(j *FlowJob) {
		if tracer != nil {
			j.tracer = tracer
		}
	}
}

// NewFlowJob creates a new instance of FlowJob.
func NewFlowJob(name string, f flow.Flow, jobRepository repository.JobRepository, opts ...FlowJobOption) *FlowJob {
	j := &FlowJob{
		name:          name,
		flow:          f,
		jobRepository: jobRepository,
		listeners:     listener.NewCompositeJobExecutionListener(),
		restartable:   true,
		tracer:        metrics.NewNoOpTracer(),
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

func (j *FlowJob) Name() string {
	return j.name
}

func (j *FlowJob) IsRestartable() bool {
	return j.restartable
}

// Flow returns the flow the job runs.
func (j *FlowJob) Flow() flow.Flow {
	return j.flow
}

// RegisterListener adds a job execution listener after construction.
func (j *FlowJob) RegisterListener(l port.JobExecutionListener) {
	j.listeners.Register(l)
}

// StepNames returns the names of every step reachable from the flow, nested flows included.
func (j *FlowJob) StepNames() []string {
	if locator, ok := j.flow.(port.StepLocator); ok {
		return locator.StepNames()
	}
	return nil
}

// GetStep looks a step up by name across the flow and its nested flows.
func (j *FlowJob) GetStep(name string) (port.Step, error) {
	if locator, ok := j.flow.(port.StepLocator); ok {
		return locator.GetStep(name)
	}
	return nil, port.ErrStepNotFound
}

// Execute runs the job for jobExecution. Failures are recorded on the execution; the returned
// error reports only that the final state could not be persisted.
func (j *FlowJob) Execute(ctx context.Context, jobExecution *model.JobExecution) error {
	logger.Infof("Starting Job '%s' (Execution ID: %s).", j.name, jobExecution.ID)

	ctx, finishSpan := j.tracer.StartJobSpan(ctx, jobExecution)
	defer finishSpan()

	if err := j.run(ctx, jobExecution); err != nil {
		j.recordFailure(ctx, jobExecution, err)
	}

	if jobExecution.GetStatus().IsLessThanOrEqualTo(model.BatchStatusStopped) && len(jobExecution.StepExecutions()) == 0 {
		noop := model.ExitStatusNoop.AddExitDescription("All steps already completed or no steps configured for this job.")
		jobExecution.SetExitStatus(jobExecution.GetExitStatus().And(noop))
	}
	jobExecution.MarkAsEnded()

	j.listeners.AfterJob(ctx, jobExecution)

	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		logger.Errorf("Job '%s': Failed to update final JobExecution (ID: %s) state: %v", j.name, jobExecution.ID, err)
		return exception.NewBatchError(j.name, "Failed to persist the final JobExecution state", err, false, false)
	}

	logger.Infof("Job '%s' (Execution ID: %s) finished. Final Status: %s, Exit Status: %s",
		j.name, jobExecution.ID, jobExecution.GetStatus(), jobExecution.GetExitStatus())
	return nil
}

func (j *FlowJob) run(ctx context.Context, jobExecution *model.JobExecution) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = exception.FromPanic(j.name, r)
		}
	}()

	if jobExecution.IsStopping() {
		// Stopped before it got this far.
		jobExecution.SetStatus(model.BatchStatusStopped)
		jobExecution.SetExitStatus(model.ExitStatusCompleted)
		return nil
	}

	jobExecution.MarkAsStarted()
	if err := j.jobRepository.UpdateJobExecution(ctx, jobExecution); err != nil {
		return exception.NewBatchError(j.name, "Failed to persist JobExecution as STARTED", err, false, false)
	}
	j.listeners.BeforeJob(ctx, jobExecution)

	handler := NewSimpleStepHandler(j.jobRepository, nil)
	executor := NewFlowExecutor(j.jobRepository, handler, jobExecution)
	result, err := j.flow.Start(ctx, executor)
	if err != nil {
		return err
	}
	executor.UpdateJobExecutionStatus(result.Status)
	return nil
}

// recordFailure maps an error that ended the job onto its status and exit status.
func (j *FlowJob) recordFailure(ctx context.Context, jobExecution *model.JobExecution, err error) {
	j.tracer.RecordError(ctx, j.name, err)
	jobExecution.SetExitStatus(exitStatusForFailure(err))
	if status, ok := step.InterruptedStatus(err); ok {
		logger.Infof("Job '%s': Encountered interruption executing job: %v", j.name, err)
		jobExecution.SetStatus(model.MaxBatchStatus(model.BatchStatusStopped, status))
	} else {
		logger.Errorf("Job '%s': Encountered fatal error executing job: %v", j.name, err)
		jobExecution.SetStatus(model.BatchStatusFailed)
	}
	jobExecution.AddFailureException(err)
}

func exitStatusForFailure(err error) model.ExitStatus {
	switch {
	case errors.Is(err, exception.ErrJobInterrupted):
		return model.ExitStatusStopped.AddExitDescription(exception.JobInterruptedException)
	case errors.Is(err, exception.ErrNoSuchJob):
		return model.NewExitStatus(model.ExitCodeNoSuchJob).AddExitDescriptionFromError(err)
	default:
		return model.ExitStatusFailed.AddExitDescriptionFromError(err)
	}
}
