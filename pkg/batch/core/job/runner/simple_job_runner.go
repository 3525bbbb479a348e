package runner

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/incrementer"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/serialization"
)

// JobRunner launches a job for a set of job parameters.
type JobRunner interface {
	// Run creates a JobExecution for job and params and executes it synchronously.
	//
	// Parameters:
	//   ctx: The context for the operation. Cancellation interrupts the running steps.
	//   job: The job to run.
	//   params: The identifying parameters of the job instance.
	//
	// Returns:
	//   *model.JobExecution: The finished execution. Its status reports the outcome.
	//   error: An error if no execution could be created or its final state could not be persisted.
	Run(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error)
	// RunNext runs a new instance of job. params is advanced with inc until it identifies
	// an instance that has never run.
	RunNext(ctx context.Context, job port.Job, params model.JobParameters, inc incrementer.JobParametersIncrementer) (*model.JobExecution, error)
}

// SimpleJobRunner is an implementation of JobRunner that creates the execution in the JobRepository
// and calls the job's Execute method.
type SimpleJobRunner struct {
	jobRepository repository.JobRepository
	tracer        metrics.Tracer
	maskedKeys    []string
}

var _ JobRunner = (*SimpleJobRunner)(nil)

// NewSimpleJobRunner creates an instance of SimpleJobRunner.
// Parameters named in maskedKeys are masked when the job parameters are logged.
func NewSimpleJobRunner(repo repository.JobRepository, tracer metrics.Tracer, maskedKeys []string) *SimpleJobRunner {
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &SimpleJobRunner{jobRepository: repo, tracer: tracer, maskedKeys: maskedKeys}
}

// Run launches job. An earlier execution of the same instance is only restarted when the job is restartable.
func (r *SimpleJobRunner) Run(ctx context.Context, job port.Job, params model.JobParameters) (*model.JobExecution, error) {
	last, err := r.jobRepository.GetLastJobExecution(ctx, job.Name(), params)
	if err != nil {
		return nil, exception.NewBatchError(job.Name(), "Failed to look up the last JobExecution", err, false, false)
	}
	if last != nil {
		if !job.IsRestartable() {
			return nil, exception.NewBatchError(job.Name(), "JobInstance already exists and is not restartable", exception.ErrJobRestart, false, false)
		}
		for _, se := range last.StepExecutions() {
			if se.Status.IsRunning() {
				return nil, exception.NewBatchError(job.Name(),
					"Step ["+se.StepName+"] is of status "+se.Status.String()+", so it may be dangerous to proceed. Manual intervention is probably necessary.",
					exception.ErrJobRestart, false, false)
			}
		}
		logger.Infof("JobRunner: Restarting Job '%s' (last execution %s ended as %s).", job.Name(), last.ID, last.GetStatus())
	}

	jobExecution, err := r.jobRepository.CreateJobExecution(ctx, job.Name(), params)
	if err != nil {
		r.tracer.RecordError(ctx, "job_runner", err)
		return nil, err
	}

	logger.Infof("JobRunner: Job '%s' launched with parameters %v.", job.Name(), serialization.MaskParameters(params.Params, r.maskedKeys))
	if err := job.Execute(ctx, jobExecution); err != nil {
		logger.Errorf("JobRunner: Failed to update final JobExecution (ID: %s) state: %v", jobExecution.ID, err)
		return jobExecution, err
	}
	logger.Infof("JobRunner: Job '%s' completed with status %s.", job.Name(), jobExecution.GetStatus())
	return jobExecution, nil
}

// RunNext implements JobRunner.
func (r *SimpleJobRunner) RunNext(ctx context.Context, job port.Job, params model.JobParameters, inc incrementer.JobParametersIncrementer) (*model.JobExecution, error) {
	next := inc.GetNext(params)
	for {
		last, err := r.jobRepository.GetLastJobExecution(ctx, job.Name(), next)
		if err != nil {
			return nil, exception.NewBatchError(job.Name(), "Failed to look up the last JobExecution", err, false, false)
		}
		if last == nil {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		next = inc.GetNext(next)
	}
	return r.Run(ctx, job, next)
}
