package inmemory

import (
	"context"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// CreateJobExecution finds or creates the JobInstance for jobName and params and stores a new
// JobExecution for it. A relaunch is refused while an execution is running, after an execution
// ended UNKNOWN, and once an execution completed. On restart the new execution starts with a
// copy of the previous execution's context.
func (r *InMemoryJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(jobName, "Failed to hash JobParameters", err, false, false)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	instance := r.findInstance(jobName, hash)
	lastContext := []byte("{}")
	if instance != nil {
		records := r.executionsOf(instance.ID)
		executions := make([]*model.JobExecution, 0, len(records))
		for _, rec := range records {
			je, err := r.toJobExecution(rec, instance, false)
			if err != nil {
				return nil, err
			}
			executions = append(executions, je)
		}
		if err := repository.CheckRelaunch(jobName, executions); err != nil {
			return nil, err
		}
		if len(records) > 0 {
			lastContext = records[0].Context
		}
	} else {
		instance, err = model.NewJobInstance(jobName, params)
		if err != nil {
			return nil, exception.NewBatchError(jobName, "Failed to create JobInstance", err, false, false)
		}
		r.putInstance(instance)
	}

	je := model.NewJobExecution(copyInstance(instance))
	ec, err := unmarshalContext(lastContext)
	if err != nil {
		return nil, err
	}
	je.ExecutionContext = ec

	rec := &jobExecutionRecord{seq: r.nextSeq(), ID: je.ID, InstanceID: instance.ID, CreateTime: je.CreateTime}
	if err := rec.fill(je); err != nil {
		return nil, err
	}
	r.jobExecutions[je.ID] = rec
	logger.Debugf("JobExecution (ID: %s) created for JobInstance (ID: %s, job: %s).", je.ID, instance.ID, jobName)
	return je, nil
}

// UpdateJobExecution updates an existing JobExecution and increments its Version.
func (r *InMemoryJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobExecutions[jobExecution.ID]
	if !ok {
		return repository.ErrJobExecutionNotFound
	}
	if rec.Version != jobExecution.Version {
		return exception.NewOptimisticLockingFailureException("inmemory",
			"Attempt to update job execution id="+jobExecution.ID+" with wrong version", nil)
	}
	if err := rec.fill(jobExecution); err != nil {
		return err
	}
	rec.Version++
	jobExecution.Version = rec.Version
	return nil
}

// UpdateJobExecutionContext stores only the ExecutionContext of jobExecution.
func (r *InMemoryJobRepository) UpdateJobExecutionContext(ctx context.Context, jobExecution *model.JobExecution) error {
	data, err := marshalContext(jobExecution.ExecutionContext)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.jobExecutions[jobExecution.ID]
	if !ok {
		return repository.ErrJobExecutionNotFound
	}
	rec.Context = data
	return nil
}

// GetLastJobExecution returns the newest execution of the instance for jobName and params, or nil.
func (r *InMemoryJobRepository) GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance := r.findInstance(jobName, hash)
	if instance == nil {
		return nil, nil
	}
	records := r.executionsOf(instance.ID)
	if len(records) == 0 {
		return nil, nil
	}
	return r.toJobExecution(records[0], instance, true)
}

// FindJobExecutionByID finds a JobExecution by its ID, including its StepExecutions.
func (r *InMemoryJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.jobExecutions[id]
	if !ok {
		return nil, repository.ErrJobExecutionNotFound
	}
	return r.toJobExecution(rec, r.jobInstances[rec.InstanceID], true)
}

// FindJobExecutionsByJobInstance finds all JobExecutions of the instance, newest first.
func (r *InMemoryJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.jobInstances[jobInstance.ID]
	if !ok {
		return nil, repository.ErrJobInstanceNotFound
	}
	var executions []*model.JobExecution
	for _, rec := range r.executionsOf(instance.ID) {
		je, err := r.toJobExecution(rec, instance, true)
		if err != nil {
			return nil, err
		}
		executions = append(executions, je)
	}
	return executions, nil
}

// toJobExecution rebuilds a detached JobExecution. Callers hold a lock.
func (r *InMemoryJobRepository) toJobExecution(rec *jobExecutionRecord, instance *model.JobInstance, withSteps bool) (*model.JobExecution, error) {
	ec, err := unmarshalContext(rec.Context)
	if err != nil {
		return nil, err
	}
	je := &model.JobExecution{
		ID:               rec.ID,
		Status:           rec.Status,
		ExitStatus:       rec.ExitStatus,
		CreateTime:       rec.CreateTime,
		StartTime:        copyTime(rec.StartTime),
		EndTime:          copyTime(rec.EndTime),
		LastUpdated:      rec.LastUpdated,
		ExecutionContext: ec,
		Version:          rec.Version,
	}
	if instance != nil {
		je.JobInstance = copyInstance(instance)
		je.JobName = instance.JobName
		je.Parameters = je.JobInstance.Parameters
	}
	je.RestoreFailureMessages(rec.Failures)
	if withSteps {
		for _, srec := range r.stepsOf(rec.ID) {
			se, err := toStepExecution(srec, je)
			if err != nil {
				return nil, err
			}
			je.AddStepExecution(se)
		}
	}
	return je, nil
}
