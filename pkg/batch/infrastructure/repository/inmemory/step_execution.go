package inmemory

import (
	"context"
	"fmt"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// AddStepExecution stores a new StepExecution. Its JobExecution must have been created by this repository.
func (r *InMemoryJobRepository) AddStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.stepExecutions[stepExecution.ID]; exists {
		return fmt.Errorf("StepExecution with ID %s already exists", stepExecution.ID)
	}
	jobExecutionID := stepExecution.JobExecutionID()
	if _, ok := r.jobExecutions[jobExecutionID]; !ok {
		return repository.ErrJobExecutionNotFound
	}
	rec := &stepExecutionRecord{seq: r.nextSeq(), ID: stepExecution.ID, JobExecutionID: jobExecutionID}
	if err := rec.fill(stepExecution); err != nil {
		return err
	}
	r.stepExecutions[stepExecution.ID] = rec
	return nil
}

// UpdateStepExecution updates an existing StepExecution and increments its Version.
func (r *InMemoryJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.stepExecutions[stepExecution.ID]
	if !ok {
		return repository.ErrStepExecutionNotFound
	}
	if rec.Version != stepExecution.Version {
		return exception.NewOptimisticLockingFailureException("inmemory",
			"Attempt to update step execution id="+stepExecution.ID+" with wrong version", nil)
	}
	if err := rec.fill(stepExecution); err != nil {
		return err
	}
	rec.Version++
	stepExecution.Version = rec.Version
	return nil
}

// UpdateStepExecutionContext stores only the ExecutionContext of stepExecution.
func (r *InMemoryJobRepository) UpdateStepExecutionContext(ctx context.Context, stepExecution *model.StepExecution) error {
	data, err := marshalContext(stepExecution.ExecutionContext)
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.stepExecutions[stepExecution.ID]
	if !ok {
		return repository.ErrStepExecutionNotFound
	}
	rec.Context = data
	return nil
}

// GetLastStepExecution returns the newest execution of stepName across all executions of the instance, or nil.
func (r *InMemoryJobRepository) GetLastStepExecution(ctx context.Context, jobInstance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	instance, ok := r.jobInstances[jobInstance.ID]
	if !ok {
		return nil, nil
	}
	var latest *stepExecutionRecord
	for _, jrec := range r.executionsOf(instance.ID) {
		for _, srec := range r.stepsOf(jrec.ID) {
			if srec.StepName == stepName && (latest == nil || srec.seq > latest.seq) {
				latest = srec
			}
		}
	}
	if latest == nil {
		return nil, nil
	}
	je, err := r.toJobExecution(r.jobExecutions[latest.JobExecutionID], instance, false)
	if err != nil {
		return nil, err
	}
	return toStepExecution(latest, je)
}

// GetStepExecutionCount returns how often stepName was started for the instance.
func (r *InMemoryJobRepository) GetStepExecutionCount(ctx context.Context, jobInstance *model.JobInstance, stepName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, jrec := range r.executionsOf(jobInstance.ID) {
		for _, srec := range r.stepsOf(jrec.ID) {
			if srec.StepName == stepName {
				count++
			}
		}
	}
	return count, nil
}

// FindStepExecutionByID finds a StepExecution by its ID.
// It returns repository.ErrStepExecutionNotFound if the StepExecution is not found.
func (r *InMemoryJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.stepExecutions[id]
	if !ok {
		return nil, repository.ErrStepExecutionNotFound
	}
	jrec := r.jobExecutions[rec.JobExecutionID]
	je, err := r.toJobExecution(jrec, r.jobInstances[jrec.InstanceID], false)
	if err != nil {
		return nil, err
	}
	return toStepExecution(rec, je)
}

func toStepExecution(rec *stepExecutionRecord, je *model.JobExecution) (*model.StepExecution, error) {
	ec, err := unmarshalContext(rec.Context)
	if err != nil {
		return nil, err
	}
	se := model.NewStepExecution(rec.ID, je, rec.StepName)
	se.Status = rec.Status
	se.ExitStatus = rec.ExitStatus
	se.StartTime = copyTime(rec.StartTime)
	se.EndTime = copyTime(rec.EndTime)
	se.LastUpdated = rec.LastUpdated
	se.ExecutionContext = ec
	se.ReadCount = rec.ReadCount
	se.WriteCount = rec.WriteCount
	se.CommitCount = rec.CommitCount
	se.RollbackCount = rec.RollbackCount
	se.FilterCount = rec.FilterCount
	se.Version = rec.Version
	se.RestoreFailureMessages(rec.Failures)
	return se, nil
}
