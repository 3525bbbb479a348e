package sql

import (
	"context"
	"errors"

	"gorm.io/gorm"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

const stepJoin = "JOIN batch_job_execution ON batch_job_execution.id = batch_step_execution.job_execution_id"

// AddStepExecution persists a new StepExecution of an existing JobExecution.
func (r *SQLJobRepository) AddStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	db := r.db.WithContext(ctx)
	jobExecutionID := stepExecution.JobExecutionID()
	if err := r.missing(ctx, &JobExecutionEntity{}, jobExecutionID, repository.ErrJobExecutionNotFound); err != nil {
		return err
	}
	entity := &StepExecutionEntity{ID: stepExecution.ID, JobExecutionID: jobExecutionID, Seq: r.nextSeq(), Version: stepExecution.Version}
	if err := fillStepExecutionEntity(entity, stepExecution); err != nil {
		return err
	}
	if err := db.Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return exception.NewBatchError(module, "StepExecution already exists: "+stepExecution.ID, err, false, false)
		}
		return dbError("Failed to add StepExecution", err)
	}
	return nil
}

// UpdateStepExecution updates an existing StepExecution and increments its Version.
func (r *SQLJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	var entity StepExecutionEntity
	if err := fillStepExecutionEntity(&entity, stepExecution); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&StepExecutionEntity{}).
		Where("id = ? AND version = ?", stepExecution.ID, stepExecution.Version).
		Updates(map[string]interface{}{
			"status":            entity.Status,
			"exit_code":         entity.ExitCode,
			"exit_description":  entity.ExitDescription,
			"start_time":        entity.StartTime,
			"end_time":          entity.EndTime,
			"last_updated":      entity.LastUpdated,
			"execution_context": entity.ExecutionContext,
			"failures":          entity.Failures,
			"read_count":        entity.ReadCount,
			"write_count":       entity.WriteCount,
			"commit_count":      entity.CommitCount,
			"rollback_count":    entity.RollbackCount,
			"filter_count":      entity.FilterCount,
			"version":           stepExecution.Version + 1,
		})
	if res.Error != nil {
		return dbError("Failed to update StepExecution", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.staleOrMissing(ctx, &StepExecutionEntity{}, stepExecution.ID, repository.ErrStepExecutionNotFound, "step execution")
	}
	stepExecution.Version++
	return nil
}

// UpdateStepExecutionContext persists only the ExecutionContext of stepExecution.
func (r *SQLJobRepository) UpdateStepExecutionContext(ctx context.Context, stepExecution *model.StepExecution) error {
	ec, err := marshalContext(stepExecution.ExecutionContext)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&StepExecutionEntity{}).Where("id = ?", stepExecution.ID).Update("execution_context", ec)
	if res.Error != nil {
		return dbError("Failed to update StepExecution context", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missing(ctx, &StepExecutionEntity{}, stepExecution.ID, repository.ErrStepExecutionNotFound)
	}
	return nil
}

// GetLastStepExecution returns the newest execution of stepName across all executions of the instance, or nil.
func (r *SQLJobRepository) GetLastStepExecution(ctx context.Context, jobInstance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	db := r.db.WithContext(ctx)
	var entities []StepExecutionEntity
	err := db.Model(&StepExecutionEntity{}).
		Select("batch_step_execution.*").
		Joins(stepJoin).
		Where("batch_job_execution.job_instance_id = ? AND batch_step_execution.step_name = ?", jobInstance.ID, stepName).
		Order("batch_step_execution.seq DESC").
		Limit(1).
		Find(&entities).Error
	if err != nil {
		return nil, dbError("Failed to load the last StepExecution", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return r.attach(ctx, &entities[0])
}

// GetStepExecutionCount returns how often stepName was started for the instance.
func (r *SQLJobRepository) GetStepExecutionCount(ctx context.Context, jobInstance *model.JobInstance, stepName string) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&StepExecutionEntity{}).
		Joins(stepJoin).
		Where("batch_job_execution.job_instance_id = ? AND batch_step_execution.step_name = ?", jobInstance.ID, stepName).
		Count(&count).Error
	if err != nil {
		return 0, dbError("Failed to count StepExecutions", err)
	}
	return int(count), nil
}

// FindStepExecutionByID finds a StepExecution by its ID.
func (r *SQLJobRepository) FindStepExecutionByID(ctx context.Context, id string) (*model.StepExecution, error) {
	var entity StepExecutionEntity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrStepExecutionNotFound
		}
		return nil, dbError("Failed to find StepExecution", err)
	}
	return r.attach(ctx, &entity)
}

// attach converts entity with its JobExecution, without sibling step executions.
func (r *SQLJobRepository) attach(ctx context.Context, entity *StepExecutionEntity) (*model.StepExecution, error) {
	db := r.db.WithContext(ctx)
	var jobEntity JobExecutionEntity
	if err := db.Where("id = ?", entity.JobExecutionID).First(&jobEntity).Error; err != nil {
		return nil, dbError("Failed to load the JobExecution of StepExecution "+entity.ID, err)
	}
	instance, err := r.FindJobInstanceByID(ctx, jobEntity.JobInstanceID)
	if err != nil {
		return nil, err
	}
	je, err := toDomainJobExecution(&jobEntity, instance)
	if err != nil {
		return nil, err
	}
	return toDomainStepExecution(entity, je)
}
