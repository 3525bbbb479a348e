// Package sql implements repository.JobRepository on top of gorm. SQLite, PostgreSQL and MySQL
// are supported; the schema is created by the embedded migrations.
package sql

import (
	"context"
	"errors"
	"sync"
	"time"

	"gorm.io/gorm"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// SQLJobRepository implements the repository.JobRepository interface.
// Updates are guarded by the version column: an update of a stale execution is rejected
// with an optimistic locking failure.
type SQLJobRepository struct {
	db *gorm.DB

	seqMu   sync.Mutex
	lastSeq int64
}

var _ repository.JobRepository = (*SQLJobRepository)(nil)

// NewSQLJobRepository creates a new instance of SQLJobRepository.
//
// Parameters:
//
//	db: An open connection whose schema is up to date.
//
// Returns:
//
//	*SQLJobRepository: The repository.
func NewSQLJobRepository(db *gorm.DB) *SQLJobRepository {
	return &SQLJobRepository{db: db}
}

// nextSeq returns a strictly increasing sequence based on the wall clock.
func (r *SQLJobRepository) nextSeq() int64 {
	now := time.Now().UnixNano()
	r.seqMu.Lock()
	defer r.seqMu.Unlock()
	if now <= r.lastSeq {
		now = r.lastSeq + 1
	}
	r.lastSeq = now
	return now
}

// --- JobInstance ---

// SaveJobInstance persists a new JobInstance.
func (r *SQLJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	entity, err := fromDomainJobInstance(instance)
	if err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(entity).Error; err != nil {
		if isUniqueViolation(err) {
			return exception.NewBatchError(module, "JobInstance already exists: "+instance.ID, err, false, false)
		}
		return dbError("Failed to save JobInstance", err)
	}
	return nil
}

// FindJobInstanceByID finds a JobInstance by its ID.
func (r *SQLJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	var entity JobInstanceEntity
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJobInstanceNotFound
		}
		return nil, dbError("Failed to find JobInstance", err)
	}
	return toDomainJobInstance(&entity)
}

// FindJobInstanceByJobNameAndParameters finds a JobInstance by job name and exact parameters.
func (r *SQLJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	entity, err := findInstance(r.db.WithContext(ctx), jobName, hash)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, repository.ErrJobInstanceNotFound
	}
	return toDomainJobInstance(entity)
}

// findInstance returns nil when no instance matches.
func findInstance(db *gorm.DB, jobName, hash string) (*JobInstanceEntity, error) {
	var entities []JobInstanceEntity
	if err := db.Where("job_name = ? AND parameters_hash = ?", jobName, hash).Limit(1).Find(&entities).Error; err != nil {
		return nil, dbError("Failed to find JobInstance", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return &entities[0], nil
}

// GetJobInstanceCount returns the count of JobInstances for a given job name.
func (r *SQLJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&JobInstanceEntity{}).Where("job_name = ?", jobName).Count(&count).Error; err != nil {
		return 0, dbError("Failed to count JobInstances", err)
	}
	return int(count), nil
}

// GetJobNames returns the distinct job names in alphabetical order.
func (r *SQLJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	var names []string
	if err := r.db.WithContext(ctx).Model(&JobInstanceEntity{}).Distinct("job_name").Order("job_name").Pluck("job_name", &names).Error; err != nil {
		return nil, dbError("Failed to list job names", err)
	}
	return names, nil
}

// --- JobExecution ---

// CreateJobExecution finds or creates the JobInstance and inserts a new JobExecution in one transaction.
func (r *SQLJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, exception.NewBatchError(jobName, "Failed to hash JobParameters", err, false, false)
	}

	var je *model.JobExecution
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		instanceEntity, err := findInstance(tx, jobName, hash)
		if err != nil {
			return err
		}

		var instance *model.JobInstance
		lastContext := "{}"
		if instanceEntity == nil {
			if instance, err = model.NewJobInstance(jobName, params); err != nil {
				return err
			}
			entity, err := fromDomainJobInstance(instance)
			if err != nil {
				return err
			}
			if err := tx.Create(entity).Error; err != nil {
				if isUniqueViolation(err) {
					return exception.NewBatchError(jobName, "a job execution for this job is already running", exception.ErrJobExecutionAlreadyRunning, false, false)
				}
				return dbError("Failed to create JobInstance", err)
			}
		} else {
			if instance, err = toDomainJobInstance(instanceEntity); err != nil {
				return err
			}
			executions, entities, err := r.executionsOf(tx, instance)
			if err != nil {
				return err
			}
			if err := repository.CheckRelaunch(jobName, executions); err != nil {
				return err
			}
			if len(entities) > 0 {
				lastContext = entities[0].ExecutionContext
			}
		}

		je = model.NewJobExecution(instance)
		if je.ExecutionContext, err = unmarshalContext(lastContext); err != nil {
			return err
		}
		entity := &JobExecutionEntity{ID: je.ID, JobInstanceID: instance.ID, Seq: r.nextSeq()}
		if err := fillJobExecutionEntity(entity, je); err != nil {
			return err
		}
		if err := tx.Create(entity).Error; err != nil {
			return dbError("Failed to create JobExecution", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logger.Debugf("JobExecution (ID: %s) created for JobInstance (ID: %s, job: %s).", je.ID, je.JobInstanceID(), jobName)
	return je, nil
}

// executionsOf loads the executions of instance, newest first, without their step executions.
func (r *SQLJobRepository) executionsOf(db *gorm.DB, instance *model.JobInstance) ([]*model.JobExecution, []JobExecutionEntity, error) {
	var entities []JobExecutionEntity
	if err := db.Where("job_instance_id = ?", instance.ID).Order("seq DESC").Find(&entities).Error; err != nil {
		return nil, nil, dbError("Failed to load JobExecutions", err)
	}
	executions := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := toDomainJobExecution(&entities[i], instance)
		if err != nil {
			return nil, nil, err
		}
		executions = append(executions, je)
	}
	return executions, entities, nil
}

// UpdateJobExecution updates an existing JobExecution and increments its Version.
func (r *SQLJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	var entity JobExecutionEntity
	if err := fillJobExecutionEntity(&entity, jobExecution); err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&JobExecutionEntity{}).
		Where("id = ? AND version = ?", jobExecution.ID, jobExecution.Version).
		Updates(map[string]interface{}{
			"status":            entity.Status,
			"exit_code":         entity.ExitCode,
			"exit_description":  entity.ExitDescription,
			"start_time":        entity.StartTime,
			"end_time":          entity.EndTime,
			"last_updated":      entity.LastUpdated,
			"execution_context": entity.ExecutionContext,
			"failures":          entity.Failures,
			"version":           jobExecution.Version + 1,
		})
	if res.Error != nil {
		return dbError("Failed to update JobExecution", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.staleOrMissing(ctx, &JobExecutionEntity{}, jobExecution.ID, repository.ErrJobExecutionNotFound, "job execution")
	}
	jobExecution.Version++
	return nil
}

// staleOrMissing tells an unknown id from a version conflict after an update matched no row.
func (r *SQLJobRepository) staleOrMissing(ctx context.Context, table interface{}, id string, notFound error, kind string) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return dbError("Failed to check "+kind, err)
	}
	if count == 0 {
		return notFound
	}
	return exception.NewOptimisticLockingFailureException(module, "Attempt to update "+kind+" id="+id+" with wrong version", nil)
}

// UpdateJobExecutionContext persists only the ExecutionContext of jobExecution.
func (r *SQLJobRepository) UpdateJobExecutionContext(ctx context.Context, jobExecution *model.JobExecution) error {
	ec, err := marshalContext(jobExecution.ExecutionContext)
	if err != nil {
		return err
	}
	res := r.db.WithContext(ctx).Model(&JobExecutionEntity{}).Where("id = ?", jobExecution.ID).Update("execution_context", ec)
	if res.Error != nil {
		return dbError("Failed to update JobExecution context", res.Error)
	}
	if res.RowsAffected == 0 {
		return r.missing(ctx, &JobExecutionEntity{}, jobExecution.ID, repository.ErrJobExecutionNotFound)
	}
	return nil
}

// missing returns notFound when no row has id. MySQL reports zero affected rows for unchanged values.
func (r *SQLJobRepository) missing(ctx context.Context, table interface{}, id string, notFound error) error {
	var count int64
	if err := r.db.WithContext(ctx).Model(table).Where("id = ?", id).Count(&count).Error; err != nil {
		return dbError("Failed to check row", err)
	}
	if count == 0 {
		return notFound
	}
	return nil
}

// GetLastJobExecution returns the newest execution of the instance for jobName and params, or nil.
func (r *SQLJobRepository) GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	db := r.db.WithContext(ctx)
	instanceEntity, err := findInstance(db, jobName, hash)
	if err != nil || instanceEntity == nil {
		return nil, err
	}
	instance, err := toDomainJobInstance(instanceEntity)
	if err != nil {
		return nil, err
	}
	var entities []JobExecutionEntity
	if err := db.Where("job_instance_id = ?", instance.ID).Order("seq DESC").Limit(1).Find(&entities).Error; err != nil {
		return nil, dbError("Failed to load the last JobExecution", err)
	}
	if len(entities) == 0 {
		return nil, nil
	}
	return r.hydrate(db, &entities[0], instance)
}

// FindJobExecutionByID finds a JobExecution by its ID, including its StepExecutions.
func (r *SQLJobRepository) FindJobExecutionByID(ctx context.Context, id string) (*model.JobExecution, error) {
	db := r.db.WithContext(ctx)
	var entity JobExecutionEntity
	if err := db.Where("id = ?", id).First(&entity).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrJobExecutionNotFound
		}
		return nil, dbError("Failed to find JobExecution", err)
	}
	instance, err := r.FindJobInstanceByID(ctx, entity.JobInstanceID)
	if err != nil {
		return nil, err
	}
	return r.hydrate(db, &entity, instance)
}

// FindJobExecutionsByJobInstance finds all JobExecutions of the instance, newest first.
func (r *SQLJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	db := r.db.WithContext(ctx)
	instance, err := r.FindJobInstanceByID(ctx, jobInstance.ID)
	if err != nil {
		return nil, err
	}
	var entities []JobExecutionEntity
	if err := db.Where("job_instance_id = ?", instance.ID).Order("seq DESC").Find(&entities).Error; err != nil {
		return nil, dbError("Failed to load JobExecutions", err)
	}
	executions := make([]*model.JobExecution, 0, len(entities))
	for i := range entities {
		je, err := r.hydrate(db, &entities[i], instance)
		if err != nil {
			return nil, err
		}
		executions = append(executions, je)
	}
	return executions, nil
}

// hydrate builds a JobExecution with its StepExecutions in creation order.
func (r *SQLJobRepository) hydrate(db *gorm.DB, entity *JobExecutionEntity, instance *model.JobInstance) (*model.JobExecution, error) {
	je, err := toDomainJobExecution(entity, instance)
	if err != nil {
		return nil, err
	}
	var steps []StepExecutionEntity
	if err := db.Where("job_execution_id = ?", entity.ID).Order("seq ASC").Find(&steps).Error; err != nil {
		return nil, dbError("Failed to load StepExecutions", err)
	}
	for i := range steps {
		se, err := toDomainStepExecution(&steps[i], je)
		if err != nil {
			return nil, err
		}
		je.AddStepExecution(se)
	}
	return je, nil
}

// Close closes the underlying connection pool.
func (r *SQLJobRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
