package inmemory

import (
	"context"
	"sort"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// instanceKey is the identity of a job instance: its job name and parameter hash.
type instanceKey struct {
	jobName string
	hash    string
}

// putInstance stores a copy of instance under both its ID and its identity.
// Callers hold the write lock and have checked for duplicates.
func (r *InMemoryJobRepository) putInstance(instance *model.JobInstance) {
	r.jobInstances[instance.ID] = copyInstance(instance)
	r.instanceIndex[instanceKey{instance.JobName, instance.ParametersHash}] = instance.ID
	r.jobNames[instance.JobName]++
}

// findInstance looks an instance up by identity. Callers hold a lock.
func (r *InMemoryJobRepository) findInstance(jobName, hash string) *model.JobInstance {
	id, ok := r.instanceIndex[instanceKey{jobName, hash}]
	if !ok {
		return nil
	}
	return r.jobInstances[id]
}

// SaveJobInstance stores a new instance. An instance with the same ID, or with the
// same job name and parameters, is rejected.
func (r *InMemoryJobRepository) SaveJobInstance(ctx context.Context, jobInstance *model.JobInstance) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobInstances[jobInstance.ID]; exists {
		return exception.NewBatchErrorf(jobInstance.JobName, "JobInstance %s already exists", jobInstance.ID)
	}
	if existing := r.findInstance(jobInstance.JobName, jobInstance.ParametersHash); existing != nil {
		return exception.NewBatchErrorf(jobInstance.JobName, "JobInstance with the same parameters already exists as %s", existing.ID)
	}
	r.putInstance(jobInstance)
	return nil
}

func (r *InMemoryJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ji, ok := r.jobInstances[id]; ok {
		return copyInstance(ji), nil
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *InMemoryJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()

	if ji := r.findInstance(jobName, hash); ji != nil {
		return copyInstance(ji), nil
	}
	return nil, repository.ErrJobInstanceNotFound
}

func (r *InMemoryJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobNames[jobName], nil
}

// GetJobNames returns the distinct job names in alphabetical order.
func (r *InMemoryJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.jobNames))
	for name := range r.jobNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}
