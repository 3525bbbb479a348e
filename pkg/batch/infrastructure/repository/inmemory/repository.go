// Package inmemory keeps job instances and executions in process memory. Records are
// copied in and out so callers never share state with the repository.
package inmemory

import (
	"sort"
	"sync"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
)

// InMemoryJobRepository is an in-memory implementation of the JobRepository interface.
// Updates are checked against the Version of the stored record; a stale version is
// rejected as an optimistic locking failure.
type InMemoryJobRepository struct {
	jobInstances   map[string]*model.JobInstance
	instanceIndex  map[instanceKey]string
	jobNames       map[string]int
	jobExecutions  map[string]*jobExecutionRecord
	stepExecutions map[string]*stepExecutionRecord
	seq            int64
	mu             sync.RWMutex
}

var _ repository.JobRepository = (*InMemoryJobRepository)(nil)

// NewInMemoryJobRepository creates and initializes a new instance of InMemoryJobRepository.
func NewInMemoryJobRepository() *InMemoryJobRepository {
	return &InMemoryJobRepository{
		jobInstances:   make(map[string]*model.JobInstance),
		instanceIndex:  make(map[instanceKey]string),
		jobNames:       make(map[string]int),
		jobExecutions:  make(map[string]*jobExecutionRecord),
		stepExecutions: make(map[string]*stepExecutionRecord),
	}
}

// nextSeq orders records by insertion. Callers hold the write lock.
func (r *InMemoryJobRepository) nextSeq() int64 {
	r.seq++
	return r.seq
}

// executionsOf returns the execution records of an instance, newest first. Callers hold a lock.
func (r *InMemoryJobRepository) executionsOf(instanceID string) []*jobExecutionRecord {
	var records []*jobExecutionRecord
	for _, rec := range r.jobExecutions {
		if rec.InstanceID == instanceID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq > records[j].seq })
	return records
}

// stepsOf returns the step execution records of a job execution in insertion order. Callers hold a lock.
func (r *InMemoryJobRepository) stepsOf(jobExecutionID string) []*stepExecutionRecord {
	var records []*stepExecutionRecord
	for _, rec := range r.stepExecutions {
		if rec.JobExecutionID == jobExecutionID {
			records = append(records, rec)
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].seq < records[j].seq })
	return records
}

// Close is a no-op.
func (r *InMemoryJobRepository) Close() error {
	return nil
}
