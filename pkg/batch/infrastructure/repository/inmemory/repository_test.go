package inmemory_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

func params(run string) model.JobParameters {
	p := model.NewJobParameters()
	p.Put("run", run)
	return p
}

func endExecution(t *testing.T, repo *inmemory.InMemoryJobRepository, je *model.JobExecution, status model.BatchStatus) {
	t.Helper()
	je.MarkAsStarted()
	je.SetStatus(status)
	je.MarkAsEnded()
	require.NoError(t, repo.UpdateJobExecution(context.Background(), je))
}

func TestCreateJobExecution_CreatesInstanceOnce(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	require.NotNil(t, first.JobInstance)
	assert.Equal(t, model.BatchStatusStarting, first.GetStatus())

	endExecution(t, repo, first, model.BatchStatusFailed)

	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	assert.Equal(t, first.JobInstance.ID, second.JobInstance.ID)
	assert.NotEqual(t, first.ID, second.ID)

	count, err := repo.GetJobInstanceCount(ctx, "importJob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	executions, err := repo.FindJobExecutionsByJobInstance(ctx, first.JobInstance)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, second.ID, executions[0].ID)
	assert.Equal(t, first.ID, executions[1].ID)
}

func TestCreateJobExecution_RelaunchRules(t *testing.T) {
	tests := []struct {
		name   string
		status model.BatchStatus
		target error
	}{
		{"running", model.BatchStatusStarted, exception.ErrJobExecutionAlreadyRunning},
		{"unknown", model.BatchStatusUnknown, exception.ErrJobRestart},
		{"completed", model.BatchStatusCompleted, repository.ErrJobInstanceAlreadyComplete},
		{"abandoned", model.BatchStatusAbandoned, repository.ErrJobInstanceAlreadyComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := inmemory.NewInMemoryJobRepository()
			je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
			require.NoError(t, err)
			endExecution(t, repo, je, tt.status)

			_, err = repo.CreateJobExecution(ctx, "importJob", params("1"))
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.target), "got %v", err)
		})
	}
}

func TestCreateJobExecution_RestartCarriesExecutionContext(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	first.ExecutionContext.Put("cursor", "page-7")
	require.NoError(t, repo.UpdateJobExecutionContext(ctx, first))
	endExecution(t, repo, first, model.BatchStatusStopped)

	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	cursor, ok := second.ExecutionContext.GetString("cursor")
	require.True(t, ok)
	assert.Equal(t, "page-7", cursor)
}

func TestUpdateJobExecution_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	require.NoError(t, repo.UpdateJobExecution(ctx, je))
	assert.Equal(t, 1, je.Version)

	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	err = repo.UpdateJobExecution(ctx, stale)
	require.Error(t, err)
	assert.True(t, errors.Is(err, exception.ErrOptimisticLockingFailure))
}

func TestUpdateJobExecution_NotFound(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	je := model.NewJobExecution(nil)

	err := repo.UpdateJobExecution(context.Background(), je)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestFindJobExecutionByID_IsDetached(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	je.MarkAsStarted()
	je.AddFailureException(errors.New("boom"))
	require.NoError(t, repo.UpdateJobExecution(ctx, je))

	se := je.CreateStepExecution("load")
	require.NoError(t, repo.AddStepExecution(ctx, se))

	found, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarted, found.GetStatus())
	require.Len(t, found.FailureExceptions(), 1)
	assert.Equal(t, "boom", found.FailureExceptions()[0].Error())
	require.Len(t, found.StepExecutions(), 1)
	assert.Equal(t, "load", found.StepExecutions()[0].StepName)
	assert.Equal(t, je.ID, found.StepExecutions()[0].JobExecutionID())

	found.ExecutionContext.Put("local", true)
	again, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.False(t, again.ExecutionContext.ContainsKey("local"))
}

func TestGetLastJobExecution(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	last, err := repo.GetLastJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	assert.Nil(t, last)

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	endExecution(t, repo, first, model.BatchStatusFailed)
	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)

	last, err = repo.GetLastJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)
}

func TestStepExecutions_LastAndCount(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	load := first.CreateStepExecution("load")
	require.NoError(t, repo.AddStepExecution(ctx, load))
	load.Status = model.BatchStatusFailed
	load.ExecutionContext.Put("offset", 42)
	require.NoError(t, repo.UpdateStepExecution(ctx, load))
	require.NoError(t, repo.UpdateStepExecutionContext(ctx, load))
	endExecution(t, repo, first, model.BatchStatusFailed)

	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	reload := second.CreateStepExecution("load")
	require.NoError(t, repo.AddStepExecution(ctx, reload))

	count, err := repo.GetStepExecutionCount(ctx, first.JobInstance, "load")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	last, err := repo.GetLastStepExecution(ctx, first.JobInstance, "load")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, reload.ID, last.ID)
	assert.Equal(t, second.ID, last.JobExecutionID())

	byID, err := repo.FindStepExecutionByID(ctx, load.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusFailed, byID.Status)
	offset, ok := byID.ExecutionContext.GetInt("offset")
	require.True(t, ok)
	assert.Equal(t, 42, offset)

	none, err := repo.GetLastStepExecution(ctx, first.JobInstance, "export")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateStepExecution_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	se := je.CreateStepExecution("load")
	require.NoError(t, repo.AddStepExecution(ctx, se))
	require.NoError(t, repo.UpdateStepExecution(ctx, se))

	se.Version = 0
	err = repo.UpdateStepExecution(ctx, se)
	assert.True(t, errors.Is(err, exception.ErrOptimisticLockingFailure))
}

func TestAddStepExecution_RequiresKnownJobExecution(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	se := model.NewJobExecution(nil).CreateStepExecution("load")

	err := repo.AddStepExecution(context.Background(), se)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestJobInstances(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	instance, err := model.NewJobInstance("zeta", params("1"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	assert.Error(t, repo.SaveJobInstance(ctx, instance))

	_, err = repo.CreateJobExecution(ctx, "alpha", params("1"))
	require.NoError(t, err)

	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "zeta", params("1"))
	require.NoError(t, err)
	assert.Equal(t, instance.ID, found.ID)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "zeta", params("2"))
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	_, err = repo.FindJobInstanceByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)
}

func TestSaveJobInstance_RejectsSameIdentity(t *testing.T) {
	ctx := context.Background()
	repo := inmemory.NewInMemoryJobRepository()

	first, err := model.NewJobInstance("zeta", params("1"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, first))

	twin, err := model.NewJobInstance("zeta", params("1"))
	require.NoError(t, err)
	assert.Error(t, repo.SaveJobInstance(ctx, twin))

	other, err := model.NewJobInstance("zeta", params("2"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, other))

	count, err := repo.GetJobInstanceCount(ctx, "zeta")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	je, err := repo.CreateJobExecution(ctx, "zeta", params("2"))
	require.NoError(t, err)
	assert.Equal(t, other.ID, je.JobInstanceID())
}
