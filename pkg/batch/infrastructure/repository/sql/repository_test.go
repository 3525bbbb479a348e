package sql_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	sqlrepo "github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

func newRepository(t *testing.T) *sqlrepo.SQLJobRepository {
	t.Helper()
	cfg := config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}
	db, err := sqlrepo.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, sqlrepo.Migrate(db, cfg.Type, ""))
	repo := sqlrepo.NewSQLJobRepository(db)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func params(run string) model.JobParameters {
	p := model.NewJobParameters()
	p.Put("run", run)
	return p
}

func endExecution(t *testing.T, repo *sqlrepo.SQLJobRepository, je *model.JobExecution, status model.BatchStatus) {
	t.Helper()
	je.MarkAsStarted()
	je.SetStatus(status)
	je.MarkAsEnded()
	require.NoError(t, repo.UpdateJobExecution(context.Background(), je))
}

func TestMigrate_IsIdempotent(t *testing.T) {
	cfg := config.DatabaseConfig{Type: "sqlite", Path: ":memory:"}
	db, err := sqlrepo.Open(cfg)
	require.NoError(t, err)
	defer sqlrepo.NewSQLJobRepository(db).Close()

	require.NoError(t, sqlrepo.Migrate(db, cfg.Type, "custom_migrations"))
	require.NoError(t, sqlrepo.Migrate(db, cfg.Type, "custom_migrations"))
	assert.True(t, db.Migrator().HasTable("batch_job_execution"))
	assert.True(t, db.Migrator().HasTable("custom_migrations"))
}

func TestOpen_UnsupportedType(t *testing.T) {
	_, err := sqlrepo.Open(config.DatabaseConfig{Type: "oracle"})
	assert.Error(t, err)

	_, err = sqlrepo.Open(config.DatabaseConfig{Type: "sqlite"})
	assert.Error(t, err)
}

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5432, User: "batch", Password: "pw", Database: "jobs"}
	assert.Equal(t, "host=db port=5432 user=batch password=pw dbname=jobs sslmode=disable", sqlrepo.PostgresDSN(cfg))

	cfg.Port = 3306
	dsn := sqlrepo.MySQLDSN(cfg)
	assert.Contains(t, dsn, "batch:pw@tcp(db:3306)/jobs")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "multiStatements=true")
}

func TestCreateJobExecution_RestartCarriesContext(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusStarting, first.GetStatus())
	assert.Equal(t, model.ExitCodeUnknown, first.GetExitStatus().ExitCode)

	first.ExecutionContext.Put("cursor", "page-7")
	require.NoError(t, repo.UpdateJobExecutionContext(ctx, first))
	first.AddFailureException(errors.New("disk full"))
	endExecution(t, repo, first, model.BatchStatusFailed)
	assert.Equal(t, 1, first.Version)

	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	assert.Equal(t, first.JobInstance.ID, second.JobInstance.ID)
	cursor, ok := second.ExecutionContext.GetString("cursor")
	require.True(t, ok)
	assert.Equal(t, "page-7", cursor)

	executions, err := repo.FindJobExecutionsByJobInstance(ctx, first.JobInstance)
	require.NoError(t, err)
	require.Len(t, executions, 2)
	assert.Equal(t, second.ID, executions[0].ID)
	assert.Equal(t, first.ID, executions[1].ID)
	assert.Equal(t, model.BatchStatusFailed, executions[1].GetStatus())
	require.Len(t, executions[1].FailureExceptions(), 1)
	assert.Contains(t, executions[1].FailureExceptions()[0].Error(), "disk full")
	assert.Equal(t, "1", executions[1].Parameters.Params["run"])

	count, err := repo.GetJobInstanceCount(ctx, "importJob")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestCreateJobExecution_RelaunchRules(t *testing.T) {
	tests := []struct {
		name   string
		status model.BatchStatus
		want   error
	}{
		{"running", model.BatchStatusStarted, exception.ErrJobExecutionAlreadyRunning},
		{"unknown", model.BatchStatusUnknown, exception.ErrJobRestart},
		{"completed", model.BatchStatusCompleted, repository.ErrJobInstanceAlreadyComplete},
		{"abandoned", model.BatchStatusAbandoned, repository.ErrJobInstanceAlreadyComplete},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			repo := newRepository(t)
			je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
			require.NoError(t, err)
			je.SetStatus(tt.status)
			require.NoError(t, repo.UpdateJobExecution(ctx, je))

			_, err = repo.CreateJobExecution(ctx, "importJob", params("1"))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestUpdateJobExecution_OptimisticLocking(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	je, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	stale, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)

	endExecution(t, repo, je, model.BatchStatusCompleted)

	stale.SetStatus(model.BatchStatusFailed)
	err = repo.UpdateJobExecution(ctx, stale)
	assert.True(t, exception.IsOptimisticLockingFailure(err))

	stored, err := repo.FindJobExecutionByID(ctx, je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.GetStatus())
	assert.Equal(t, 1, stored.Version)
	require.NotNil(t, stored.EndTime)

	missing := model.NewJobExecution(je.JobInstance)
	assert.ErrorIs(t, repo.UpdateJobExecution(ctx, missing), repository.ErrJobExecutionNotFound)
	assert.ErrorIs(t, repo.UpdateJobExecutionContext(ctx, missing), repository.ErrJobExecutionNotFound)
}

func TestGetLastJobExecution(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	none, err := repo.GetLastJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	assert.Nil(t, none)

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	require.NoError(t, repo.AddStepExecution(ctx, first.CreateStepExecution("load")))
	endExecution(t, repo, first, model.BatchStatusFailed)
	second, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)

	last, err := repo.GetLastJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, second.ID, last.ID)

	byID, err := repo.FindJobExecutionByID(ctx, first.ID)
	require.NoError(t, err)
	require.Len(t, byID.StepExecutions(), 1)
	assert.Equal(t, "load", byID.StepExecutions()[0].StepName)

	_, err = repo.FindJobExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestStepExecutions(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	first, err := repo.CreateJobExecution(ctx, "importJob", params("1"))
	require.NoError(t, err)
	load := first.CreateStepExecution("load")
	require.NoError(t, repo.AddStepExecution(ctx, load))
	assert.Error(t, repo.AddStepExecution(ctx, load))

	load.MarkAsStarted()
	load.ExecutionContext.Put("offset", 42)
	load.ReadCount = 10
	load.Status = model.BatchStatusFailed
	load.MarkAsEnded()
	require.NoError(t, repo.UpdateStepExecution(ctx, load))
	assert.Equal(t, 1, load.Version)

	load.Version = 0
	assert.True(t, exception.IsOptimisticLockingFailure(repo.UpdateStepExecution(ctx, load)))
	load.Version = 1
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
	assert.Equal(t, 10, byID.ReadCount)
	offset, ok := byID.ExecutionContext.GetInt("offset")
	require.True(t, ok)
	assert.Equal(t, 42, offset)

	none, err := repo.GetLastStepExecution(ctx, first.JobInstance, "export")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = repo.FindStepExecutionByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrStepExecutionNotFound)
}

func TestAddStepExecution_RequiresKnownJobExecution(t *testing.T) {
	repo := newRepository(t)
	se := model.NewJobExecution(nil).CreateStepExecution("load")

	err := repo.AddStepExecution(context.Background(), se)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
}

func TestJobInstances(t *testing.T) {
	ctx := context.Background()
	repo := newRepository(t)

	instance, err := model.NewJobInstance("zeta", params("1"))
	require.NoError(t, err)
	require.NoError(t, repo.SaveJobInstance(ctx, instance))
	assert.Error(t, repo.SaveJobInstance(ctx, instance))

	_, err = repo.CreateJobExecution(ctx, "alpha", params("1"))
	require.NoError(t, err)

	names, err := repo.GetJobNames(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "zeta"}, names)

	found, err := repo.FindJobInstanceByJobNameAndParameters(ctx, "zeta", params("1"))
	require.NoError(t, err)
	assert.Equal(t, instance.ID, found.ID)

	_, err = repo.FindJobInstanceByJobNameAndParameters(ctx, "zeta", params("2"))
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
	_, err = repo.FindJobInstanceByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrJobInstanceNotFound)
}
