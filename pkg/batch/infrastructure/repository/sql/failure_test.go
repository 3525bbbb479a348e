package sql_test

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	gomysql "github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	sqlrepo "github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/sql"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

func newMockRepository(t *testing.T) (*sqlrepo.SQLJobRepository, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db, err := gorm.Open(mysql.New(mysql.Config{Conn: sqlDB, SkipInitializeWithVersion: true}), &gorm.Config{SkipDefaultTransaction: true})
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })
	return sqlrepo.NewSQLJobRepository(db), mock
}

func TestUpdateJobExecution_MissingRow(t *testing.T) {
	repo, mock := newMockRepository(t)
	je := model.NewJobExecution(nil)

	mock.ExpectExec("UPDATE `batch_job_execution` SET").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `batch_job_execution`").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	err := repo.UpdateJobExecution(context.Background(), je)
	assert.ErrorIs(t, err, repository.ErrJobExecutionNotFound)
	assert.Equal(t, 0, je.Version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateJobExecution_DeadlockIsRetryable(t *testing.T) {
	repo, mock := newMockRepository(t)
	je := model.NewJobExecution(nil)

	mock.ExpectExec("UPDATE `batch_job_execution` SET").
		WillReturnError(&gomysql.MySQLError{Number: 1213, Message: "Deadlock found when trying to get lock"})

	err := repo.UpdateJobExecution(context.Background(), je)
	require.Error(t, err)
	var batchErr *exception.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.True(t, batchErr.IsRetryable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveJobInstance_DuplicateKey(t *testing.T) {
	repo, mock := newMockRepository(t)
	instance, err := model.NewJobInstance("importJob", params("1"))
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO `batch_job_instance`").
		WillReturnError(&gomysql.MySQLError{Number: 1062, Message: "Duplicate entry"})

	err = repo.SaveJobInstance(context.Background(), instance)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
	var batchErr *exception.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.False(t, batchErr.IsRetryable())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetJobInstanceCount_QueryError(t *testing.T) {
	repo, mock := newMockRepository(t)

	mock.ExpectQuery("SELECT count\\(\\*\\) FROM `batch_job_instance`").WillReturnError(assert.AnError)

	_, err := repo.GetJobInstanceCount(context.Background(), "importJob")
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}
