package test

import (
	"context"

	"github.com/stretchr/testify/mock"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
)

// MockJobRepository is a testify mock of repository.JobRepository.
// Typed nil results may be configured as plain nil.
type MockJobRepository struct {
	mock.Mock
}

var _ repository.JobRepository = (*MockJobRepository)(nil)

// SaveJobInstance mocks repository.JobInstance.
func (m *MockJobRepository) SaveJobInstance(ctx context.Context, instance *model.JobInstance) error {
	return m.Called(ctx, instance).Error(0)
}

// FindJobInstanceByID mocks repository.JobInstance.
func (m *MockJobRepository) FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error) {
	args := m.Called(ctx, id)
	instance, _ := args.Get(0).(*model.JobInstance)
	return instance, args.Error(1)
}

// FindJobInstanceByJobNameAndParameters mocks repository.JobInstance.
func (m *MockJobRepository) FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error) {
	args := m.Called(ctx, jobName, params)
	instance, _ := args.Get(0).(*model.JobInstance)
	return instance, args.Error(1)
}

// GetJobInstanceCount mocks repository.JobInstance.
func (m *MockJobRepository) GetJobInstanceCount(ctx context.Context, jobName string) (int, error) {
	args := m.Called(ctx, jobName)
	return args.Int(0), args.Error(1)
}

// GetJobNames mocks repository.JobInstance.
func (m *MockJobRepository) GetJobNames(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	names, _ := args.Get(0).([]string)
	return names, args.Error(1)
}

// CreateJobExecution mocks repository.JobExecution.
func (m *MockJobRepository) CreateJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	args := m.Called(ctx, jobName, params)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

// UpdateJobExecution mocks repository.JobExecution.
func (m *MockJobRepository) UpdateJobExecution(ctx context.Context, jobExecution *model.JobExecution) error {
	return m.Called(ctx, jobExecution).Error(0)
}

// UpdateJobExecutionContext mocks repository.JobExecution.
func (m *MockJobRepository) UpdateJobExecutionContext(ctx context.Context, jobExecution *model.JobExecution) error {
	return m.Called(ctx, jobExecution).Error(0)
}

// GetLastJobExecution mocks repository.JobExecution.
func (m *MockJobRepository) GetLastJobExecution(ctx context.Context, jobName string, params model.JobParameters) (*model.JobExecution, error) {
	args := m.Called(ctx, jobName, params)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

// FindJobExecutionByID mocks repository.JobExecution.
func (m *MockJobRepository) FindJobExecutionByID(ctx context.Context, executionID string) (*model.JobExecution, error) {
	args := m.Called(ctx, executionID)
	je, _ := args.Get(0).(*model.JobExecution)
	return je, args.Error(1)
}

// FindJobExecutionsByJobInstance mocks repository.JobExecution.
func (m *MockJobRepository) FindJobExecutionsByJobInstance(ctx context.Context, jobInstance *model.JobInstance) ([]*model.JobExecution, error) {
	args := m.Called(ctx, jobInstance)
	executions, _ := args.Get(0).([]*model.JobExecution)
	return executions, args.Error(1)
}

// AddStepExecution mocks repository.StepExecution.
func (m *MockJobRepository) AddStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	return m.Called(ctx, stepExecution).Error(0)
}

// UpdateStepExecution mocks repository.StepExecution.
func (m *MockJobRepository) UpdateStepExecution(ctx context.Context, stepExecution *model.StepExecution) error {
	return m.Called(ctx, stepExecution).Error(0)
}

// UpdateStepExecutionContext mocks repository.StepExecution.
func (m *MockJobRepository) UpdateStepExecutionContext(ctx context.Context, stepExecution *model.StepExecution) error {
	return m.Called(ctx, stepExecution).Error(0)
}

// GetLastStepExecution mocks repository.StepExecution.
func (m *MockJobRepository) GetLastStepExecution(ctx context.Context, jobInstance *model.JobInstance, stepName string) (*model.StepExecution, error) {
	args := m.Called(ctx, jobInstance, stepName)
	se, _ := args.Get(0).(*model.StepExecution)
	return se, args.Error(1)
}

// GetStepExecutionCount mocks repository.StepExecution.
func (m *MockJobRepository) GetStepExecutionCount(ctx context.Context, jobInstance *model.JobInstance, stepName string) (int, error) {
	args := m.Called(ctx, jobInstance, stepName)
	return args.Int(0), args.Error(1)
}

// FindStepExecutionByID mocks repository.StepExecution.
func (m *MockJobRepository) FindStepExecutionByID(ctx context.Context, executionID string) (*model.StepExecution, error) {
	args := m.Called(ctx, executionID)
	se, _ := args.Get(0).(*model.StepExecution)
	return se, args.Error(1)
}

// Close mocks repository.JobRepository.
func (m *MockJobRepository) Close() error {
	return m.Called().Error(0)
}
