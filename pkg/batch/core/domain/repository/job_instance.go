package repository

import (
	"context"
	"errors"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// JobInstance stores job instances. An instance is identified by its job name and the
// hash of its parameters; lookups return ErrJobInstanceNotFound when nothing matches.
type JobInstance interface {
	// SaveJobInstance rejects an instance whose ID or identity is already stored.
	SaveJobInstance(ctx context.Context, instance *model.JobInstance) error
	FindJobInstanceByID(ctx context.Context, id string) (*model.JobInstance, error)
	FindJobInstanceByJobNameAndParameters(ctx context.Context, jobName string, params model.JobParameters) (*model.JobInstance, error)
	GetJobInstanceCount(ctx context.Context, jobName string) (int, error)
	// GetJobNames returns the distinct job names in alphabetical order.
	GetJobNames(ctx context.Context) ([]string, error)
}

var ErrJobInstanceNotFound = errors.New("job instance not found")

func init() {
	exception.RegisterErrorType("ErrJobInstanceNotFound", ErrJobInstanceNotFound)
}
