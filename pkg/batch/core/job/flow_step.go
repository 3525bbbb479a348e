package job

import (
	"context"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// FlowStep is a step whose body runs a nested flow. The inner steps are recorded as
// step executions of the enclosing JobExecution and start from a copy of the
// FlowStep's own execution context.
type FlowStep struct {
	*step.AbstractStep
	flow          flow.Flow
	jobRepository repository.JobRepository
}

var (
	_ port.Step        = (*FlowStep)(nil)
	_ port.StepLocator = (*FlowStep)(nil)
)

// NewFlowStep creates a step named name that runs f.
func NewFlowStep(name string, f flow.Flow, jobRepository repository.JobRepository, opts ...step.Option) *FlowStep {
	s := &FlowStep{flow: f, jobRepository: jobRepository}
	s.AbstractStep = step.NewAbstractStep(name, s, jobRepository, opts...)
	return s
}

// DoExecute implements step.Body. The flow result becomes the status and exit status of
// stepExecution; the status of the JobExecution is left to the enclosing job.
func (s *FlowStep) DoExecute(ctx context.Context, stepExecution *model.StepExecution) error {
	if stepExecution.JobExecution == nil {
		return exception.NewBatchErrorf(s.Name(), "FlowStep requires a StepExecution attached to a JobExecution")
	}
	handler := NewSimpleStepHandler(s.jobRepository, stepExecution.ExecutionContext)
	executor := NewFlowExecutor(s.jobRepository, handler, stepExecution.JobExecution)

	result, err := s.flow.Start(ctx, executor)
	if err != nil {
		return exception.NewBatchError(s.Name(), "Flow execution ended unexpectedly", err, false, false)
	}
	executor.AddExitStatus(result.Status.Name)
	stepExecution.UpgradeStatus(result.Status.ToBatchStatus())
	stepExecution.ExitStatus = executor.ExitStatus()
	return nil
}

// StepNames returns the names of the steps of the nested flow.
func (s *FlowStep) StepNames() []string {
	if locator, ok := s.flow.(port.StepLocator); ok {
		return locator.StepNames()
	}
	return nil
}

// GetStep looks a step of the nested flow up by name.
func (s *FlowStep) GetStep(name string) (port.Step, error) {
	if locator, ok := s.flow.(port.StepLocator); ok {
		return locator.GetStep(name)
	}
	return nil, port.ErrStepNotFound
}
