package sql

import (
	"encoding/json"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/serialization"
)

func fromDomainJobInstance(ji *model.JobInstance) (*JobInstanceEntity, error) {
	params, err := serialization.MarshalJobParameters(ji.Parameters.Params)
	if err != nil {
		return nil, err
	}
	return &JobInstanceEntity{
		ID:             ji.ID,
		JobName:        ji.JobName,
		ParametersHash: ji.ParametersHash,
		Parameters:     string(params),
		CreateTime:     ji.CreateTime,
		Version:        ji.Version,
	}, nil
}

func toDomainJobInstance(entity *JobInstanceEntity) (*model.JobInstance, error) {
	params, err := serialization.UnmarshalJobParameters([]byte(entity.Parameters))
	if err != nil {
		return nil, err
	}
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return &model.JobInstance{
		ID:             entity.ID,
		JobName:        entity.JobName,
		Parameters:     jp,
		ParametersHash: entity.ParametersHash,
		CreateTime:     entity.CreateTime,
		Version:        entity.Version,
	}, nil
}

// fillJobExecutionEntity copies the mutable state of je into entity. ID, instance, Seq and Version are left alone.
func fillJobExecutionEntity(entity *JobExecutionEntity, je *model.JobExecution) error {
	ec, err := marshalContext(je.ExecutionContext)
	if err != nil {
		return err
	}
	failures, err := marshalFailures(je.FailureExceptions())
	if err != nil {
		return err
	}
	exit := je.GetExitStatus()
	entity.Status = je.GetStatus().String()
	entity.ExitCode = exit.ExitCode
	entity.ExitDescription = exit.ExitDescription
	entity.CreateTime = je.CreateTime
	entity.StartTime = je.StartTime
	entity.EndTime = je.EndTime
	entity.LastUpdated = je.LastUpdated
	entity.ExecutionContext = ec
	entity.Failures = failures
	return nil
}

func toDomainJobExecution(entity *JobExecutionEntity, instance *model.JobInstance) (*model.JobExecution, error) {
	status, err := model.ParseBatchStatus(entity.Status)
	if err != nil {
		return nil, err
	}
	ec, err := unmarshalContext(entity.ExecutionContext)
	if err != nil {
		return nil, err
	}
	failures, err := unmarshalFailures(entity.Failures)
	if err != nil {
		return nil, err
	}
	je := &model.JobExecution{
		ID:               entity.ID,
		JobInstance:      instance,
		Status:           status,
		ExitStatus:       model.NewExitStatusWithDescription(entity.ExitCode, entity.ExitDescription),
		CreateTime:       entity.CreateTime,
		StartTime:        entity.StartTime,
		EndTime:          entity.EndTime,
		LastUpdated:      entity.LastUpdated,
		ExecutionContext: ec,
		Version:          entity.Version,
	}
	if instance != nil {
		je.JobName = instance.JobName
		je.Parameters = instance.Parameters
	}
	je.RestoreFailureMessages(failures)
	return je, nil
}

func fillStepExecutionEntity(entity *StepExecutionEntity, se *model.StepExecution) error {
	ec, err := marshalContext(se.ExecutionContext)
	if err != nil {
		return err
	}
	failures, err := marshalFailures(se.FailureExceptions())
	if err != nil {
		return err
	}
	entity.StepName = se.StepName
	entity.Status = se.Status.String()
	entity.ExitCode = se.ExitStatus.ExitCode
	entity.ExitDescription = se.ExitStatus.ExitDescription
	entity.StartTime = se.StartTime
	entity.EndTime = se.EndTime
	entity.LastUpdated = se.LastUpdated
	entity.ExecutionContext = ec
	entity.Failures = failures
	entity.ReadCount = se.ReadCount
	entity.WriteCount = se.WriteCount
	entity.CommitCount = se.CommitCount
	entity.RollbackCount = se.RollbackCount
	entity.FilterCount = se.FilterCount
	return nil
}

func toDomainStepExecution(entity *StepExecutionEntity, je *model.JobExecution) (*model.StepExecution, error) {
	status, err := model.ParseBatchStatus(entity.Status)
	if err != nil {
		return nil, err
	}
	ec, err := unmarshalContext(entity.ExecutionContext)
	if err != nil {
		return nil, err
	}
	failures, err := unmarshalFailures(entity.Failures)
	if err != nil {
		return nil, err
	}
	se := model.NewStepExecution(entity.ID, je, entity.StepName)
	se.Status = status
	se.ExitStatus = model.NewExitStatusWithDescription(entity.ExitCode, entity.ExitDescription)
	se.StartTime = entity.StartTime
	se.EndTime = entity.EndTime
	se.LastUpdated = entity.LastUpdated
	se.ExecutionContext = ec
	se.ReadCount = entity.ReadCount
	se.WriteCount = entity.WriteCount
	se.CommitCount = entity.CommitCount
	se.RollbackCount = entity.RollbackCount
	se.FilterCount = entity.FilterCount
	se.Version = entity.Version
	se.RestoreFailureMessages(failures)
	return se, nil
}

func marshalContext(ec *model.ExecutionContext) (string, error) {
	if ec == nil {
		return "{}", nil
	}
	data, err := ec.MarshalJSON()
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalContext(data string) (*model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	if err := ec.UnmarshalJSON([]byte(data)); err != nil {
		return nil, err
	}
	return ec, nil
}

func marshalFailures(errs []error) (string, error) {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	data, err := json.Marshal(messages)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func unmarshalFailures(data string) ([]string, error) {
	if data == "" {
		return nil, nil
	}
	var messages []string
	if err := json.Unmarshal([]byte(data), &messages); err != nil {
		return nil, err
	}
	return messages, nil
}
