package inmemory

import (
	"time"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

// Executions are stored as detached records so that callers never share state with the repository.
// Execution contexts are kept in their serialized form, which also makes every read a deep copy.

type jobExecutionRecord struct {
	seq         int64
	ID          string
	InstanceID  string
	Status      model.BatchStatus
	ExitStatus  model.ExitStatus
	CreateTime  time.Time
	StartTime   *time.Time
	EndTime     *time.Time
	LastUpdated time.Time
	Context     []byte
	Failures    []string
	Version     int
}

type stepExecutionRecord struct {
	seq            int64
	ID             string
	JobExecutionID string
	StepName       string
	Status         model.BatchStatus
	ExitStatus     model.ExitStatus
	StartTime      *time.Time
	EndTime        *time.Time
	LastUpdated    time.Time
	Context        []byte
	Failures       []string
	ReadCount      int
	WriteCount     int
	CommitCount    int
	RollbackCount  int
	FilterCount    int
	Version        int
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func failureMessages(errs []error) []string {
	messages := make([]string, 0, len(errs))
	for _, err := range errs {
		messages = append(messages, err.Error())
	}
	return messages
}

func marshalContext(ec *model.ExecutionContext) ([]byte, error) {
	if ec == nil {
		return []byte("{}"), nil
	}
	return ec.MarshalJSON()
}

func unmarshalContext(data []byte) (*model.ExecutionContext, error) {
	ec := model.NewExecutionContext()
	if err := ec.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return ec, nil
}

func copyInstance(instance *model.JobInstance) *model.JobInstance {
	c := *instance
	c.Parameters = model.NewJobParameters()
	for k, v := range instance.Parameters.Params {
		c.Parameters.Params[k] = v
	}
	return &c
}

func (r *jobExecutionRecord) fill(je *model.JobExecution) error {
	data, err := marshalContext(je.ExecutionContext)
	if err != nil {
		return err
	}
	r.Status = je.GetStatus()
	r.ExitStatus = je.GetExitStatus()
	r.StartTime = copyTime(je.StartTime)
	r.EndTime = copyTime(je.EndTime)
	r.LastUpdated = je.LastUpdated
	r.Context = data
	r.Failures = failureMessages(je.FailureExceptions())
	return nil
}

func (r *stepExecutionRecord) fill(se *model.StepExecution) error {
	data, err := marshalContext(se.ExecutionContext)
	if err != nil {
		return err
	}
	r.StepName = se.StepName
	r.Status = se.Status
	r.ExitStatus = se.ExitStatus
	r.StartTime = copyTime(se.StartTime)
	r.EndTime = copyTime(se.EndTime)
	r.LastUpdated = se.LastUpdated
	r.Context = data
	r.Failures = failureMessages(se.FailureExceptions())
	r.ReadCount = se.ReadCount
	r.WriteCount = se.WriteCount
	r.CommitCount = se.CommitCount
	r.RollbackCount = se.RollbackCount
	r.FilterCount = se.FilterCount
	return nil
}
