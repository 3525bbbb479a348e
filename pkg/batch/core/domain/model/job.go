package model

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
)

// NewID generates a new UUID string.
func NewID() string {
	return uuid.New().String()
}

// JobParameters identifies a job instance together with the job name.
type JobParameters struct {
	Params map[string]interface{}
}

// NewJobParameters creates empty JobParameters.
func NewJobParameters() JobParameters {
	return JobParameters{Params: make(map[string]interface{})}
}

// Put stores a parameter.
func (jp JobParameters) Put(key string, value interface{}) {
	jp.Params[key] = value
}

// Get returns a parameter or nil.
func (jp JobParameters) Get(key string) interface{} {
	if jp.Params == nil {
		return nil
	}
	return jp.Params[key]
}

// GetString returns a string parameter.
func (jp JobParameters) GetString(key string) (string, bool) {
	s, ok := jp.Get(key).(string)
	return s, ok
}

// Equal compares two parameter sets.
func (jp JobParameters) Equal(other JobParameters) bool {
	if len(jp.Params) == 0 && len(other.Params) == 0 {
		return true
	}
	return reflect.DeepEqual(jp.Params, other.Params)
}

// Hash returns a stable digest of the parameters, independent of key order.
func (jp JobParameters) Hash() (string, error) {
	canonical, err := canonicalJSON(jp.Params)
	if err != nil {
		return "", exception.NewBatchError("job_parameters", "Failed to marshal JobParameters to canonical JSON for hash calculation", err, false, false)
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}

func canonicalJSON(val interface{}) ([]byte, error) {
	m, ok := val.(map[string]interface{})
	if !ok {
		return json.Marshal(val)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	sb.WriteString("{")
	for i, k := range keys {
		keyBytes, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		valBytes, err := canonicalJSON(m[k])
		if err != nil {
			return nil, err
		}
		if i > 0 {
			sb.WriteString(",")
		}
		sb.Write(keyBytes)
		sb.WriteString(":")
		sb.Write(valBytes)
	}
	sb.WriteString("}")
	return []byte(sb.String()), nil
}

// JobInstance is the logical run of a job: one per job name and parameter set.
type JobInstance struct {
	ID             string
	JobName        string
	Parameters     JobParameters
	ParametersHash string
	CreateTime     time.Time
	Version        int
}

// NewJobInstance creates a JobInstance.
func NewJobInstance(jobName string, params JobParameters) (*JobInstance, error) {
	hash, err := params.Hash()
	if err != nil {
		return nil, err
	}
	return &JobInstance{
		ID:             NewID(),
		JobName:        jobName,
		Parameters:     params,
		ParametersHash: hash,
		CreateTime:     time.Now(),
	}, nil
}

// JobExecution is one attempt to run a JobInstance. Step executions created by concurrent
// split branches are registered through the guarded methods.
type JobExecution struct {
	ID               string
	JobInstance      *JobInstance
	JobName          string
	Parameters       JobParameters
	Status           BatchStatus
	ExitStatus       ExitStatus
	CreateTime       time.Time
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ExecutionContext *ExecutionContext
	Version          int

	mu                sync.RWMutex
	stepExecutions    []*StepExecution
	failureExceptions []error
}

// NewJobExecution creates a JobExecution in STARTING state for instance.
func NewJobExecution(instance *JobInstance) *JobExecution {
	now := time.Now()
	je := &JobExecution{
		ID:               NewID(),
		JobInstance:      instance,
		Status:           BatchStatusStarting,
		ExitStatus:       ExitStatusUnknown,
		CreateTime:       now,
		LastUpdated:      now,
		ExecutionContext: NewExecutionContext(),
	}
	if instance != nil {
		je.JobName = instance.JobName
		je.Parameters = instance.Parameters
	}
	return je
}

// JobInstanceID returns the id of the owning instance, or "" when there is none.
func (je *JobExecution) JobInstanceID() string {
	if je.JobInstance == nil {
		return ""
	}
	return je.JobInstance.ID
}

// GetStatus returns the current status.
func (je *JobExecution) GetStatus() BatchStatus {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return je.Status
}

// SetStatus replaces the current status.
func (je *JobExecution) SetStatus(status BatchStatus) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = status
	je.LastUpdated = time.Now()
}

// UpgradeStatus moves the status with BatchStatus.UpgradeTo.
func (je *JobExecution) UpgradeStatus(status BatchStatus) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.Status = je.Status.UpgradeTo(status)
	je.LastUpdated = time.Now()
}

// GetExitStatus returns the current exit status.
func (je *JobExecution) GetExitStatus() ExitStatus {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return je.ExitStatus
}

// SetExitStatus replaces the current exit status.
func (je *JobExecution) SetExitStatus(status ExitStatus) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.ExitStatus = status
}

// IsStopping reports whether a stop was requested.
func (je *JobExecution) IsStopping() bool {
	return je.GetStatus() == BatchStatusStopping
}

// IsRunning reports whether the execution has started and not yet ended.
func (je *JobExecution) IsRunning() bool {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return je.StartTime != nil && je.EndTime == nil
}

// Stop requests a stop: the status becomes STOPPING and every running step execution is flagged terminate-only.
func (je *JobExecution) Stop() {
	je.mu.Lock()
	je.Status = BatchStatusStopping
	steps := append([]*StepExecution(nil), je.stepExecutions...)
	je.mu.Unlock()
	for _, se := range steps {
		se.SetTerminateOnly()
	}
}

// MarkAsStarted records the start time and moves the status to STARTED.
func (je *JobExecution) MarkAsStarted() {
	now := time.Now()
	je.mu.Lock()
	defer je.mu.Unlock()
	je.StartTime = &now
	je.Status = BatchStatusStarted
	je.LastUpdated = now
}

// MarkAsEnded records the end time.
func (je *JobExecution) MarkAsEnded() {
	now := time.Now()
	je.mu.Lock()
	defer je.mu.Unlock()
	je.EndTime = &now
	je.LastUpdated = now
}

// CreateStepExecution creates a step execution owned by je and registers it.
func (je *JobExecution) CreateStepExecution(stepName string) *StepExecution {
	se := NewStepExecution(NewID(), je, stepName)
	je.AddStepExecution(se)
	return se
}

// AddStepExecution registers se with je.
func (je *JobExecution) AddStepExecution(se *StepExecution) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.stepExecutions = append(je.stepExecutions, se)
}

// StepExecutions returns a snapshot of the registered step executions.
func (je *JobExecution) StepExecutions() []*StepExecution {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return append([]*StepExecution(nil), je.stepExecutions...)
}

// AddFailureException records a failure.
func (je *JobExecution) AddFailureException(err error) {
	if err == nil {
		return
	}
	je.mu.Lock()
	defer je.mu.Unlock()
	je.failureExceptions = append(je.failureExceptions, err)
	je.LastUpdated = time.Now()
}

// FailureExceptions returns the failures recorded on the job execution itself.
func (je *JobExecution) FailureExceptions() []error {
	je.mu.RLock()
	defer je.mu.RUnlock()
	return append([]error(nil), je.failureExceptions...)
}

// RestoreFailureMessages replaces the failure list with errors rebuilt from persisted messages.
func (je *JobExecution) RestoreFailureMessages(messages []string) {
	je.mu.Lock()
	defer je.mu.Unlock()
	je.failureExceptions = je.failureExceptions[:0]
	for _, msg := range messages {
		je.failureExceptions = append(je.failureExceptions, fmt.Errorf("%s", msg))
	}
}

// AllFailureExceptions returns the job failures followed by the failures of every step execution.
func (je *JobExecution) AllFailureExceptions() []error {
	all := je.FailureExceptions()
	for _, se := range je.StepExecutions() {
		all = append(all, se.FailureExceptions()...)
	}
	return all
}

func (je *JobExecution) String() string {
	return fmt.Sprintf("JobExecution: id=%s, job=[%s], status=%s, exitStatus=%s", je.ID, je.JobName, je.GetStatus(), je.GetExitStatus())
}
