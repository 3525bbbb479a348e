package sql

import "time"

// JobInstanceEntity is the row of batch_job_instance.
type JobInstanceEntity struct {
	ID             string `gorm:"primaryKey"`
	JobName        string
	ParametersHash string
	Parameters     string
	CreateTime     time.Time
	Version        int
}

func (JobInstanceEntity) TableName() string {
	return "batch_job_instance"
}

// JobExecutionEntity is the row of batch_job_execution.
type JobExecutionEntity struct {
	ID               string `gorm:"primaryKey"`
	JobInstanceID    string
	Status           string
	ExitCode         string
	ExitDescription  string
	CreateTime       time.Time
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ExecutionContext string
	Failures         string
	Version          int
	// Seq orders executions created within the same clock tick.
	Seq int64 `gorm:"autoIncrement:false"`
}

func (JobExecutionEntity) TableName() string {
	return "batch_job_execution"
}

// StepExecutionEntity is the row of batch_step_execution.
type StepExecutionEntity struct {
	ID               string `gorm:"primaryKey"`
	JobExecutionID   string
	StepName         string
	Status           string
	ExitCode         string
	ExitDescription  string
	StartTime        *time.Time
	EndTime          *time.Time
	LastUpdated      time.Time
	ExecutionContext string
	Failures         string
	ReadCount        int
	WriteCount       int
	CommitCount      int
	RollbackCount    int
	FilterCount      int
	Version          int
	Seq              int64 `gorm:"autoIncrement:false"`
}

func (StepExecutionEntity) TableName() string {
	return "batch_step_execution"
}
