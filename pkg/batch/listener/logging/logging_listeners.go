// Package logging provides job and step listeners that write lifecycle messages through
// the batch logger.
package logging

import (
	"context"
	"strings"
	"time"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/serialization"
)

// Order places the logging listeners after the metrics and tracing listeners in
// before-callbacks, ahead of listeners declared in JSL.
const Order = -50

// Properties are the JSL properties understood by the logging listeners.
type Properties struct {
	// Level is "info" (default) or "debug".
	Level string `yaml:"level"`
}

func logFunc(level string) func(format string, v ...interface{}) {
	if strings.EqualFold(level, "debug") {
		return logger.Debugf
	}
	return logger.Infof
}

// --- Job Execution Listener ---

// LoggingJobListener logs the start and the outcome of a job execution.
type LoggingJobListener struct {
	logf       func(format string, v ...interface{})
	maskedKeys []string
}

// NewLoggingJobListener creates a LoggingJobListener. Values of parameters named in
// maskedKeys are masked.
func NewLoggingJobListener(props Properties, maskedKeys []string) *LoggingJobListener {
	return &LoggingJobListener{logf: logFunc(props.Level), maskedKeys: maskedKeys}
}

func (l *LoggingJobListener) Order() int { return Order }

func (l *LoggingJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {
	l.logf("JobExecutionListener: BeforeJob - JobName: %s, ID: %s, Params: %v",
		jobExecution.JobName, jobExecution.ID, serialization.MaskParameters(jobExecution.Parameters.Params, l.maskedKeys))
}

func (l *LoggingJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	status := jobExecution.GetStatus()
	failures := jobExecution.AllFailureExceptions()
	l.logf("JobExecutionListener: AfterJob - JobName: %s, Status: %s, ExitStatus: %s, Steps: %d, Duration: %s",
		jobExecution.JobName, status, jobExecution.GetExitStatus(), len(jobExecution.StepExecutions()),
		duration(jobExecution.StartTime, jobExecution.EndTime))
	if status.IsUnsuccessful() {
		for _, err := range failures {
			logger.Warnf("JobExecutionListener: Job '%s' failure: %v", jobExecution.JobName, err)
		}
	}
}

var (
	_ port.JobExecutionListener = (*LoggingJobListener)(nil)
	_ port.Ordered              = (*LoggingJobListener)(nil)
)

// --- Step Execution Listener ---

// LoggingStepListener logs the start and the outcome of a step execution.
type LoggingStepListener struct {
	logf func(format string, v ...interface{})
}

// NewLoggingStepListener creates a LoggingStepListener.
func NewLoggingStepListener(props Properties) *LoggingStepListener {
	return &LoggingStepListener{logf: logFunc(props.Level)}
}

func (l *LoggingStepListener) Order() int { return Order }

func (l *LoggingStepListener) BeforeStep(ctx context.Context, stepExecution *model.StepExecution) {
	l.logf("StepExecutionListener: BeforeStep - StepName: %s, ID: %s", stepExecution.StepName, stepExecution.ID)
}

// AfterStep leaves the exit status unchanged.
func (l *LoggingStepListener) AfterStep(ctx context.Context, stepExecution *model.StepExecution) model.ExitStatus {
	l.logf("StepExecutionListener: AfterStep - StepName: %s, Status: %s, ExitStatus: %s, Read: %d, Write: %d, Filter: %d, Commit: %d, Rollback: %d, Duration: %s",
		stepExecution.StepName, stepExecution.Status, stepExecution.ExitStatus,
		stepExecution.ReadCount, stepExecution.WriteCount, stepExecution.FilterCount,
		stepExecution.CommitCount, stepExecution.RollbackCount,
		duration(stepExecution.StartTime, stepExecution.EndTime))
	for _, err := range stepExecution.FailureExceptions() {
		logger.Warnf("StepExecutionListener: Step '%s' failure: %v", stepExecution.StepName, err)
	}
	return model.ExitStatus{}
}

var (
	_ port.StepExecutionListener = (*LoggingStepListener)(nil)
	_ port.Ordered               = (*LoggingStepListener)(nil)
)

// duration is measured up to now while the execution is still running.
func duration(start, end *time.Time) time.Duration {
	if start == nil {
		return 0
	}
	if end == nil {
		return time.Since(*start).Round(time.Millisecond)
	}
	return end.Sub(*start).Round(time.Millisecond)
}
