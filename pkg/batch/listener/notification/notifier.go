// Package notification sends a notification when a job execution finishes.
package notification

import (
	"context"
	"fmt"
	"strings"
	"time"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// Notifier is an abstract interface for notifying external systems about job execution results.
type Notifier interface {
	// NotifyJobCompletion notifies about job completion (success/failure/stop).
	NotifyJobCompletion(ctx context.Context, execution *model.JobExecution)
}

// LogNotifier is a Notifier that writes notifications to the batch logger.
type LogNotifier struct{}

// NewLogNotifier creates a new instance of LogNotifier.
func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

// NotifyJobCompletion logs a summary of execution. Unsuccessful executions are logged as warnings.
func (n *LogNotifier) NotifyJobCompletion(ctx context.Context, execution *model.JobExecution) {
	status := execution.GetStatus()
	logf := logger.Infof
	if status != model.BatchStatusCompleted {
		logf = logger.Warnf
	}
	logf("%s", Message(execution))
}

var _ Notifier = (*LogNotifier)(nil)

// Message formats the notification text for execution.
func Message(execution *model.JobExecution) string {
	duration := time.Duration(0)
	if execution.StartTime != nil && execution.EndTime != nil {
		duration = execution.EndTime.Sub(*execution.StartTime)
	}
	return fmt.Sprintf(
		"Job Notification: Job '%s' (ID: %s) finished with Status: %s, ExitStatus: %s. Duration: %s, Failures: %d",
		execution.JobName,
		execution.ID,
		execution.GetStatus(),
		execution.GetExitStatus(),
		duration,
		len(execution.AllFailureExceptions()),
	)
}

// Properties are the JSL properties understood by NotificationJobListener.
type Properties struct {
	// Statuses restricts notifications to executions ending with one of these batch statuses.
	// Empty means every execution is notified.
	Statuses []string `yaml:"statuses"`
}

// NotificationJobListener notifies a Notifier after every job execution it is attached to.
type NotificationJobListener struct {
	notifier Notifier
	statuses map[string]bool
}

// NewNotificationJobListener creates a NotificationJobListener.
func NewNotificationJobListener(notifier Notifier, props Properties) *NotificationJobListener {
	l := &NotificationJobListener{notifier: notifier}
	if len(props.Statuses) > 0 {
		l.statuses = make(map[string]bool, len(props.Statuses))
		for _, s := range props.Statuses {
			l.statuses[strings.ToUpper(strings.TrimSpace(s))] = true
		}
	}
	return l
}

func (l *NotificationJobListener) BeforeJob(ctx context.Context, jobExecution *model.JobExecution) {}

func (l *NotificationJobListener) AfterJob(ctx context.Context, jobExecution *model.JobExecution) {
	if l.statuses != nil && !l.statuses[jobExecution.GetStatus().String()] {
		return
	}
	l.notifier.NotifyJobCompletion(ctx, jobExecution)
}

var _ port.JobExecutionListener = (*NotificationJobListener)(nil)
