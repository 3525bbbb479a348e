package test

import (
	"context"
	"sync"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

var recordMu sync.Mutex

func record(calls *[]string, entry string) {
	if calls == nil {
		return
	}
	recordMu.Lock()
	defer recordMu.Unlock()
	*calls = append(*calls, entry)
}

// RecordingStepListener appends "<name>.before" and "<name>.after" to a shared slice.
type RecordingStepListener struct {
	ID          string
	Status      model.ExitStatus
	PanicBefore bool
	PanicAfter  bool
	calls       *[]string
}

var _ port.StepExecutionListener = (*RecordingStepListener)(nil)

// NewRecordingStepListener creates a listener recording into calls.
func NewRecordingStepListener(id string, calls *[]string) *RecordingStepListener {
	return &RecordingStepListener{ID: id, calls: calls}
}

// BeforeStep records the call.
func (l *RecordingStepListener) BeforeStep(ctx context.Context, se *model.StepExecution) {
	if l.PanicBefore {
		panic(l.ID + " before")
	}
	record(l.calls, l.ID+".before")
}

// AfterStep records the call and returns Status.
func (l *RecordingStepListener) AfterStep(ctx context.Context, se *model.StepExecution) model.ExitStatus {
	if l.PanicAfter {
		panic(l.ID + " after")
	}
	record(l.calls, l.ID+".after")
	return l.Status
}

// RecordingJobListener appends "<name>.before" and "<name>.after" to a shared slice.
type RecordingJobListener struct {
	ID          string
	PanicBefore bool
	calls       *[]string
}

var _ port.JobExecutionListener = (*RecordingJobListener)(nil)

// NewRecordingJobListener creates a listener recording into calls.
func NewRecordingJobListener(id string, calls *[]string) *RecordingJobListener {
	return &RecordingJobListener{ID: id, calls: calls}
}

// BeforeJob records the call.
func (l *RecordingJobListener) BeforeJob(ctx context.Context, je *model.JobExecution) {
	if l.PanicBefore {
		panic(l.ID + " before")
	}
	record(l.calls, l.ID+".before")
}

// AfterJob records the call.
func (l *RecordingJobListener) AfterJob(ctx context.Context, je *model.JobExecution) {
	record(l.calls, l.ID+".after")
}
