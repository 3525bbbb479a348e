package metrics

import (
	"context"
	"sync"
	"time"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// MetricEvent is a metric recording deferred to the worker goroutine.
type MetricEvent struct {
	Type   string
	ID     string
	record func(ctx context.Context, recorder metrics.MetricRecorder)
}

// Metric event type constants
const (
	MetricEventTypeJobStart       = "job_start"
	MetricEventTypeJobEnd         = "job_end"
	MetricEventTypeStepStart      = "step_start"
	MetricEventTypeStepEnd        = "step_end"
	MetricEventTypeFlowTransition = "flow_transition"
	MetricEventTypeSplit          = "split"
)

// AsyncMetricRecorder asynchronously records metrics by pushing events to a channel
// and processing them in a separate goroutine. Executions are copied when the event is
// queued, so the engine may keep mutating them.
type AsyncMetricRecorder struct {
	eventQueue   chan MetricEvent
	stopCh       chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup
	syncRecorder metrics.MetricRecorder
}

// NewAsyncMetricRecorder creates a new asynchronous metric recorder.
// bufferSize: The buffer size for the event queue. If 0 or less, a default value is used.
// syncRec: The synchronous recorder that performs the actual metric recording.
func NewAsyncMetricRecorder(bufferSize int, syncRec metrics.MetricRecorder) *AsyncMetricRecorder {
	if bufferSize <= 0 {
		bufferSize = 100
	}
	r := &AsyncMetricRecorder{
		eventQueue:   make(chan MetricEvent, bufferSize),
		stopCh:       make(chan struct{}),
		syncRecorder: syncRec,
	}
	r.wg.Add(1)
	go r.run()
	logger.Debugf("AsyncMetricRecorder: Worker goroutine started (buffer size: %d).", bufferSize)
	return r
}

func (r *AsyncMetricRecorder) run() {
	defer r.wg.Done()
	ctx := context.Background()
	for {
		select {
		case event := <-r.eventQueue:
			event.record(ctx, r.syncRecorder)
		case <-r.stopCh:
			remaining := len(r.eventQueue)
			for i := 0; i < remaining; i++ {
				event := <-r.eventQueue
				event.record(ctx, r.syncRecorder)
			}
			logger.Debugf("AsyncMetricRecorder: Worker goroutine stopped. Processed %d remaining events.", remaining)
			return
		}
	}
}

// Close stops the worker after it has drained the queue. Events sent after Close are discarded.
func (r *AsyncMetricRecorder) Close() {
	r.stopOnce.Do(func() {
		logger.Debugf("AsyncMetricRecorder: Sending shutdown signal...")
		close(r.stopCh)
	})
	r.wg.Wait()
}

func (r *AsyncMetricRecorder) sendEvent(event MetricEvent) {
	select {
	case <-r.stopCh:
		logger.Warnf("AsyncMetricRecorder: recorder is closed (type: %s, ID: %s). Event discarded.", event.Type, event.ID)
		return
	default:
	}
	select {
	case r.eventQueue <- event:
	default:
		logger.Warnf("AsyncMetricRecorder: Event queue is full (type: %s, ID: %s). Event discarded.", event.Type, event.ID)
	}
}

// RecordJobStart asynchronously records the start event of a JobExecution.
func (r *AsyncMetricRecorder) RecordJobStart(ctx context.Context, execution *model.JobExecution) {
	snapshot := snapshotJob(execution)
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobStart, ID: execution.ID, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordJobStart(ctx, snapshot)
	}})
}

// RecordJobEnd asynchronously records the end event of a JobExecution.
func (r *AsyncMetricRecorder) RecordJobEnd(ctx context.Context, execution *model.JobExecution) {
	snapshot := snapshotJob(execution)
	r.sendEvent(MetricEvent{Type: MetricEventTypeJobEnd, ID: execution.ID, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordJobEnd(ctx, snapshot)
	}})
}

// RecordStepStart asynchronously records the start event of a StepExecution.
func (r *AsyncMetricRecorder) RecordStepStart(ctx context.Context, execution *model.StepExecution) {
	snapshot := snapshotStep(execution)
	r.sendEvent(MetricEvent{Type: MetricEventTypeStepStart, ID: execution.ID, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordStepStart(ctx, snapshot)
	}})
}

// RecordStepEnd asynchronously records the end event of a StepExecution.
// A step that has not been marked as ended is snapshotted with the current time as end time.
func (r *AsyncMetricRecorder) RecordStepEnd(ctx context.Context, execution *model.StepExecution) {
	snapshot := snapshotStep(execution)
	if snapshot.EndTime == nil {
		now := time.Now()
		snapshot.EndTime = &now
	}
	r.sendEvent(MetricEvent{Type: MetricEventTypeStepEnd, ID: execution.ID, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordStepEnd(ctx, snapshot)
	}})
}

// RecordFlowTransition asynchronously records a flow transition.
func (r *AsyncMetricRecorder) RecordFlowTransition(ctx context.Context, flowName, from, status, to string) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeFlowTransition, ID: flowName, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordFlowTransition(ctx, flowName, from, status, to)
	}})
}

// RecordSplit asynchronously records a split.
func (r *AsyncMetricRecorder) RecordSplit(ctx context.Context, splitName string, flows int, status string, duration time.Duration) {
	r.sendEvent(MetricEvent{Type: MetricEventTypeSplit, ID: splitName, record: func(ctx context.Context, rec metrics.MetricRecorder) {
		rec.RecordSplit(ctx, splitName, flows, status, duration)
	}})
}

var _ metrics.MetricRecorder = (*AsyncMetricRecorder)(nil)

func snapshotJob(execution *model.JobExecution) *model.JobExecution {
	return &model.JobExecution{
		ID:          execution.ID,
		JobInstance: execution.JobInstance,
		JobName:     execution.JobName,
		Status:      execution.GetStatus(),
		ExitStatus:  execution.GetExitStatus(),
		CreateTime:  execution.CreateTime,
		StartTime:   execution.StartTime,
		EndTime:     execution.EndTime,
	}
}

func snapshotStep(execution *model.StepExecution) *model.StepExecution {
	var job *model.JobExecution
	if execution.JobExecution != nil {
		job = &model.JobExecution{ID: execution.JobExecution.ID, JobName: execution.JobExecution.JobName}
	}
	return &model.StepExecution{
		ID:            execution.ID,
		StepName:      execution.StepName,
		JobExecution:  job,
		Status:        execution.Status,
		ExitStatus:    execution.ExitStatus,
		StartTime:     execution.StartTime,
		EndTime:       execution.EndTime,
		ReadCount:     execution.ReadCount,
		WriteCount:    execution.WriteCount,
		CommitCount:   execution.CommitCount,
		RollbackCount: execution.RollbackCount,
		FilterCount:   execution.FilterCount,
	}
}
