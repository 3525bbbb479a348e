package flow

import (
	"context"
	"time"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// SplitObserver is notified when a split has joined all of its flows.
type SplitObserver func(ctx context.Context, splitName string, flows int, status model.FlowExecutionStatus, duration time.Duration)

// SplitState runs several flows in parallel through a TaskExecutor and waits for all of them.
type SplitState struct {
	namedState
	flows        []Flow
	taskExecutor task.TaskExecutor
	aggregator   Aggregator
	observer     SplitObserver
}

var (
	_ State      = (*SplitState)(nil)
	_ FlowHolder = (*SplitState)(nil)
)

// SplitOption configures a SplitState.
type SplitOption func(*SplitState)

// WithAggregator replaces the default MaxValueAggregator.
func WithAggregator(aggregator Aggregator) SplitOption {
	return func(s *SplitState) {
		if aggregator != nil {
			s.aggregator = aggregator
		}
	}
}

// WithSplitObserver registers an observer called after each join.
func WithSplitObserver(observer SplitObserver) SplitOption {
	return func(s *SplitState) {
		s.observer = observer
	}
}

// NewSplitState creates a SplitState. A nil taskExecutor runs the flows one after another
// in the calling goroutine.
func NewSplitState(name string, flows []Flow, taskExecutor task.TaskExecutor, opts ...SplitOption) *SplitState {
	if taskExecutor == nil {
		taskExecutor = task.NewSyncTaskExecutor()
	}
	s := &SplitState{
		namedState:   namedState{name: name},
		flows:        flows,
		taskExecutor: taskExecutor,
		aggregator:   MaxValueAggregator{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

type branchResult struct {
	execution model.FlowExecution
	err       error
}

// Handle abandons the previous step execution if needed, then submits one task per flow and
// joins them. Branches start without a previous step execution. A rejected task fails the split
// once the tasks already accepted have finished. Otherwise the first branch error, in flow order,
// is returned, and without errors the aggregated status.
func (s *SplitState) Handle(ctx context.Context, executor Executor) (model.FlowExecutionStatus, error) {
	if err := executor.AbandonStepExecution(ctx); err != nil {
		return model.FlowExecutionStatusUnknown, err
	}
	started := time.Now()
	pending := make([]chan branchResult, 0, len(s.flows))
	var rejectErr error

	for _, f := range s.flows {
		f := f
		branch := branchOf(executor)
		done := make(chan branchResult, 1)
		logger.Debugf("Split '%s': dispatching flow '%s'.", s.name, f.Name())
		err := s.taskExecutor.Execute(func() {
			var res branchResult
			defer func() {
				if r := recover(); r != nil {
					res.err = exception.FromPanic(s.name, r)
				}
				done <- res
			}()
			res.execution, res.err = f.Start(ctx, branch)
		})
		if err != nil {
			rejectErr = newFlowExecutionError(err, "TaskExecutor rejected task for flow=%s", f.Name())
			break
		}
		pending = append(pending, done)
	}

	executions := make([]model.FlowExecution, 0, len(pending))
	var branchErr error
	for _, done := range pending {
		res := s.await(done)
		if res.err != nil {
			if branchErr == nil {
				branchErr = res.err
			}
			continue
		}
		executions = append(executions, res.execution)
	}

	if rejectErr != nil {
		logger.Errorf("Split '%s': %v", s.name, rejectErr)
		return model.FlowExecutionStatusUnknown, rejectErr
	}
	if branchErr != nil {
		return model.FlowExecutionStatusUnknown, branchErr
	}

	status := s.aggregator.Aggregate(executions)
	logger.Debugf("Split '%s': %d flows joined with status %s.", s.name, len(executions), status.Name)
	if s.observer != nil {
		s.observer(ctx, s.name, len(executions), status, time.Since(started))
	}
	return status, nil
}

// await waits for a branch result. While waiting it runs tasks still queued on a
// task.PendingRunner, so a branch that holds a pool worker can join a nested split.
func (s *SplitState) await(done <-chan branchResult) branchResult {
	runner, ok := s.taskExecutor.(task.PendingRunner)
	if !ok {
		return <-done
	}
	for {
		select {
		case res := <-done:
			return res
		default:
		}
		if !runner.RunPending() {
			return <-done
		}
	}
}

// GetFlows returns the parallel flows.
func (s *SplitState) GetFlows() []Flow {
	return s.flows
}
