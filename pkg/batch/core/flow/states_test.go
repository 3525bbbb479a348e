package flow_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

func singleStateFlow(t *testing.T, name string, state flow.State) *flow.SimpleFlow {
	t.Helper()
	f, err := flow.NewSimpleFlow(name, []flow.StateTransition{flow.MustStateTransition(state, "*", "")})
	require.NoError(t, err)
	return f
}

func TestMaxValueAggregator(t *testing.T) {
	agg := flow.MaxValueAggregator{}
	assert.Equal(t, model.FlowExecutionStatusUnknown, agg.Aggregate(nil))

	a := model.NewFlowExecution("a", model.FlowExecutionStatusCompleted)
	b := model.NewFlowExecution("b", model.FlowExecutionStatusFailed)
	c := model.NewFlowExecution("c", model.FlowExecutionStatusStopped)

	assert.Equal(t, model.FlowExecutionStatusFailed, agg.Aggregate([]model.FlowExecution{a, b, c}))
	assert.Equal(t, model.FlowExecutionStatusFailed, agg.Aggregate([]model.FlowExecution{c, b, a}))
	assert.Equal(t, model.FlowExecutionStatusFailed, agg.Aggregate([]model.FlowExecution{b, a, c}))
	assert.Equal(t, model.FlowExecutionStatusCompleted, agg.Aggregate([]model.FlowExecution{a}))
}

func TestSplitState_AggregatesWorstStatus(t *testing.T) {
	executors := map[string]task.TaskExecutor{
		"sync":  task.NewSyncTaskExecutor(),
		"async": task.NewAsyncTaskExecutor(0),
		"pool":  task.NewPooledTaskExecutor(2, 4),
	}
	for name, te := range executors {
		t.Run(name, func(t *testing.T) {
			f1 := singleStateFlow(t, "f1", flow.NewStepState(testutil.NewScriptedStep("s1", "COMPLETED")))
			f2 := singleStateFlow(t, "f2", flow.NewStepState(testutil.NewScriptedStep("s2", "FAILED")))
			f3 := singleStateFlow(t, "f3", flow.NewStepState(testutil.NewScriptedStep("s3", "STOPPED")))

			var observed model.FlowExecutionStatus
			split := flow.NewSplitState("split", []flow.Flow{f1, f2, f3}, te,
				flow.WithSplitObserver(func(ctx context.Context, splitName string, flows int, status model.FlowExecutionStatus, d time.Duration) {
					observed = status
				}))

			executor := testutil.NewStubFlowExecutor()
			status, err := split.Handle(context.Background(), executor)
			require.NoError(t, err)
			assert.Equal(t, model.FlowExecutionStatusFailed, status)
			assert.Equal(t, model.FlowExecutionStatusFailed, observed)
			assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, executor.Executed())
		})
	}
}

type rejectingExecutor struct {
	accept int32
	inner  task.TaskExecutor
}

func (r *rejectingExecutor) Execute(t task.Task) error {
	if atomic.AddInt32(&r.accept, -1) < 0 {
		return task.ErrTaskRejected
	}
	return r.inner.Execute(t)
}

func TestSplitState_RejectedTaskFailsSplit(t *testing.T) {
	s1 := testutil.NewScriptedStep("s1", "COMPLETED")
	s2 := testutil.NewScriptedStep("s2", "COMPLETED")
	f1 := singleStateFlow(t, "f1", flow.NewStepState(s1))
	f2 := singleStateFlow(t, "f2", flow.NewStepState(s2))

	split := flow.NewSplitState("split", []flow.Flow{f1, f2}, &rejectingExecutor{accept: 1, inner: task.NewSyncTaskExecutor()})
	_, err := split.Handle(context.Background(), testutil.NewStubFlowExecutor())

	var flowErr *flow.FlowExecutionError
	require.ErrorAs(t, err, &flowErr)
	assert.Equal(t, "TaskExecutor rejected task for flow=f2", flowErr.Message)
	assert.ErrorIs(t, err, task.ErrTaskRejected)
	assert.Equal(t, 1, s1.Calls())
	assert.Equal(t, 0, s2.Calls())
}

func TestSplitState_BranchErrorPropagates(t *testing.T) {
	cause := errors.New("branch failed")
	bad := testutil.NewScriptedStep("bad", "FAILED")
	bad.Err = cause
	f1 := singleStateFlow(t, "f1", flow.NewStepState(testutil.NewScriptedStep("ok", "COMPLETED")))
	f2 := singleStateFlow(t, "f2", flow.NewStepState(bad))

	split := flow.NewSplitState("split", []flow.Flow{f1, f2}, task.NewAsyncTaskExecutor(0))
	_, err := split.Handle(context.Background(), testutil.NewStubFlowExecutor())
	assert.ErrorIs(t, err, cause)
}

func TestSplitState_NestedInFlow(t *testing.T) {
	f1 := singleStateFlow(t, "f1", flow.NewStepState(testutil.NewScriptedStep("s1", "COMPLETED")))
	f2 := singleStateFlow(t, "f2", flow.NewStepState(testutil.NewScriptedStep("s2", "COMPLETED")))
	split := flow.NewSplitState("split", []flow.Flow{f1, f2}, task.NewAsyncTaskExecutor(2))
	after := flow.NewStepState(testutil.NewScriptedStep("after", "COMPLETED"))

	job, err := flow.NewSimpleFlow("job", []flow.StateTransition{
		flow.MustStateTransition(split, "COMPLETED", "after"),
		flow.MustStateTransition(split, "*", ""),
		flow.MustStateTransition(after, "*", ""),
	})
	require.NoError(t, err)

	executor := testutil.NewStubFlowExecutor()
	result, err := job.Start(context.Background(), executor)
	require.NoError(t, err)
	assert.Equal(t, "after", result.Name)
	assert.Equal(t, "after", executor.Executed()[2])
	assert.Equal(t, []string{"s1", "s2"}, job.StepNames()[:2])
}

func TestSplitState_NestedSplitOnPool(t *testing.T) {
	pool := task.NewPooledTaskExecutor(1, 4)
	defer pool.Shutdown(context.Background())

	inner := flow.NewSplitState("inner", []flow.Flow{
		singleStateFlow(t, "i1", flow.NewStepState(testutil.NewScriptedStep("s1", "COMPLETED"))),
		singleStateFlow(t, "i2", flow.NewStepState(testutil.NewScriptedStep("s2", "COMPLETED"))),
	}, pool)
	outer := flow.NewSplitState("outer", []flow.Flow{
		singleStateFlow(t, "nested", inner),
		singleStateFlow(t, "f3", flow.NewStepState(testutil.NewScriptedStep("s3", "COMPLETED"))),
	}, pool)

	executor := testutil.NewStubFlowExecutor()
	type outcome struct {
		status model.FlowExecutionStatus
		err    error
	}
	done := make(chan outcome, 1)
	go func() {
		status, err := outer.Handle(context.Background(), executor)
		done <- outcome{status, err}
	}()

	select {
	case res := <-done:
		require.NoError(t, res.err)
		assert.Equal(t, model.FlowExecutionStatusCompleted, res.status)
	case <-time.After(5 * time.Second):
		t.Fatal("nested split did not join")
	}
	assert.ElementsMatch(t, []string{"s1", "s2", "s3"}, executor.Executed())
}

func TestEndState(t *testing.T) {
	t.Run("completed records exit code", func(t *testing.T) {
		end := flow.NewEndStateWithCode("end", model.FlowExecutionStatusCompleted, "ALL_DONE", false)
		executor := testutil.NewStubFlowExecutor()
		status, err := end.Handle(context.Background(), executor)
		require.NoError(t, err)
		assert.Equal(t, model.FlowExecutionStatusCompleted, status)
		assert.Equal(t, []string{"ALL_DONE"}, executor.ExitCodes())
		assert.True(t, end.IsEndState())
	})

	t.Run("code defaults to status", func(t *testing.T) {
		end := flow.NewEndState("fail", model.FlowExecutionStatusFailed)
		assert.Equal(t, "FAILED", end.Code())
	})

	t.Run("unknown step short-circuits", func(t *testing.T) {
		end := flow.NewEndState("end", model.FlowExecutionStatusFailed)
		executor := testutil.NewStubFlowExecutor()
		se := testutil.NewTestStepExecution(executor.JobExecution, "s")
		se.Status = model.BatchStatusUnknown
		executor.SetStepExecution(se)

		status, err := end.Handle(context.Background(), executor)
		require.NoError(t, err)
		assert.Equal(t, model.FlowExecutionStatusUnknown, status)
		assert.Empty(t, executor.ExitCodes())
	})

	t.Run("stop abandons when not restarting", func(t *testing.T) {
		end := flow.NewEndStateWithCode("stop", model.FlowExecutionStatusStopped, "", true)
		executor := testutil.NewStubFlowExecutor()
		status, err := end.Handle(context.Background(), executor)
		require.NoError(t, err)
		assert.Equal(t, model.FlowExecutionStatusStopped, status)
		assert.Equal(t, 1, executor.Abandons())
		assert.Equal(t, []string{"STOPPED"}, executor.ExitCodes())
		assert.False(t, end.IsEndState())
	})

	t.Run("stop on restart completes", func(t *testing.T) {
		end := flow.NewEndStateWithCode("stop", model.FlowExecutionStatusStopped, "", true)
		executor := testutil.NewStubFlowExecutor()
		executor.Restart = true
		status, err := end.Handle(context.Background(), executor)
		require.NoError(t, err)
		assert.Equal(t, model.FlowExecutionStatusCompleted, status)
		assert.Equal(t, 0, executor.Abandons())
		assert.Empty(t, executor.ExitCodes())
	})
}

func TestStopAndRestartFlow(t *testing.T) {
	step1 := testutil.NewScriptedStep("step1", "COMPLETED")
	step2 := testutil.NewScriptedStep("step2", "COMPLETED")
	s1 := flow.NewStepState(step1)
	stop := flow.NewEndState("stop", model.FlowExecutionStatusStopped)
	s2 := flow.NewStepState(step2)

	f, err := flow.NewSimpleFlow("job", []flow.StateTransition{
		flow.MustStateTransition(s1, "COMPLETED", "stop"),
		flow.MustStateTransition(stop, "*", "step2"),
		flow.MustStateTransition(s2, "*", ""),
	})
	require.NoError(t, err)

	first, err := f.Start(context.Background(), testutil.NewStubFlowExecutor())
	require.NoError(t, err)
	assert.Equal(t, "stop", first.Name)
	assert.Equal(t, model.FlowExecutionStatusStopped, first.Status)
	assert.Equal(t, 0, step2.Calls())

	restart := testutil.NewStubFlowExecutor()
	restart.Restart = true
	second, err := f.Resume(context.Background(), "stop", restart)
	require.NoError(t, err)
	assert.Equal(t, "step2", second.Name)
	assert.Equal(t, 1, step2.Calls())
}

type fixedDecider struct{ status model.FlowExecutionStatus }

func (d fixedDecider) Decide(ctx context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error) {
	return d.status, nil
}

func TestDecisionState(t *testing.T) {
	decision := flow.NewDecisionState("decide", fixedDecider{status: model.NewFlowExecutionStatus("ODD")})
	even := flow.NewStepState(testutil.NewScriptedStep("even", "COMPLETED"))
	odd := flow.NewStepState(testutil.NewScriptedStep("odd", "COMPLETED"))

	f, err := flow.NewSimpleFlow("job", []flow.StateTransition{
		flow.MustStateTransition(decision, "EVEN", "even"),
		flow.MustStateTransition(decision, "ODD", "odd"),
		flow.MustStateTransition(even, "*", ""),
		flow.MustStateTransition(odd, "*", ""),
	})
	require.NoError(t, err)

	executor := testutil.NewStubFlowExecutor()
	result, err := f.Start(context.Background(), executor)
	require.NoError(t, err)
	assert.Equal(t, "odd", result.Name)
	assert.Equal(t, []string{"odd"}, executor.Executed())
}

func TestStepState_AbandonFailureStopsStep(t *testing.T) {
	step := testutil.NewScriptedStep("s", "COMPLETED")
	state := flow.NewStepState(step)
	executor := testutil.NewStubFlowExecutor()
	executor.AbandonErr = errors.New("cannot abandon")

	_, err := state.Handle(context.Background(), executor)
	assert.EqualError(t, err, "cannot abandon")
	assert.Equal(t, 0, step.Calls())
}
