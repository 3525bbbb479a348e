package job_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/job"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

func TestFlowJob_RunsStepsToCompletion(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	b := newCountingStep("b", repo)

	var calls []string
	j := job.NewFlowJob("sequenceJob",
		sequence(t, "sequenceJob", flow.NewStepState(a), flow.NewStepState(b)),
		repo,
		job.WithJobListeners(
			testutil.NewRecordingJobListener("first", &calls),
			testutil.NewRecordingJobListener("second", &calls),
		),
	)

	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, model.ExitCodeCompleted, je.GetExitStatus().ExitCode)
	assert.Equal(t, []string{"a", "b"}, stepNames(je))
	assert.NotNil(t, je.StartTime)
	assert.NotNil(t, je.EndTime)
	assert.Equal(t, []string{"first.before", "second.before", "second.after", "first.after"}, calls)

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusCompleted, stored.GetStatus())
	require.Len(t, stored.StepExecutions(), 2)
	for _, se := range stored.StepExecutions() {
		assert.Equal(t, model.BatchStatusCompleted, se.Status)
	}
}

func TestFlowJob_FailedStepFailsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	a.fail.Store(true)

	j := job.NewFlowJob("failingJob", sequence(t, "failingJob", flow.NewStepState(a)), repo)
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())
	assert.Equal(t, model.ExitCodeFailed, je.GetExitStatus().ExitCode)
	require.Len(t, je.StepExecutions(), 1)
	assert.Equal(t, model.BatchStatusFailed, je.StepExecutions()[0].Status)
	require.NotEmpty(t, je.AllFailureExceptions())
	assert.Contains(t, je.AllFailureExceptions()[0].Error(), "a failed")
}

func TestFlowJob_PanickingBeforeJobListenerFailsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	bad := testutil.NewRecordingJobListener("bad", nil)
	bad.PanicBefore = true

	j := job.NewFlowJob("guardedJob", sequence(t, "guardedJob", flow.NewStepState(a)), repo, job.WithJobListeners(bad))
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())
	assert.Equal(t, model.ExitCodeFailed, je.GetExitStatus().ExitCode)
	assert.Equal(t, int32(0), a.calls.Load())
	require.NotEmpty(t, je.AllFailureExceptions())
	assert.Contains(t, je.AllFailureExceptions()[0].Error(), "bad before")
}

func TestFlowJob_CustomExitCodeDrivesTransition(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	marker := testutil.NewRecordingStepListener("marker", nil)
	marker.Status = model.NewExitStatus("SLOW_PATH")
	a := newCountingStep("a", repo, step.WithListeners(marker))
	slow := newCountingStep("slow", repo)
	fast := newCountingStep("fast", repo)

	first := flow.NewStepState(a)
	slowState := flow.NewStepState(slow)
	fastState := flow.NewStepState(fast)
	f, err := flow.NewSimpleFlow("routedJob", []flow.StateTransition{
		flow.MustStateTransition(first, "SLOW_PATH", "slow"),
		flow.MustStateTransition(first, "COMPLETED", "fast"),
		flow.MustStateTransition(slowState, "*", ""),
		flow.MustStateTransition(fastState, "*", ""),
	})
	require.NoError(t, err)

	je := launch(t, repo, job.NewFlowJob("routedJob", f, repo), "1")

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, []string{"a", "slow"}, stepNames(je))
	assert.Equal(t, int32(0), fast.calls.Load())
	assert.Equal(t, model.BatchStatusCompleted, je.StepExecutions()[0].Status)
	assert.Equal(t, "SLOW_PATH", je.StepExecutions()[0].ExitStatus.ExitCode)
}

func TestFlowJob_WildcardTransitionAbandonsFailedStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	a.fail.Store(true)
	b := newCountingStep("b", repo)

	j := job.NewFlowJob("lenientJob", sequence(t, "lenientJob", flow.NewStepState(a), flow.NewStepState(b)), repo)
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, int32(1), b.calls.Load())

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	assert.Equal(t, model.BatchStatusAbandoned, stored.StepExecutions()[0].Status)
}

func TestFlowJob_RestartSkipsCompletedSteps(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	b := newCountingStep("b", repo)
	b.fail.Store(true)

	bState := flow.NewStepState(b)
	f, err := flow.NewSimpleFlow("restartJob", []flow.StateTransition{
		flow.MustStateTransition(flow.NewStepState(a), "*", "b"),
		flow.MustStateTransition(bState, "FAILED", "fail"),
		flow.MustStateTransition(bState, "*", ""),
		flow.MustStateTransition(flow.NewEndState("fail", model.FlowExecutionStatusFailed), "*", ""),
	})
	require.NoError(t, err)
	j := job.NewFlowJob("restartJob", f, repo)

	first := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusFailed, first.GetStatus())

	b.fail.Store(false)
	second := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, second.GetStatus())
	assert.Equal(t, first.JobInstance.ID, second.JobInstance.ID)
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(2), b.calls.Load())
	assert.Equal(t, []string{"b"}, stepNames(second))

	restarted, ok := second.StepExecutions()[0].ExecutionContext.GetBool(model.RestartKey)
	assert.True(t, ok)
	assert.True(t, restarted)
}

func TestFlowJob_AllowStartIfComplete(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo, step.WithAllowStartIfComplete(true))
	b := newCountingStep("b", repo)
	b.fail.Store(true)

	j := job.NewFlowJob("rerunJob", sequence(t, "rerunJob", flow.NewStepState(a), flow.NewStepState(b)), repo)
	launch(t, repo, j, "1")
	b.fail.Store(false)
	second := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, second.GetStatus())
	assert.Equal(t, int32(2), a.calls.Load())
	assert.Equal(t, []string{"a", "b"}, stepNames(second))
}

func TestFlowJob_StartLimitExceeded(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo, step.WithStartLimit(1))
	a.fail.Store(true)

	j := job.NewFlowJob("limitedJob", sequence(t, "limitedJob", flow.NewStepState(a)), repo)
	launch(t, repo, j, "1")
	second := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusFailed, second.GetStatus())
	assert.Equal(t, int32(1), a.calls.Load())
	found := false
	for _, err := range second.FailureExceptions() {
		if errors.Is(err, exception.ErrStartLimitExceeded) {
			found = true
		}
	}
	assert.True(t, found, "start limit failure recorded: %v", second.FailureExceptions())
}

func TestFlowJob_StopAndRestart(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	b := newCountingStep("b", repo)
	stop := flow.NewEndState("stop", model.FlowExecutionStatusStopped)

	f, err := flow.NewSimpleFlow("stoppingJob", []flow.StateTransition{
		flow.MustStateTransition(flow.NewStepState(a), "*", "stop"),
		flow.MustStateTransition(stop, "*", "b"),
		flow.MustStateTransition(flow.NewStepState(b), "*", ""),
	})
	require.NoError(t, err)
	j := job.NewFlowJob("stoppingJob", f, repo)

	first := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusStopped, first.GetStatus())
	assert.Equal(t, model.ExitCodeStopped, first.GetExitStatus().ExitCode)
	assert.Equal(t, int32(0), b.calls.Load())

	second := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusCompleted, second.GetStatus())
	assert.Equal(t, int32(1), a.calls.Load())
	assert.Equal(t, int32(1), b.calls.Load())
	assert.Equal(t, []string{"b"}, stepNames(second))
}

func TestFlowJob_StoppedBeforeStart(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	j := job.NewFlowJob("noopJob", sequence(t, "noopJob", flow.NewStepState(a)), repo)

	ctx := context.Background()
	je, err := repo.CreateJobExecution(ctx, j.Name(), jobParams("1"))
	require.NoError(t, err)
	je.Stop()
	require.NoError(t, j.Execute(ctx, je))

	assert.Equal(t, model.BatchStatusStopped, je.GetStatus())
	assert.Equal(t, model.ExitCodeNoop, je.GetExitStatus().ExitCode)
	assert.Equal(t, int32(0), a.calls.Load())
}

func TestFlowJob_TerminateOnlyStopsJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := step.NewTaskletStep("a", taskletFunc(func(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
		se.JobExecution.Stop()
		return port.RepeatStatusContinuable, nil
	}), repo)
	b := newCountingStep("b", repo)

	j := job.NewFlowJob("stopRequestJob", sequence(t, "stopRequestJob", flow.NewStepState(a), flow.NewStepState(b)), repo)
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusStopped, je.GetStatus())
	assert.Equal(t, model.ExitCodeStopped, je.GetExitStatus().ExitCode)
	assert.Equal(t, int32(0), b.calls.Load())
	assert.Equal(t, model.BatchStatusStopped, je.StepExecutions()[0].Status)
}

func TestFlowJob_Split(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	b := newCountingStep("b", repo)
	c := newCountingStep("c", repo)

	split := flow.NewSplitState("split", []flow.Flow{
		sequence(t, "left", flow.NewStepState(a)),
		sequence(t, "right", flow.NewStepState(b)),
	}, task.NewAsyncTaskExecutor(0))

	f, err := flow.NewSimpleFlow("splitJob", []flow.StateTransition{
		flow.MustStateTransition(split, "COMPLETED", "c"),
		flow.MustStateTransition(split, "*", "end"),
		flow.MustStateTransition(flow.NewStepState(c), "*", ""),
		flow.MustStateTransition(flow.NewEndState("end", model.FlowExecutionStatusFailed), "*", ""),
	})
	require.NoError(t, err)
	j := job.NewFlowJob("splitJob", f, repo)

	je := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.ElementsMatch(t, []string{"a", "b", "c"}, stepNames(je))
	assert.Equal(t, "c", stepNames(je)[2])

	b.fail.Store(true)
	failed := launch(t, repo, j, "2")
	assert.Equal(t, model.BatchStatusFailed, failed.GetStatus())
	assert.Equal(t, int32(1), c.calls.Load())
}

func TestFlowJob_SplitAfterFailedStepAbandonsItOnce(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	a.fail.Store(true)

	var branches []flow.Flow
	var steps []*countingStep
	for _, name := range []string{"b1", "b2", "b3", "b4"} {
		s := newCountingStep(name, repo)
		steps = append(steps, s)
		branches = append(branches, sequence(t, name+"Flow", flow.NewStepState(s)))
	}
	split := flow.NewSplitState("split", branches, task.NewAsyncTaskExecutor(0))

	j := job.NewFlowJob("fanOutJob", sequence(t, "fanOutJob", flow.NewStepState(a), split), repo)
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	for _, s := range steps {
		assert.Equal(t, int32(1), s.calls.Load(), s.Name())
	}
	assert.ElementsMatch(t, []string{"a", "b1", "b2", "b3", "b4"}, stepNames(je))

	stored, err := repo.FindJobExecutionByID(context.Background(), je.ID)
	require.NoError(t, err)
	for _, se := range stored.StepExecutions() {
		if se.StepName == "a" {
			assert.Equal(t, model.BatchStatusAbandoned, se.Status)
		} else {
			assert.Equal(t, model.BatchStatusCompleted, se.Status, se.StepName)
		}
	}
}

func TestFlowJob_FinalUpdateFailureIsReturned(t *testing.T) {
	repo := new(testutil.MockJobRepository)
	repo.On("UpdateJobExecution", mock.Anything, mock.Anything).Return(errors.New("disk full"))

	f := sequence(t, "brokenJob", flow.NewStepState(testutil.NewScriptedStep("a", "COMPLETED")))
	j := job.NewFlowJob("brokenJob", f, repo)

	je := testutil.NewTestJobExecution("brokenJob")
	err := j.Execute(context.Background(), je)
	require.Error(t, err)
	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())
}

func TestFlowJob_StepLocator(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	a := newCountingStep("a", repo)
	inner := newCountingStep("inner", repo)
	fs := job.NewFlowStep("nested", sequence(t, "nestedFlow", flow.NewStepState(inner)), repo)

	j := job.NewFlowJob("locatorJob", sequence(t, "locatorJob", flow.NewStepState(a), flow.NewStepState(fs)), repo)

	assert.ElementsMatch(t, []string{"a", "nested", "inner"}, j.StepNames())
	found, err := j.GetStep("inner")
	require.NoError(t, err)
	assert.Equal(t, "inner", found.Name())
	_, err = j.GetStep("missing")
	assert.ErrorIs(t, err, port.ErrStepNotFound)
	assert.True(t, j.IsRestartable())
}
