package job_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/job"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
)

func TestFlowStep_RunsNestedFlow(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	inner1 := newCountingStep("inner1", repo)
	inner2 := newCountingStep("inner2", repo)
	outer := newCountingStep("outer", repo)
	fs := job.NewFlowStep("nested", sequence(t, "nestedFlow", flow.NewStepState(inner1), flow.NewStepState(inner2)), repo)

	j := job.NewFlowJob("flowStepJob", sequence(t, "flowStepJob", flow.NewStepState(fs), flow.NewStepState(outer)), repo)
	je := launch(t, repo, j, "1")

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, []string{"nested", "inner1", "inner2", "outer"}, stepNames(je))
	nested := je.StepExecutions()[0]
	assert.Equal(t, model.BatchStatusCompleted, nested.Status)
	assert.Equal(t, model.ExitCodeCompleted, nested.ExitStatus.ExitCode)
}

func TestFlowStep_FailedInnerStepFailsFlowStep(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	inner := newCountingStep("inner", repo)
	inner.fail.Store(true)
	fs := job.NewFlowStep("nested", sequence(t, "nestedFlow", flow.NewStepState(inner)), repo)

	j := job.NewFlowJob("flowStepJob", sequence(t, "flowStepJob", flow.NewStepState(fs)), repo)
	je := launch(t, repo, j, "1")

	nested := je.StepExecutions()[0]
	assert.Equal(t, "nested", nested.StepName)
	assert.Equal(t, model.BatchStatusFailed, nested.Status)
	assert.Equal(t, model.ExitCodeFailed, nested.ExitStatus.ExitCode)
	assert.Equal(t, model.BatchStatusFailed, je.GetStatus())
}

func TestFlowStep_RestartSkipsCompletedInnerSteps(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	inner1 := newCountingStep("inner1", repo)
	inner2 := newCountingStep("inner2", repo)
	inner2.fail.Store(true)
	fs := job.NewFlowStep("nested", sequence(t, "nestedFlow", flow.NewStepState(inner1), flow.NewStepState(inner2)), repo)
	j := job.NewFlowJob("flowStepJob", sequence(t, "flowStepJob", flow.NewStepState(fs)), repo)

	first := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusFailed, first.GetStatus())

	inner2.fail.Store(false)
	second := launch(t, repo, j, "1")
	assert.Equal(t, model.BatchStatusCompleted, second.GetStatus())
	assert.Equal(t, int32(1), inner1.calls.Load())
	assert.Equal(t, int32(2), inner2.calls.Load())
	assert.Equal(t, []string{"nested", "inner2"}, stepNames(second))
}
