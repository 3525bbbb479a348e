package job_test

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/flow"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/step"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
)

type taskletFunc func(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error)

func (f taskletFunc) Execute(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	return f(ctx, se)
}

// countingStep wraps a TaskletStep whose tasklet fails while fail is set.
type countingStep struct {
	*step.TaskletStep
	calls atomic.Int32
	fail  atomic.Bool
}

func newCountingStep(name string, repo *inmemory.InMemoryJobRepository, opts ...step.Option) *countingStep {
	s := &countingStep{}
	s.TaskletStep = step.NewTaskletStep(name, taskletFunc(func(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
		s.calls.Add(1)
		if s.fail.Load() {
			return port.RepeatStatusFinished, assertError(name)
		}
		return port.RepeatStatusFinished, nil
	}), repo, opts...)
	return s
}

type stepFailure string

func (e stepFailure) Error() string { return string(e) + " failed" }

func assertError(name string) error { return stepFailure(name) }

// sequence builds a flow that runs states one after another and ends after the last one.
func sequence(t *testing.T, name string, states ...flow.State) *flow.SimpleFlow {
	t.Helper()
	var transitions []flow.StateTransition
	for i, s := range states {
		next := ""
		if i < len(states)-1 {
			next = states[i+1].Name()
		}
		transitions = append(transitions, flow.MustStateTransition(s, "*", next))
	}
	f, err := flow.NewSimpleFlow(name, transitions)
	require.NoError(t, err)
	return f
}

func jobParams(run string) model.JobParameters {
	p := model.NewJobParameters()
	p.Put("run", run)
	return p
}

func launch(t *testing.T, repo *inmemory.InMemoryJobRepository, j port.Job, run string) *model.JobExecution {
	t.Helper()
	ctx := context.Background()
	je, err := repo.CreateJobExecution(ctx, j.Name(), jobParams(run))
	require.NoError(t, err)
	require.NoError(t, j.Execute(ctx, je))
	return je
}

func stepNames(je *model.JobExecution) []string {
	var names []string
	for _, se := range je.StepExecutions() {
		names = append(names, se.StepName)
	}
	return names
}
