package generic_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/component/tasklet/generic"
	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/expression"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

func TestExecutionContextWriterTasklet_ConvertsTypedKeys(t *testing.T) {
	tasklet, err := generic.NewExecutionContextWriterTasklet("writer", map[string]interface{}{
		"count.int":     "42",
		"ratio.float":   "0.5",
		"enabled.bool":  "true",
		"label.string":  7,
		"plain":         []int{1, 2},
		"reader.offset": 10,
	}, nil)
	require.NoError(t, err)

	se := testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "write")
	status, err := tasklet.Execute(context.Background(), se)
	require.NoError(t, err)
	assert.Equal(t, port.RepeatStatusFinished, status)

	ec := se.ExecutionContext
	count, ok := ec.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 42, count)
	ratio, _ := ec.GetFloat64("ratio")
	assert.Equal(t, 0.5, ratio)
	enabled, _ := ec.GetBool("enabled")
	assert.True(t, enabled)
	label, _ := ec.GetString("label")
	assert.Equal(t, "7", label)
	plain, _ := ec.Get("plain")
	assert.Equal(t, []int{1, 2}, plain)
	offset, ok := ec.GetInt("reader.offset")
	assert.True(t, ok)
	assert.Equal(t, 10, offset)
}

func TestExecutionContextWriterTasklet_JobScope(t *testing.T) {
	tasklet, err := generic.NewExecutionContextWriterTasklet("writer", map[string]interface{}{
		"scope":        "job",
		"route.string": "fast",
	}, nil)
	require.NoError(t, err)

	je := testutil.NewTestJobExecution("job")
	se := testutil.NewTestStepExecution(je, "write")
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	route, ok := je.ExecutionContext.GetString("route")
	assert.True(t, ok)
	assert.Equal(t, "fast", route)
	assert.False(t, se.ExecutionContext.ContainsKey("route"))
	assert.False(t, je.ExecutionContext.ContainsKey("scope"))
}

func TestExecutionContextWriterTasklet_Errors(t *testing.T) {
	_, err := generic.NewExecutionContextWriterTasklet("writer", map[string]interface{}{"count.int": "many"}, nil)
	assert.ErrorContains(t, err, "count.int")

	_, err = generic.NewExecutionContextWriterTasklet("writer", map[string]interface{}{"scope": "global"}, nil)
	assert.ErrorContains(t, err, "global")
}

func TestFailingTasklet_FailCountSurvivesRestart(t *testing.T) {
	tasklet := generic.NewFailingTasklet("flaky", generic.FailingTaskletProperties{FailCount: 2})
	ctx := context.Background()

	first := testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "flaky")
	_, err := tasklet.Execute(ctx, first)
	assert.ErrorContains(t, err, "run 1")

	// A restarted step starts from the previous execution context.
	second := testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "flaky")
	second.ExecutionContext = first.ExecutionContext.Copy()
	_, err = tasklet.Execute(ctx, second)
	assert.ErrorContains(t, err, "run 2")

	third := testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "flaky")
	third.ExecutionContext = second.ExecutionContext.Copy()
	status, err := tasklet.Execute(ctx, third)
	require.NoError(t, err)
	assert.Equal(t, port.RepeatStatusFinished, status)
	runs, _ := third.ExecutionContext.GetInt(generic.RunCountKey)
	assert.Equal(t, 3, runs)
}

func TestFailingTasklet_Rate(t *testing.T) {
	ctx := context.Background()
	always := generic.NewFailingTasklet("always", generic.FailingTaskletProperties{FailRate: 1, Seed: 7})
	_, err := always.Execute(ctx, testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "s"))
	assert.Error(t, err)

	builder := generic.NewFailingTaskletBuilder()
	once, err := builder(config.NewConfig(), map[string]interface{}{"failCount": "1"})
	require.NoError(t, err)
	se := testutil.NewTestStepExecution(testutil.NewTestJobExecution("job"), "s")
	_, err = once.Execute(ctx, se)
	assert.Error(t, err)
	_, err = once.Execute(ctx, se)
	assert.NoError(t, err)

	_, err = builder(config.NewConfig(), map[string]interface{}{"failCount": "lots"})
	assert.Error(t, err)
}

func TestExecutionContextWriterTasklet_ResolvesPlaceholdersPerExecution(t *testing.T) {
	build := generic.NewExecutionContextWriterTaskletBuilder(expression.NewDefaultResolver())
	tasklet, err := build(config.NewConfig(), map[string]interface{}{
		"limit.int": "#{jobParameters['limit']}",
		"label":     "run-#{jobParameters['date']}",
	})
	require.NoError(t, err)

	je := testutil.NewTestJobExecution("job")
	je.Parameters.Put("limit", "25")
	je.Parameters.Put("date", "2026-10-19")
	se := testutil.NewTestStepExecution(je, "write")
	_, err = tasklet.Execute(context.Background(), se)
	require.NoError(t, err)

	limit, ok := se.ExecutionContext.GetInt("limit")
	assert.True(t, ok)
	assert.Equal(t, 25, limit)
	label, _ := se.ExecutionContext.GetString("label")
	assert.Equal(t, "run-2026-10-19", label)

	je.Parameters.Put("limit", "lots")
	_, err = tasklet.Execute(context.Background(), testutil.NewTestStepExecution(je, "write"))
	assert.ErrorContains(t, err, "limit.int")
}
