package support_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"
	"go.uber.org/fx/fxtest"

	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	repository "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/repository"
	metrics "github.com/tigerroll/surfin-flow/pkg/batch/core/metrics"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
	"github.com/tigerroll/surfin-flow/pkg/batch/infrastructure/repository/inmemory"
	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

const greetingJob = `
id: greeting
name: greetingJob
flow:
  start-element: greet
  elements:
    greet:
      step:
        tasklet:
          ref: greeter
          properties:
            word: hello
      next: route
    route:
      decision:
        decider:
          ref: router
      transitions:
        - on: "*"
          end: true
`

type recordingTasklet struct {
	word  string
	words *[]string
}

func (t *recordingTasklet) Execute(ctx context.Context, se *model.StepExecution) (port.RepeatStatus, error) {
	*t.words = append(*t.words, t.word)
	return port.RepeatStatusFinished, nil
}

type completingDecider struct{}

func (completingDecider) Decide(ctx context.Context, je *model.JobExecution, se *model.StepExecution) (model.FlowExecutionStatus, error) {
	return model.FlowExecutionStatusCompleted, nil
}

func newFactory(repo repository.JobRepository) *support.JobFactory {
	return support.NewJobFactory(support.JobFactoryParams{
		Repo:         repo,
		Cfg:          config.NewConfig(),
		TaskExecutor: task.NewSyncTaskExecutor(),
		Tracer:       metrics.NewNoOpTracer(),
	})
}

func registerComponents(jf *support.JobFactory, words *[]string, calls *[]string) {
	jf.RegisterTaskletBuilder("greeter", func(cfg *config.Config, properties map[string]interface{}) (port.Tasklet, error) {
		return &recordingTasklet{word: properties["word"].(string), words: words}, nil
	})
	jf.RegisterDeciderBuilder("router", func(cfg *config.Config, properties map[string]interface{}) (port.Decider, error) {
		return completingDecider{}, nil
	})
	jf.RegisterJobListenerBuilder("jobRecorder", func(cfg *config.Config, properties map[string]interface{}) (port.JobExecutionListener, error) {
		return testutil.NewRecordingJobListener("job", calls), nil
	})
	jf.RegisterStepExecutionListenerBuilder("stepRecorder", func(cfg *config.Config, properties map[string]interface{}) (port.StepExecutionListener, error) {
		return testutil.NewRecordingStepListener("step", calls), nil
	})
}

func TestJobFactory_CreateJob(t *testing.T) {
	repo := inmemory.NewInMemoryJobRepository()
	jf := newFactory(repo)
	var words, calls []string
	registerComponents(jf, &words, &calls)
	jf.AddDefaultJobListener("jobRecorder", nil)
	jf.AddDefaultStepListener("stepRecorder", nil)

	var observed []string
	for _, tag := range []string{"first", "second"} {
		tag := tag
		jf.AddTransitionObserver(func(ctx context.Context, flowName, from string, status model.FlowExecutionStatus, to string) {
			observed = append(observed, tag+":"+from+"->"+to)
		})
	}

	def, err := jf.LoadJobDefinition([]byte(greetingJob))
	require.NoError(t, err)
	assert.Equal(t, "greetingJob", def.Name)
	assert.Equal(t, []string{"greeting"}, jf.JobIDs())

	j, err := jf.CreateJob("greeting")
	require.NoError(t, err)
	assert.Equal(t, "greetingJob", j.Name())

	ctx := context.Background()
	je, err := repo.CreateJobExecution(ctx, j.Name(), model.NewJobParameters())
	require.NoError(t, err)
	require.NoError(t, j.Execute(ctx, je))

	assert.Equal(t, model.BatchStatusCompleted, je.GetStatus())
	assert.Equal(t, []string{"hello"}, words)
	assert.Equal(t, []string{"job.before", "step.before", "step.after", "job.after"}, calls)
	assert.Equal(t, []string{
		"first:greet->route", "second:greet->route",
		"first:route->route.end0", "second:route->route.end0",
		"first:route.end0->", "second:route.end0->",
	}, observed)
}

func TestJobFactory_CreateJobBuildsFreshComponents(t *testing.T) {
	jf := newFactory(inmemory.NewInMemoryJobRepository())
	var words, calls []string
	registerComponents(jf, &words, &calls)
	_, err := jf.LoadJobDefinition([]byte(greetingJob))
	require.NoError(t, err)

	first, err := jf.CreateJob("greeting")
	require.NoError(t, err)
	second, err := jf.CreateJob("greeting")
	require.NoError(t, err)

	firstLocator, ok := first.(port.StepLocator)
	require.True(t, ok)
	secondLocator, ok := second.(port.StepLocator)
	require.True(t, ok)
	s1, err := firstLocator.GetStep("greet")
	require.NoError(t, err)
	s2, err := secondLocator.GetStep("greet")
	require.NoError(t, err)
	assert.NotSame(t, s1, s2)
}

func TestJobFactory_Errors(t *testing.T) {
	jf := newFactory(inmemory.NewInMemoryJobRepository())

	_, err := jf.CreateJob("absent")
	assert.ErrorIs(t, err, exception.ErrNoSuchJob)

	_, err = jf.LoadJobDefinition([]byte(greetingJob))
	require.NoError(t, err)

	_, err = jf.LoadJobDefinition([]byte(greetingJob))
	assert.ErrorIs(t, err, jsl.ErrInvalidDefinition)

	_, err = jf.CreateJob("greeting")
	assert.ErrorIs(t, err, jsl.ErrUnknownComponent)

	jf.AddDefaultJobListener("unregistered", nil)
	var words, calls []string
	registerComponents(jf, &words, &calls)
	_, err = jf.CreateJob("greeting")
	assert.ErrorIs(t, err, jsl.ErrUnknownComponent)
	assert.Contains(t, err.Error(), "unregistered")
}

func TestModule_LoadsContributedDefinitions(t *testing.T) {
	var jf *support.JobFactory
	app := fxtest.New(t,
		fx.Provide(
			config.NewConfig,
			func() repository.JobRepository { return inmemory.NewInMemoryJobRepository() },
			func() task.TaskExecutor { return task.NewSyncTaskExecutor() },
			func() metrics.Tracer { return metrics.NewNoOpTracer() },
			fx.Annotate(func() jsl.JSLDefinitionBytes { return jsl.JSLDefinitionBytes(greetingJob) }, fx.ResultTags(`group:"jobDefinitions"`)),
		),
		support.Module,
		fx.Populate(&jf),
	)
	app.RequireStart()
	defer app.RequireStop()

	assert.Equal(t, []string{"greeting"}, jf.JobIDs())
}
