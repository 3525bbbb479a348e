package main

import (
	"context"

	"go.uber.org/fx"

	"github.com/tigerroll/surfin-flow/example/hello-flow/internal/step"
	"github.com/tigerroll/surfin-flow/pkg/batch"
	port "github.com/tigerroll/surfin-flow/pkg/batch/core/application/port"
	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	jsl "github.com/tigerroll/surfin-flow/pkg/batch/core/config/jsl"
	support "github.com/tigerroll/surfin-flow/pkg/batch/core/config/support"
	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/job/runner"
	"github.com/tigerroll/surfin-flow/pkg/batch/core/support/incrementer"
	batchlistener "github.com/tigerroll/surfin-flow/pkg/batch/listener"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// GetApplicationOptions builds the fx options of the example application.
func GetApplicationOptions(appCtx context.Context, envFilePath string, embeddedConfig, embeddedJSL []byte, params map[string]string, next bool) []fx.Option {
	return []fx.Option{
		fx.Supply(
			config.EmbeddedConfig(embeddedConfig),
			fx.Annotate(envFilePath, fx.ResultTags(`name:"envFilePath"`)),
			fx.Annotate(appCtx, fx.As(new(context.Context)), fx.ResultTags(`name:"appCtx"`)),
		),
		fx.Provide(fx.Annotate(
			func() jsl.JSLDefinitionBytes { return jsl.JSLDefinitionBytes(embeddedJSL) },
			fx.ResultTags(`group:"jobDefinitions"`),
		)),
		batch.Module,
		step.Module,
		fx.Provide(batchlistener.NewJobCompletionSignaler),
		fx.Invoke(registerSignaler),
		fx.Invoke(fx.Annotate(
			func(lc fx.Lifecycle, s fx.Shutdowner, jf *support.JobFactory, r runner.JobRunner, sig *batchlistener.JobCompletionSignaler, cfg *config.Config, ctx context.Context) {
				startJobExecution(lc, s, jf, r, sig, cfg, ctx, toJobParameters(params), next)
			},
			fx.ParamTags("", "", "", "", "", "", `name:"appCtx"`),
		)),
	}
}

// registerSignaler makes the signaler available to JSL as "jobCompletionSignaler".
func registerSignaler(jf *support.JobFactory, signaler *batchlistener.JobCompletionSignaler) {
	jf.RegisterJobListenerBuilder("jobCompletionSignaler", func(*config.Config, map[string]interface{}) (port.JobExecutionListener, error) {
		return signaler, nil
	})
}

func toJobParameters(params map[string]string) model.JobParameters {
	jp := model.NewJobParameters()
	for k, v := range params {
		jp.Put(k, v)
	}
	return jp
}

// startJobExecution runs the configured job when the application starts and shuts the
// application down once the job has finished.
func startJobExecution(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	jf *support.JobFactory,
	jobRunner runner.JobRunner,
	signaler *batchlistener.JobCompletionSignaler,
	cfg *config.Config,
	appCtx context.Context,
	params model.JobParameters,
	next bool,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			jobName := cfg.Surfin.Batch.JobName
			job, err := jf.CreateJob(jobName)
			if err != nil {
				return err
			}

			go func() {
				var err error
				if next {
					_, err = jobRunner.RunNext(appCtx, job, params, incrementer.NewRunIDIncrementer(""))
				} else {
					_, err = jobRunner.Run(appCtx, job, params)
				}
				if err != nil {
					logger.Errorf("Failed to run job '%s': %v", jobName, err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()

			go func() {
				execution, err := signaler.Wait(appCtx)
				if err != nil {
					logger.Warnf("Application context cancelled while job '%s' was running.", jobName)
					// The runner records the interruption; wait for it before shutting down.
					execution, _ = signaler.Wait(context.Background())
				}
				exitCode := 0
				if execution != nil {
					logger.Infof("Job '%s' (Execution ID: %s) finished with status: %s, ExitStatus: %s",
						jobName, execution.ID, execution.GetStatus(), execution.GetExitStatus())
					if execution.GetStatus().IsUnsuccessful() {
						exitCode = 1
					}
				}
				if err := shutdowner.Shutdown(fx.ExitCode(exitCode)); err != nil {
					logger.Errorf("Failed to shutdown application: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Infof("Application is shutting down.")
			return nil
		},
	})
}
