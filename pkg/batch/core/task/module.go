package task

import (
	"context"
	"fmt"

	"go.uber.org/fx"

	config "github.com/tigerroll/surfin-flow/pkg/batch/core/config"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// NewTaskExecutor builds the TaskExecutor selected by batch.split.task_executor.
//
// Parameters:
//
//	cfg: The split configuration.
//
// Returns:
//
//	TaskExecutor: The configured executor.
//	error: An error if the executor kind is unknown.
func NewTaskExecutor(cfg config.SplitConfig) (TaskExecutor, error) {
	switch cfg.TaskExecutor {
	case config.TaskExecutorSync:
		return NewSyncTaskExecutor(), nil
	case config.TaskExecutorAsync, "":
		return NewAsyncTaskExecutor(cfg.ConcurrencyLimit), nil
	case config.TaskExecutorPool:
		return NewPooledTaskExecutor(cfg.PoolSize, cfg.QueueCapacity), nil
	default:
		return nil, fmt.Errorf("unknown task executor '%s'", cfg.TaskExecutor)
	}
}

// NewTaskExecutorProvider provides the split TaskExecutor and stops a pooled executor with the application.
func NewTaskExecutorProvider(lc fx.Lifecycle, cfg *config.Config) (TaskExecutor, error) {
	executor, err := NewTaskExecutor(cfg.Surfin.Batch.Split)
	if err != nil {
		return nil, err
	}
	logger.Debugf("TaskExecutor '%s' selected for split states.", cfg.Surfin.Batch.Split.TaskExecutor)
	if pool, ok := executor.(*PooledTaskExecutor); ok {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return pool.Shutdown(ctx)
			},
		})
	}
	return executor, nil
}

// Module provides the TaskExecutor used by split states.
var Module = fx.Options(
	fx.Provide(NewTaskExecutorProvider),
)
