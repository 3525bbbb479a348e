package task

import (
	"fmt"

	"golang.org/x/sync/semaphore"
)

// AsyncTaskExecutor starts a goroutine per task. With a positive concurrency limit, a task
// submitted while the limit is exhausted is rejected rather than queued.
type AsyncTaskExecutor struct {
	limit int64
	sem   *semaphore.Weighted
}

// NewAsyncTaskExecutor creates an AsyncTaskExecutor. A concurrencyLimit <= 0 means unlimited.
func NewAsyncTaskExecutor(concurrencyLimit int) *AsyncTaskExecutor {
	e := &AsyncTaskExecutor{limit: int64(concurrencyLimit)}
	if concurrencyLimit > 0 {
		e.sem = semaphore.NewWeighted(int64(concurrencyLimit))
	}
	return e
}

// Execute starts task in a new goroutine.
func (e *AsyncTaskExecutor) Execute(task Task) error {
	if task == nil {
		return rejected("nil task")
	}
	if e.sem == nil {
		go task()
		return nil
	}
	if !e.sem.TryAcquire(1) {
		return rejected(fmt.Sprintf("concurrency limit of %d reached", e.limit))
	}
	go func() {
		defer e.sem.Release(1)
		task()
	}()
	return nil
}

var _ TaskExecutor = (*AsyncTaskExecutor)(nil)
