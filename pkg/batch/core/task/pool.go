package task

import (
	"context"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/tigerroll/surfin-flow/pkg/batch/support/util/exception"
	logger "github.com/tigerroll/surfin-flow/pkg/batch/support/util/logger"
)

// PooledTaskExecutor runs tasks on a fixed set of worker goroutines fed by a bounded queue.
// A task is rejected when the queue is full or the executor has been shut down.
// With a queue capacity of zero a task is only accepted if a worker is idle.
type PooledTaskExecutor struct {
	queue  chan Task
	group  errgroup.Group
	mu     sync.RWMutex
	closed bool
}

// NewPooledTaskExecutor starts poolSize workers. A poolSize <= 0 uses runtime.NumCPU().
func NewPooledTaskExecutor(poolSize, queueCapacity int) *PooledTaskExecutor {
	if poolSize <= 0 {
		poolSize = runtime.NumCPU()
	}
	if queueCapacity < 0 {
		queueCapacity = 0
	}
	e := &PooledTaskExecutor{queue: make(chan Task, queueCapacity)}
	for i := 0; i < poolSize; i++ {
		e.group.Go(e.work)
	}
	logger.Debugf("PooledTaskExecutor: %d workers started (queue capacity: %d).", poolSize, queueCapacity)
	return e
}

func (e *PooledTaskExecutor) work() error {
	for t := range e.queue {
		e.run(t)
	}
	return nil
}

func (e *PooledTaskExecutor) run(t Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Errorf("PooledTaskExecutor: task panicked: %v", exception.FromPanic("task", r))
		}
	}()
	t()
}

// Execute hands task to a worker without blocking.
func (e *PooledTaskExecutor) Execute(task Task) error {
	if task == nil {
		return rejected("nil task")
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return rejected("executor has been shut down")
	}
	select {
	case e.queue <- task:
		return nil
	default:
		return rejected("no idle worker and the queue is full")
	}
}

// RunPending takes one queued task and runs it in the calling goroutine.
func (e *PooledTaskExecutor) RunPending() bool {
	select {
	case t, ok := <-e.queue:
		if !ok {
			return false
		}
		e.run(t)
		return true
	default:
		return false
	}
}

// Shutdown stops accepting tasks and waits until queued and running tasks have finished or ctx is done.
func (e *PooledTaskExecutor) Shutdown(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.queue)
	}
	e.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- e.group.Wait() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

var (
	_ TaskExecutor  = (*PooledTaskExecutor)(nil)
	_ PendingRunner = (*PooledTaskExecutor)(nil)
)
