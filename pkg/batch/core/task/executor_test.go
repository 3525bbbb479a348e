package task_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/core/task"
)

func TestSyncTaskExecutor_RunsInline(t *testing.T) {
	ran := false
	require.NoError(t, task.NewSyncTaskExecutor().Execute(func() { ran = true }))
	assert.True(t, ran)
	assert.ErrorIs(t, task.NewSyncTaskExecutor().Execute(nil), task.ErrTaskRejected)
}

func TestAsyncTaskExecutor_Unlimited(t *testing.T) {
	e := task.NewAsyncTaskExecutor(0)
	var wg sync.WaitGroup
	var count int32
	for i := 0; i < 10; i++ {
		wg.Add(1)
		require.NoError(t, e.Execute(func() {
			defer wg.Done()
			atomic.AddInt32(&count, 1)
		}))
	}
	wg.Wait()
	assert.Equal(t, int32(10), count)
}

func TestAsyncTaskExecutor_RejectsOverLimit(t *testing.T) {
	e := task.NewAsyncTaskExecutor(1)
	release := make(chan struct{})
	done := make(chan struct{})
	require.NoError(t, e.Execute(func() {
		<-release
		close(done)
	}))

	err := e.Execute(func() {})
	assert.ErrorIs(t, err, task.ErrTaskRejected)

	close(release)
	<-done
	assert.Eventually(t, func() bool {
		return e.Execute(func() {}) == nil
	}, time.Second, 5*time.Millisecond)
}

func TestPooledTaskExecutor_RunsAndDrains(t *testing.T) {
	e := task.NewPooledTaskExecutor(2, 8)
	var count int32
	for i := 0; i < 8; i++ {
		require.NoError(t, e.Execute(func() { atomic.AddInt32(&count, 1) }))
	}
	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, int32(8), atomic.LoadInt32(&count))

	assert.ErrorIs(t, e.Execute(func() {}), task.ErrTaskRejected)
}

func TestPooledTaskExecutor_RejectsWhenQueueFull(t *testing.T) {
	e := task.NewPooledTaskExecutor(1, 1)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Execute(func() {
		close(started)
		<-release
	}))
	<-started

	require.NoError(t, e.Execute(func() {}))
	assert.ErrorIs(t, e.Execute(func() {}), task.ErrTaskRejected)

	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
}

func TestPooledTaskExecutor_RunPendingInCaller(t *testing.T) {
	e := task.NewPooledTaskExecutor(1, 2)
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, e.Execute(func() {
		close(started)
		<-release
	}))
	<-started

	var ran int32
	require.NoError(t, e.Execute(func() { atomic.StoreInt32(&ran, 1) }))
	assert.True(t, e.RunPending())
	assert.Equal(t, int32(1), atomic.LoadInt32(&ran))
	assert.False(t, e.RunPending())

	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
	assert.False(t, e.RunPending())
}

func TestPooledTaskExecutor_SurvivesPanics(t *testing.T) {
	e := task.NewPooledTaskExecutor(1, 2)
	var ran int32
	require.NoError(t, e.Execute(func() { panic("boom") }))
	require.NoError(t, e.Execute(func() { atomic.StoreInt32(&ran, 1) }))
	require.NoError(t, e.Shutdown(context.Background()))
	assert.Equal(t, int32(1), ran)
}

func TestPooledTaskExecutor_ShutdownHonoursContext(t *testing.T) {
	e := task.NewPooledTaskExecutor(1, 0)
	release := make(chan struct{})
	started := make(chan struct{})
	require.Eventually(t, func() bool {
		return e.Execute(func() {
			close(started)
			<-release
		}) == nil
	}, time.Second, time.Millisecond)
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, e.Shutdown(ctx), context.DeadlineExceeded)
	close(release)
	require.NoError(t, e.Shutdown(context.Background()))
}
