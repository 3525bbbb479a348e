package listener_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tigerroll/surfin-flow/pkg/batch/listener"
	testutil "github.com/tigerroll/surfin-flow/pkg/batch/test"
)

func TestJobCompletionSignaler(t *testing.T) {
	s := listener.NewJobCompletionSignaler()
	first := testutil.NewTestJobExecution("signaledJob")
	second := testutil.NewTestJobExecution("signaledJob")

	s.BeforeJob(context.Background(), first)
	select {
	case <-s.Done():
		t.Fatal("done before the job finished")
	default:
	}
	assert.Nil(t, s.Execution())

	go s.AfterJob(context.Background(), first)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	je, err := s.Wait(ctx)
	require.NoError(t, err)
	assert.Same(t, first, je)

	s.AfterJob(context.Background(), second)
	assert.Same(t, first, s.Execution())
}

func TestJobCompletionSignaler_WaitCanceled(t *testing.T) {
	s := listener.NewJobCompletionSignaler()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Wait(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
