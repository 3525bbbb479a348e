package model_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	model "github.com/tigerroll/surfin-flow/pkg/batch/core/domain/model"
)

func TestBatchStatus_Max(t *testing.T) {
	assert.Equal(t, model.BatchStatusFailed, model.MaxBatchStatus(model.BatchStatusCompleted, model.BatchStatusFailed))
	assert.Equal(t, model.BatchStatusFailed, model.MaxBatchStatus(model.BatchStatusFailed, model.BatchStatusCompleted))
	assert.Equal(t, model.BatchStatusUnknown, model.MaxBatchStatus(model.BatchStatusAbandoned, model.BatchStatusUnknown))
}

func TestBatchStatus_UpgradeTo(t *testing.T) {
	tests := []struct {
		from, to, want model.BatchStatus
	}{
		{model.BatchStatusStarted, model.BatchStatusStopped, model.BatchStatusStopped},
		{model.BatchStatusStarting, model.BatchStatusCompleted, model.BatchStatusCompleted},
		{model.BatchStatusStarted, model.BatchStatusCompleted, model.BatchStatusCompleted},
		{model.BatchStatusCompleted, model.BatchStatusStarted, model.BatchStatusCompleted},
		{model.BatchStatusFailed, model.BatchStatusCompleted, model.BatchStatusFailed},
		{model.BatchStatusStopped, model.BatchStatusStarted, model.BatchStatusStopped},
		{model.BatchStatusStarting, model.BatchStatusStarted, model.BatchStatusStarted},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.from.UpgradeTo(tt.to))
		})
	}
	assert.False(t, model.BatchStatusStarted.UpgradeTo(model.BatchStatusStopped).IsRunning())
}

func TestBatchStatus_Predicates(t *testing.T) {
	assert.True(t, model.BatchStatusStopping.IsRunning())
	assert.False(t, model.BatchStatusStopped.IsRunning())
	for _, s := range []model.BatchStatus{model.BatchStatusStopped, model.BatchStatusFailed, model.BatchStatusUnknown} {
		assert.True(t, s.IsUnsuccessful(), s.String())
	}
	for _, s := range []model.BatchStatus{model.BatchStatusCompleted, model.BatchStatusStarting, model.BatchStatusStarted,
		model.BatchStatusStopping, model.BatchStatusAbandoned} {
		assert.False(t, s.IsUnsuccessful(), s.String())
	}
	assert.True(t, model.BatchStatusFailed.IsGreaterThan(model.BatchStatusStopped))
	assert.True(t, model.BatchStatusStarting.IsLessThan(model.BatchStatusStarted))
	assert.True(t, model.BatchStatusStarted.IsLessThanOrEqualTo(model.BatchStatusStarted))
}

func TestBatchStatus_TextEncoding(t *testing.T) {
	data, err := json.Marshal(map[string]model.BatchStatus{"status": model.BatchStatusAbandoned})
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"ABANDONED"}`, string(data))

	var decoded map[string]model.BatchStatus
	require.NoError(t, json.Unmarshal([]byte(`{"status":"stopped"}`), &decoded))
	assert.Equal(t, model.BatchStatusStopped, decoded["status"])

	s, err := model.ParseBatchStatus("bogus")
	assert.Error(t, err)
	assert.Equal(t, model.BatchStatusUnknown, s)
	assert.Equal(t, "BatchStatus(42)", model.BatchStatus(42).String())
}

func TestExitStatus_And(t *testing.T) {
	assert.Equal(t, model.ExitStatusCompleted, model.ExitStatusCompleted.And(model.ExitStatus{}))
	assert.Equal(t, model.ExitCodeCompleted, model.ExitStatusExecuting.And(model.ExitStatusCompleted).ExitCode)
	assert.Equal(t, model.ExitCodeFailed, model.ExitStatusCompleted.And(model.ExitStatusFailed).ExitCode)
	assert.Equal(t, model.ExitCodeFailed, model.ExitStatusFailed.And(model.ExitStatusStopped).ExitCode)
	assert.Equal(t, model.ExitCodeUnknown, model.ExitStatusFailed.And(model.ExitStatusUnknown).ExitCode)

	merged := model.NewExitStatusWithDescription(model.ExitCodeCompleted, "loaded").
		And(model.NewExitStatusWithDescription(model.ExitCodeFailed, "disk full"))
	assert.Equal(t, model.NewExitStatusWithDescription(model.ExitCodeFailed, "loaded; disk full"), merged)
}

func TestExitStatus_CustomCodesSurvive(t *testing.T) {
	custom := model.NewExitStatus("SLOW_PATH")
	assert.Equal(t, "SLOW_PATH", custom.And(model.ExitStatusFailed).ExitCode)
	assert.Equal(t, "SLOW_PATH", model.ExitStatusCompleted.And(custom).ExitCode)
	assert.Equal(t, "SLOW_PATH", model.ExitStatusUnknown.And(custom).ExitCode)
}

func TestExitStatus_Descriptions(t *testing.T) {
	s := model.ExitStatusFailed.AddExitDescription("first")
	assert.Equal(t, "first", s.ExitDescription)
	assert.Equal(t, s, s.AddExitDescription("first"))
	assert.Equal(t, s, s.AddExitDescription("  "))
	assert.Equal(t, "first; second", s.AddExitDescription("second").ExitDescription)

	replaced := s.ReplaceExitCode("CUSTOM")
	assert.Equal(t, model.NewExitStatusWithDescription("CUSTOM", "first"), replaced)
	assert.Equal(t, model.ExitCodeFailed, s.ExitCode)

	assert.Equal(t, s, s.AddExitDescriptionFromError(nil))
	assert.True(t, model.ExitStatus{}.IsZero())
	assert.True(t, model.ExitStatusExecuting.IsRunning())
	assert.False(t, model.ExitStatusCompleted.IsRunning())
}

func TestFlowExecutionStatus_Ordering(t *testing.T) {
	ordered := []model.FlowExecutionStatus{
		model.FlowExecutionStatusCompleted,
		model.FlowExecutionStatusStopped,
		model.FlowExecutionStatusFailed,
		model.FlowExecutionStatusUnknown,
	}
	for i := 1; i < len(ordered); i++ {
		assert.Negative(t, ordered[i-1].Compare(ordered[i]), "%s before %s", ordered[i-1], ordered[i])
		assert.Positive(t, ordered[i].Compare(ordered[i-1]))
	}
	assert.Zero(t, model.FlowExecutionStatusFailed.Compare(model.NewFlowExecutionStatus("FAILED")))
}

func TestFlowExecutionStatus_CustomNames(t *testing.T) {
	custom := model.NewFlowExecutionStatus("SLOW_PATH")
	assert.Negative(t, custom.Compare(model.FlowExecutionStatusFailed))
	assert.False(t, custom.IsEnd())
	assert.Equal(t, model.BatchStatusUnknown, custom.ToBatchStatus())

	withSkips := model.NewFlowExecutionStatus("COMPLETED WITH SKIPS")
	assert.True(t, withSkips.IsComplete())
	assert.True(t, withSkips.IsEnd())
	assert.Equal(t, model.BatchStatusCompleted, withSkips.ToBatchStatus())

	assert.True(t, model.NewFlowExecutionStatus("STOPPED_BY_USER").IsStop())
	assert.True(t, model.NewFlowExecutionStatus("FAILED_VALIDATION").IsFail())
	assert.Equal(t, model.BatchStatusFailed, model.FlowExecutionStatusFailed.ToBatchStatus())
	assert.Equal(t, model.BatchStatusStopped, model.FlowExecutionStatusStopped.ToBatchStatus())
}

func TestFlowExecution_Compare(t *testing.T) {
	a := model.NewFlowExecution("left", model.FlowExecutionStatusCompleted)
	b := model.NewFlowExecution("right", model.FlowExecutionStatusFailed)
	assert.Negative(t, a.Compare(b))
	assert.Equal(t, "FlowExecution: name=right, status=FAILED", b.String())
}
