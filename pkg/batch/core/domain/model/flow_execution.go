package model

import (
	"fmt"
	"strings"
)

// FlowExecutionStatus is the named outcome of a flow or of a single state in a flow.
// Any name is allowed; the four well-known prefixes give it a coarse rank.
type FlowExecutionStatus struct {
	Name string
}

var (
	FlowExecutionStatusCompleted = FlowExecutionStatus{Name: "COMPLETED"}
	FlowExecutionStatusStopped   = FlowExecutionStatus{Name: "STOPPED"}
	FlowExecutionStatusFailed    = FlowExecutionStatus{Name: "FAILED"}
	FlowExecutionStatusUnknown   = FlowExecutionStatus{Name: "UNKNOWN"}
)

// flowRank is the coarse rank of a FlowExecutionStatus, best first.
type flowRank int

const (
	flowRankCompleted flowRank = iota
	flowRankStopped
	flowRankFailed
	flowRankUnknown
)

// NewFlowExecutionStatus wraps a status or exit code name.
func NewFlowExecutionStatus(name string) FlowExecutionStatus {
	return FlowExecutionStatus{Name: name}
}

func (s FlowExecutionStatus) rank() flowRank {
	switch {
	case strings.HasPrefix(s.Name, FlowExecutionStatusCompleted.Name):
		return flowRankCompleted
	case strings.HasPrefix(s.Name, FlowExecutionStatusStopped.Name):
		return flowRankStopped
	case strings.HasPrefix(s.Name, FlowExecutionStatusFailed.Name):
		return flowRankFailed
	case strings.HasPrefix(s.Name, FlowExecutionStatusUnknown.Name):
		return flowRankUnknown
	default:
		// Custom names get the lowest priority.
		return flowRankCompleted
	}
}

// Compare orders statuses from best (COMPLETED) to worst (UNKNOWN).
// Statuses of the same rank are ordered by name.
func (s FlowExecutionStatus) Compare(other FlowExecutionStatus) int {
	a, b := s.rank(), other.rank()
	if a == b {
		return strings.Compare(s.Name, other.Name)
	}
	return int(a) - int(b)
}

// IsStop reports whether the name starts with STOPPED.
func (s FlowExecutionStatus) IsStop() bool {
	return strings.HasPrefix(s.Name, FlowExecutionStatusStopped.Name)
}

// IsFail reports whether the name starts with FAILED.
func (s FlowExecutionStatus) IsFail() bool {
	return strings.HasPrefix(s.Name, FlowExecutionStatusFailed.Name)
}

// IsComplete reports whether the name starts with COMPLETED.
func (s FlowExecutionStatus) IsComplete() bool {
	return strings.HasPrefix(s.Name, FlowExecutionStatusCompleted.Name)
}

// IsEnd reports whether the status ends a flow: stopped, failed or completed.
func (s FlowExecutionStatus) IsEnd() bool {
	return s.IsStop() || s.IsFail() || s.IsComplete()
}

// ToBatchStatus maps the flow status onto the job lifecycle.
// Custom names that carry none of the well-known prefixes map to UNKNOWN.
func (s FlowExecutionStatus) ToBatchStatus() BatchStatus {
	switch {
	case s.IsComplete():
		return BatchStatusCompleted
	case s.IsStop():
		return BatchStatusStopped
	case s.IsFail():
		return BatchStatusFailed
	default:
		return BatchStatusUnknown
	}
}

func (s FlowExecutionStatus) String() string {
	return s.Name
}

// FlowExecution records the state a flow ended in and the status it ended with.
type FlowExecution struct {
	Name   string
	Status FlowExecutionStatus
}

// NewFlowExecution creates a FlowExecution.
func NewFlowExecution(name string, status FlowExecutionStatus) FlowExecution {
	return FlowExecution{Name: name, Status: status}
}

// Compare orders flow executions by their status.
func (fe FlowExecution) Compare(other FlowExecution) int {
	return fe.Status.Compare(other.Status)
}

func (fe FlowExecution) String() string {
	return fmt.Sprintf("FlowExecution: name=%s, status=%s", fe.Name, fe.Status.Name)
}
