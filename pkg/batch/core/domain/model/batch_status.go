// Package model defines the domain objects of the batch flow engine: statuses,
// execution records and the execution context used for checkpointing.
package model

import (
	"fmt"
	"strings"
)

// BatchStatus is the coarse lifecycle status of a job or step execution.
// The ordinal values are part of the contract: Max and the comparison helpers rely on them.
type BatchStatus int

const (
	BatchStatusCompleted BatchStatus = iota
	BatchStatusStarting
	BatchStatusStarted
	BatchStatusStopping
	BatchStatusStopped
	BatchStatusFailed
	BatchStatusAbandoned
	BatchStatusUnknown
)

var batchStatusNames = [...]string{
	"COMPLETED",
	"STARTING",
	"STARTED",
	"STOPPING",
	"STOPPED",
	"FAILED",
	"ABANDONED",
	"UNKNOWN",
}

// String returns the upper-case name of the status (e.g. "COMPLETED").
func (s BatchStatus) String() string {
	if s < BatchStatusCompleted || s > BatchStatusUnknown {
		return fmt.Sprintf("BatchStatus(%d)", int(s))
	}
	return batchStatusNames[s]
}

// ParseBatchStatus converts a status name back into a BatchStatus.
// Names are matched case-insensitively; an unrecognized name yields BatchStatusUnknown and an error.
func ParseBatchStatus(name string) (BatchStatus, error) {
	for i, n := range batchStatusNames {
		if strings.EqualFold(n, name) {
			return BatchStatus(i), nil
		}
	}
	return BatchStatusUnknown, fmt.Errorf("unknown batch status: %q", name)
}

// MaxBatchStatus returns the status with the higher ordinal.
func MaxBatchStatus(a, b BatchStatus) BatchStatus {
	if a > b {
		return a
	}
	return b
}

// IsRunning reports whether the status is STARTING, STARTED or STOPPING.
func (s BatchStatus) IsRunning() bool {
	return s == BatchStatusStarting || s == BatchStatusStarted || s == BatchStatusStopping
}

// IsUnsuccessful reports whether the status is STOPPED, FAILED or UNKNOWN. ABANDONED is not
// included: it marks an execution a later step already moved past.
func (s BatchStatus) IsUnsuccessful() bool {
	switch s {
	case BatchStatusStopped, BatchStatusFailed, BatchStatusUnknown:
		return true
	}
	return false
}

// UpgradeTo returns the status an execution should move to when other is reported.
// Once either side is past STARTED the more severe one wins. Below that, COMPLETED
// beats STARTING and STARTED so a running execution can finish.
func (s BatchStatus) UpgradeTo(other BatchStatus) BatchStatus {
	if s > BatchStatusStarted || other > BatchStatusStarted {
		return MaxBatchStatus(s, other)
	}
	if s == BatchStatusCompleted || other == BatchStatusCompleted {
		return BatchStatusCompleted
	}
	return MaxBatchStatus(s, other)
}

// IsGreaterThan reports whether s has a higher ordinal than other.
func (s BatchStatus) IsGreaterThan(other BatchStatus) bool {
	return s > other
}

// IsLessThan reports whether s has a lower ordinal than other.
func (s BatchStatus) IsLessThan(other BatchStatus) bool {
	return s < other
}

// IsLessThanOrEqualTo reports whether s has an ordinal lower than or equal to other.
func (s BatchStatus) IsLessThanOrEqualTo(other BatchStatus) bool {
	return s <= other
}

// MarshalText encodes the status by name so persisted records stay readable.
func (s BatchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText decodes a status name.
func (s *BatchStatus) UnmarshalText(text []byte) error {
	parsed, err := ParseBatchStatus(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
