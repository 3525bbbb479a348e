package model

import (
	"fmt"
	"strings"
)

// Well-known exit codes.
const (
	ExitCodeUnknown   = "UNKNOWN"
	ExitCodeExecuting = "EXECUTING"
	ExitCodeCompleted = "COMPLETED"
	ExitCodeNoop      = "NOOP"
	ExitCodeFailed    = "FAILED"
	ExitCodeStopped   = "STOPPED"
	// ExitCodeNoSuchJob is used when a step fails because a referenced job does not exist.
	ExitCodeNoSuchJob = "NO_SUCH_JOB"
)

// ExitStatus is the fine-grained outcome of a step, flow or job: an exit code plus a free-form description.
// Values are immutable; every operation returns a new ExitStatus.
// The zero value stands for an absent status and is ignored by And.
type ExitStatus struct {
	ExitCode        string
	ExitDescription string
}

var (
	ExitStatusUnknown   = ExitStatus{ExitCode: ExitCodeUnknown}
	ExitStatusExecuting = ExitStatus{ExitCode: ExitCodeExecuting}
	ExitStatusCompleted = ExitStatus{ExitCode: ExitCodeCompleted}
	ExitStatusNoop      = ExitStatus{ExitCode: ExitCodeNoop}
	ExitStatusFailed    = ExitStatus{ExitCode: ExitCodeFailed}
	ExitStatusStopped   = ExitStatus{ExitCode: ExitCodeStopped}
)

// NewExitStatus creates an ExitStatus with the given code and an empty description.
func NewExitStatus(code string) ExitStatus {
	return ExitStatus{ExitCode: code}
}

// NewExitStatusWithDescription creates an ExitStatus with the given code and description.
func NewExitStatusWithDescription(code, description string) ExitStatus {
	return ExitStatus{ExitCode: code, ExitDescription: description}
}

// IsZero reports whether the status is the absent value.
func (s ExitStatus) IsZero() bool {
	return s.ExitCode == "" && s.ExitDescription == ""
}

// severity ranks exit codes. Codes outside the well-known set rank highest so they are never
// replaced by a default code.
func (s ExitStatus) severity() int {
	switch {
	case strings.HasPrefix(s.ExitCode, ExitCodeExecuting):
		return 1
	case strings.HasPrefix(s.ExitCode, ExitCodeCompleted):
		return 2
	case strings.HasPrefix(s.ExitCode, ExitCodeNoop):
		return 3
	case strings.HasPrefix(s.ExitCode, ExitCodeStopped):
		return 4
	case strings.HasPrefix(s.ExitCode, ExitCodeFailed):
		return 5
	case strings.HasPrefix(s.ExitCode, ExitCodeUnknown):
		return 6
	default:
		return 7
	}
}

// Compare orders exit statuses by severity, then lexicographically by code.
// It returns a negative number when s is less severe than other.
func (s ExitStatus) Compare(other ExitStatus) int {
	a, b := s.severity(), other.severity()
	if a == b {
		return strings.Compare(s.ExitCode, other.ExitCode)
	}
	return a - b
}

// And combines two statuses. The descriptions are merged and the code of the more severe status is kept.
// A zero other returns s unchanged.
func (s ExitStatus) And(other ExitStatus) ExitStatus {
	if other.IsZero() {
		return s
	}
	result := s.AddExitDescription(other.ExitDescription)
	if s.Compare(other) < 0 {
		result = result.ReplaceExitCode(other.ExitCode)
	}
	return result
}

// AddExitDescription appends description to the current one, separated by "; ".
// Empty or identical descriptions leave the status unchanged.
func (s ExitStatus) AddExitDescription(description string) ExitStatus {
	changed := strings.TrimSpace(description) != "" && s.ExitDescription != description
	if !changed {
		return s
	}
	if strings.TrimSpace(s.ExitDescription) == "" {
		return ExitStatus{ExitCode: s.ExitCode, ExitDescription: description}
	}
	return ExitStatus{ExitCode: s.ExitCode, ExitDescription: s.ExitDescription + "; " + description}
}

// AddExitDescriptionFromError appends the message of err to the description.
func (s ExitStatus) AddExitDescriptionFromError(err error) ExitStatus {
	if err == nil {
		return s
	}
	return s.AddExitDescription(err.Error())
}

// ReplaceExitCode returns a copy with a new code and the same description.
func (s ExitStatus) ReplaceExitCode(code string) ExitStatus {
	return ExitStatus{ExitCode: code, ExitDescription: s.ExitDescription}
}

// IsRunning reports whether the code signals an execution still in progress.
func (s ExitStatus) IsRunning() bool {
	return s.ExitCode == ExitCodeExecuting || s.ExitCode == ExitCodeUnknown
}

// String renders the status for logs.
func (s ExitStatus) String() string {
	return fmt.Sprintf("exitCode=%s;exitDescription=%s", s.ExitCode, s.ExitDescription)
}
