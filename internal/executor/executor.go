// Package executor runs shell commands through the guardrail pipeline:
// blocklist and directory checks, interactive approval, then a bounded
// foreground run or a tracked background process.
package executor

import (
	"time"
)

// Status is the lifecycle state of a command execution.
type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusBlocked   Status = "blocked"
	StatusTimeout   Status = "timeout"
)

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusBlocked, StatusTimeout, StatusRejected:
		return true
	}
	return false
}

// DefaultCommandTimeout bounds a foreground run when the request does not
// set its own timeout.
const DefaultCommandTimeout = 300 * time.Second

// Request describes a single command to execute. It is consumed by
// Execute and carries no identity of its own.
type Request struct {
	Command    string
	Cwd        string
	Timeout    time.Duration
	Env        map[string]string
	Background bool
}

// Result is the outcome of one Request. It is immutable once its status
// reaches a terminal value.
type Result struct {
	Command        string     `json:"command"`
	Cwd            string     `json:"cwd"`
	Status         Status     `json:"status"`
	Stdout         string     `json:"stdout,omitempty"`
	Stderr         string     `json:"stderr,omitempty"`
	ExitCode       *int       `json:"exit_code,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	ApprovalReason string     `json:"approval_reason,omitempty"`
	BlockedReason  string     `json:"blocked_reason,omitempty"`
}

func intPtr(n int) *int { return &n }

func timePtr(t time.Time) *time.Time { return &t }
