// Package audit provides structured logging for command execution events.
// Log entries follow a key=value format suitable for parsing and analysis.
package audit

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"
)

// EventType represents the type of execution event.
type EventType string

// Event types for command execution.
const (
	EventRequest          EventType = "REQUEST"
	EventBlocked          EventType = "BLOCKED"
	EventApprovalRequired EventType = "APPROVAL_REQUIRED"
	EventApprove          EventType = "APPROVE"
	EventDeny             EventType = "DENY"
	EventTimeout          EventType = "TIMEOUT"
	EventComplete         EventType = "COMPLETE"
)

// Event types for background process lifecycle.
const (
	EventProcStart EventType = "PROC_START"
	EventProcStop  EventType = "PROC_STOP"
)

// Event represents a single audit log entry.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time

	// Type is the event type (REQUEST, BLOCKED, etc.)
	Type EventType

	// Cmd is the command being executed.
	Cmd string

	// Cwd is the resolved working directory.
	Cwd string

	// Reason is the block/approval/denial reason, where applicable.
	Reason string

	// ApprovalID identifies the pending approval for APPROVE/DENY events.
	ApprovalID string

	// ProcID identifies the background process for PROC_* events.
	ProcID string

	// ExitCode is the command exit code (for COMPLETE events).
	ExitCode int

	// Duration is the execution time (for COMPLETE events).
	Duration time.Duration
}

// Format returns the log entry as a formatted string.
// Format: 2024-01-15T14:32:05Z EXEC REQUEST cmd="..." cwd="..."
func (e *Event) Format() string {
	var b strings.Builder

	b.WriteString(e.Timestamp.UTC().Format(time.RFC3339))
	b.WriteString(" EXEC ")
	b.WriteString(string(e.Type))

	writeOptionalField(&b, "cmd", e.Cmd)
	writeOptionalField(&b, "cwd", e.Cwd)
	writeOptionalField(&b, "id", e.ApprovalID)
	writeOptionalField(&b, "proc", e.ProcID)
	writeOptionalField(&b, "reason", e.Reason)

	if e.Type == EventComplete {
		b.WriteString(" exit=")
		b.WriteString(strconv.Itoa(e.ExitCode))
		b.WriteString(" duration=")
		b.WriteString(formatDuration(e.Duration))
	}

	return b.String()
}

// writeOptionalField appends " key=quoted_value" to the builder if value is non-empty.
func writeOptionalField(b *strings.Builder, key, value string) {
	if value == "" {
		return
	}
	b.WriteString(" ")
	b.WriteString(key)
	b.WriteString("=")
	b.WriteString(strconv.Quote(value))
}

// formatDuration formats a duration as a human-readable string (e.g., "2.3s", "1m30s").
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%.1fms", float64(d)/float64(time.Millisecond))
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	return d.Round(time.Second).String()
}

// Logger writes audit events to an io.Writer.
// A nil Logger (or one with a nil writer) silently discards events, so
// callers never need to guard audit calls.
type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

// NewLogger creates a new audit logger that writes to the given writer.
func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

// Log writes an event to the audit log.
func (l *Logger) Log(e *Event) error {
	if l == nil || l.w == nil {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	line := e.Format() + "\n"
	if _, err := l.w.Write([]byte(line)); err != nil {
		return fmt.Errorf("write audit event: %w", err)
	}
	return nil
}

// LogRequest logs an EXEC REQUEST event.
func (l *Logger) LogRequest(cmd, cwd string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventRequest, Cmd: cmd, Cwd: cwd})
}

// LogBlocked logs an EXEC BLOCKED event.
func (l *Logger) LogBlocked(cmd, cwd, reason string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventBlocked, Cmd: cmd, Cwd: cwd, Reason: reason})
}

// LogApprovalRequired logs an EXEC APPROVAL_REQUIRED event.
func (l *Logger) LogApprovalRequired(cmd, cwd, id, reason string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventApprovalRequired, Cmd: cmd, Cwd: cwd, ApprovalID: id, Reason: reason})
}

// LogApprove logs an EXEC APPROVE event.
func (l *Logger) LogApprove(cmd, id string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventApprove, Cmd: cmd, ApprovalID: id})
}

// LogDeny logs an EXEC DENY event.
func (l *Logger) LogDeny(cmd, id, reason string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventDeny, Cmd: cmd, ApprovalID: id, Reason: reason})
}

// LogTimeout logs an EXEC TIMEOUT event.
func (l *Logger) LogTimeout(cmd, cwd string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventTimeout, Cmd: cmd, Cwd: cwd})
}

// LogComplete logs an EXEC COMPLETE event.
func (l *Logger) LogComplete(cmd, cwd string, exitCode int, duration time.Duration) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventComplete, Cmd: cmd, Cwd: cwd, ExitCode: exitCode, Duration: duration})
}

// LogProcStart logs a PROC_START event for a background process.
func (l *Logger) LogProcStart(procID, cmd, cwd string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventProcStart, Cmd: cmd, Cwd: cwd, ProcID: procID})
}

// LogProcStop logs a PROC_STOP event for a background process.
func (l *Logger) LogProcStop(procID string) error {
	return l.Log(&Event{Timestamp: time.Now(), Type: EventProcStop, ProcID: procID})
}
