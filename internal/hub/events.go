package hub

import (
	"strings"
	"time"
)

// EventType identifies a broadcast event.
type EventType string

const (
	EventState            EventType = "state"
	EventProjectChanged   EventType = "project_changed"
	EventServiceStarted   EventType = "service_started"
	EventServiceStopped   EventType = "service_stopped"
	EventServiceStatus    EventType = "service_status"
	EventApprovalRequired EventType = "approval_required"
	EventApprovalResolved EventType = "approval_resolved"
	EventCommand          EventType = "command"
	EventLog              EventType = "log"
	EventSavedCommands    EventType = "saved_commands"
)

// Envelope is the wire frame for every broadcast event.
type Envelope struct {
	Type      EventType `json:"type"`
	Data      any       `json:"data"`
	Timestamp string    `json:"timestamp"`
}

func newEnvelope(t EventType, data any) Envelope {
	return Envelope{
		Type:      t,
		Data:      data,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// Project is the active project context shown to observers.
type Project struct {
	Name string `json:"name"`
	Root string `json:"root"`
}

// ServiceInfo describes a long-running service process.
type ServiceInfo struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Port      int       `json:"port,omitempty"`
	PID       int       `json:"pid"`
	StartedAt time.Time `json:"started_at"`
	Status    string    `json:"status"`
}

// Transport caps for captured output. Full output stays with the
// execution result; only the broadcast copy is cut down.
const (
	MaxStdoutBytes = 5000
	MaxStderrBytes = 2000
)

// CommandEvent is the broadcast record of a finished command.
type CommandEvent struct {
	Command   string    `json:"command"`
	Cwd       string    `json:"cwd"`
	Status    string    `json:"status"`
	ExitCode  *int      `json:"exit_code,omitempty"`
	Stdout    string    `json:"stdout,omitempty"`
	Stderr    string    `json:"stderr,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// LogEntry is a broadcast log line.
type LogEntry struct {
	Level     string `json:"level"`
	Message   string `json:"message"`
	Source    string `json:"source"`
	Timestamp string `json:"timestamp"`
}

// SavedCommand mirrors a persisted command shortcut for snapshots.
type SavedCommand struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Command     string    `json:"command"`
	Cwd         string    `json:"cwd,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// truncate cuts s to max bytes, dropping any rune split by the cut.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return strings.ToValidUTF8(s[:max], "")
}
