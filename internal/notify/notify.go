// Package notify delivers fire-and-forget desktop-style notifications.
// Delivery is never awaited and never fails the caller.
package notify

import (
	"github.com/warden-dev/warden/internal/clog"
)

// Type classifies a notification.
type Type string

const (
	TypeInfo     Type = "info"
	TypeSuccess  Type = "success"
	TypeWarning  Type = "warning"
	TypeError    Type = "error"
	TypeApproval Type = "approval"
)

// Notifier receives orchestration events the operator may care about.
// Implementations must not block the caller.
type Notifier interface {
	Notify(t Type, title, message string)
}

// LogNotifier writes notifications to the daemon log. It is the default
// when no desktop integration is configured.
type LogNotifier struct{}

// Notify logs the notification at a level matching its type.
func (LogNotifier) Notify(t Type, title, message string) {
	switch t {
	case TypeError:
		clog.Error("notify: %s: %s", title, message)
	case TypeWarning, TypeApproval:
		clog.Warn("notify: %s: %s", title, message)
	default:
		clog.Info("notify: %s: %s", title, message)
	}
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// Notify does nothing.
func (NopNotifier) Notify(Type, string, string) {}

// ApprovalRequired notifies that a command is waiting on approval.
func ApprovalRequired(n Notifier, command, reason string) {
	if n == nil {
		return
	}
	n.Notify(TypeApproval, "Approval required", command+" ("+reason+")")
}

// CommandCompleted notifies that a command finished with the given status.
func CommandCompleted(n Notifier, command, status string) {
	if n == nil {
		return
	}
	t := TypeSuccess
	if status != "completed" {
		t = TypeWarning
	}
	n.Notify(t, "Command "+status, command)
}

// ServiceStarted notifies that a background service came up.
func ServiceStarted(n Notifier, name, id string) {
	if n == nil {
		return
	}
	n.Notify(TypeInfo, "Service started", name+" ("+id+")")
}

// ServiceStopped notifies that a background service went away.
func ServiceStopped(n Notifier, id string) {
	if n == nil {
		return
	}
	n.Notify(TypeInfo, "Service stopped", id)
}
