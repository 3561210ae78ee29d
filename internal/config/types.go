// Package config provides configuration types for the warden daemon and
// its guardrails policy. These types map to the YAML configuration file.
package config

// Config represents the top-level warden configuration.
// It is typically stored at ~/.config/warden/config.yaml.
type Config struct {
	// Listen is the address the daemon HTTP/WebSocket server binds to.
	Listen string `yaml:"listen,omitempty"`

	// CommandTimeoutSecs bounds foreground command execution (seconds).
	CommandTimeoutSecs int `yaml:"command_timeout,omitempty"`

	// ApprovalTimeoutSecs bounds how long a pending approval may wait (seconds).
	ApprovalTimeoutSecs int `yaml:"approval_timeout,omitempty"`

	// HistoryLimit caps the in-memory command history (most recent N).
	HistoryLimit int `yaml:"history_limit,omitempty"`

	// StorePath is the bbolt database file for durable command history.
	// Empty disables persistence.
	StorePath string `yaml:"store_path,omitempty"`

	// AuditFile is the audit log path. Empty disables audit logging.
	AuditFile string `yaml:"audit_file,omitempty"`

	Log        LogConfig        `yaml:"log,omitempty"`
	Guardrails GuardrailsConfig `yaml:"guardrails,omitempty"`
}

// LogConfig contains operational logging settings.
type LogConfig struct {
	File  string `yaml:"file,omitempty"`
	Level string `yaml:"level,omitempty"`
}

// GuardrailsConfig holds the command safety policy.
// Ordering of ApprovalPatterns is an observable contract: the first matching
// pattern supplies the approval reason.
type GuardrailsConfig struct {
	// BlockedCommands are substrings that unconditionally deny a command.
	// No approval can override a blocklist match.
	BlockedCommands []string `yaml:"blocked_commands,omitempty"`

	// ApprovalPatterns are substrings that require human approval.
	ApprovalPatterns []string `yaml:"approval_patterns,omitempty"`

	// AllowedDirectories are the base directories commands may run under.
	AllowedDirectories []string `yaml:"allowed_directories,omitempty"`

	// ProtectedRemotes are git remote names that require approval for
	// force pushes.
	ProtectedRemotes []string `yaml:"protected_remotes,omitempty"`
}
