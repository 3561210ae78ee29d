package config

// DefaultListen is the default daemon listen address. Loopback only: the
// daemon is a local orchestrator, not a network service.
const DefaultListen = "127.0.0.1:7177"

// DefaultCommandTimeoutSecs is the default foreground execution timeout.
const DefaultCommandTimeoutSecs = 300

// DefaultApprovalTimeoutSecs is the default pending-approval timeout.
const DefaultApprovalTimeoutSecs = 300

// DefaultHistoryLimit is the default bound on in-memory command history.
const DefaultHistoryLimit = 50

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              DefaultListen,
		CommandTimeoutSecs:  DefaultCommandTimeoutSecs,
		ApprovalTimeoutSecs: DefaultApprovalTimeoutSecs,
		HistoryLimit:        DefaultHistoryLimit,
		Log: LogConfig{
			Level: "info",
		},
		Guardrails: DefaultGuardrails(),
	}
}

// DefaultGuardrails returns the default command safety policy.
func DefaultGuardrails() GuardrailsConfig {
	return GuardrailsConfig{
		BlockedCommands: []string{
			"rm -rf /",
			"rm -rf ~",
			"rm -rf $HOME",
			"rm -rf /*",
			"rm -rf ~/*",
			"sudo rm -rf",
			"mkfs",
			"dd if=",
			"> /dev/sda",
			"chmod -R 777 /",
			":(){ :|:& };:", // fork bomb
		},
		ApprovalPatterns: []string{
			"rm -rf",
			"rm -r",
			"git push --force",
			"git push -f",
			"git reset --hard",
			"git clean -fd",
			"DROP TABLE",
			"DROP DATABASE",
			"DELETE FROM",
			"TRUNCATE",
			"sudo ",
			"chmod -R",
			"chown -R",
			"kill -9",
			"killall",
			"pkill",
			"shutdown",
			"reboot",
			"npm publish",
			"pip upload",
			"twine upload",
		},
		AllowedDirectories: []string{
			"~/work",
			"~/personal",
			"~/repos",
			"~/projects",
			"~/dev",
		},
		ProtectedRemotes: []string{
			"origin",
			"upstream",
		},
	}
}
