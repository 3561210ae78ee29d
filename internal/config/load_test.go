package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseDefaultsWhenEmpty(t *testing.T) {
	cfg, err := Parse([]byte(""))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %q, want %q", cfg.Listen, DefaultListen)
	}
	if cfg.CommandTimeoutSecs != DefaultCommandTimeoutSecs {
		t.Errorf("CommandTimeoutSecs = %d, want %d", cfg.CommandTimeoutSecs, DefaultCommandTimeoutSecs)
	}
	if len(cfg.Guardrails.BlockedCommands) == 0 {
		t.Error("default blocklist should not be empty")
	}
}

func TestParseOverridesDefaults(t *testing.T) {
	data := []byte(`
listen: "127.0.0.1:9000"
history_limit: 10
guardrails:
  blocked_commands:
    - "rm -rf /"
  approval_patterns:
    - "rm -rf"
  allowed_directories:
    - "~/work"
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if cfg.Listen != "127.0.0.1:9000" {
		t.Errorf("Listen = %q", cfg.Listen)
	}
	if cfg.HistoryLimit != 10 {
		t.Errorf("HistoryLimit = %d, want 10", cfg.HistoryLimit)
	}
	if len(cfg.Guardrails.BlockedCommands) != 1 || cfg.Guardrails.BlockedCommands[0] != "rm -rf /" {
		t.Errorf("BlockedCommands = %v", cfg.Guardrails.BlockedCommands)
	}
	if len(cfg.Guardrails.AllowedDirectories) != 1 {
		t.Errorf("AllowedDirectories = %v", cfg.Guardrails.AllowedDirectories)
	}
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	data := []byte("guardrails:\n  blocked_comands:\n    - \"rm -rf /\"\n")
	if _, err := Parse(data); err == nil {
		t.Error("Parse() should reject unknown keys (strict mode)")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults valid", func(c *Config) {}, false},
		{"negative command timeout", func(c *Config) { c.CommandTimeoutSecs = -1 }, true},
		{"negative approval timeout", func(c *Config) { c.ApprovalTimeoutSecs = -5 }, true},
		{"negative history limit", func(c *Config) { c.HistoryLimit = -1 }, true},
		{"bad log level", func(c *Config) { c.Log.Level = "verbose" }, true},
		{"empty allowed dirs", func(c *Config) { c.Guardrails.AllowedDirectories = nil }, true},
		{"blank allowed dir", func(c *Config) { c.Guardrails.AllowedDirectories = []string{"  "} }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadWritesDefaultsWhenMissing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("WARDEN_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != DefaultListen {
		t.Errorf("Listen = %q, want default", cfg.Listen)
	}

	// A default config file should now exist.
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("default config not written: %v", err)
	}
	if !strings.Contains(string(data), "blocked_commands") {
		t.Errorf("written config missing guardrails: %s", data)
	}

	// Loading the written file back must succeed.
	if _, err := Load(); err != nil {
		t.Fatalf("Load() of written defaults error = %v", err)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte("listen: \"127.0.0.1:9000\"\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("WARDEN_CONFIG", path)
	t.Setenv("WARDEN_LISTEN", "127.0.0.1:9001")
	t.Setenv("WARDEN_COMMAND_TIMEOUT", "60")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Listen != "127.0.0.1:9001" {
		t.Errorf("Listen = %q, want env override 127.0.0.1:9001", cfg.Listen)
	}
	if cfg.CommandTimeoutSecs != 60 {
		t.Errorf("CommandTimeoutSecs = %d, want 60", cfg.CommandTimeoutSecs)
	}
}

func TestWriteDefaultConfigRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	t.Setenv("WARDEN_CONFIG", path)

	if err := WriteDefaultConfig(); err != nil {
		t.Fatalf("WriteDefaultConfig() error = %v", err)
	}
	if err := WriteDefaultConfig(); err == nil {
		t.Error("WriteDefaultConfig() should refuse to overwrite")
	}
}
