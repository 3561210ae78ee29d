package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/warden-dev/warden/internal/clog"
	"github.com/warden-dev/warden/internal/pathutil"
)

// Load loads the configuration from the default config path and applies
// environment overrides (WARDEN_ prefix). If the config file doesn't exist,
// a default config file is written and the defaults are returned.
// If the file exists but cannot be read or parsed, an error is returned.
func Load() (*Config, error) {
	path := ConfigPath()
	clog.Debug("config: loading from %s", path)

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			clog.Info("config: file not found, creating defaults at %s", path)
			if writeErr := WriteDefaultConfig(); writeErr != nil {
				clog.Warn("config: failed to create default config: %v", writeErr)
			}
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			expandPaths(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyEnvOverrides(cfg)
	expandPaths(cfg)
	return cfg, nil
}

// Parse parses YAML configuration data in strict mode: unknown keys are an
// error so policy typos fail loudly at startup instead of silently allowing.
// Fields absent from the file keep their default values.
func Parse(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		// An empty file decodes to EOF; treat it as all-defaults.
		if errors.Is(err, os.ErrNotExist) || err.Error() == "EOF" {
			return cfg, nil
		}
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}

// Validate checks the configuration for invalid settings.
func Validate(cfg *Config) error {
	if cfg.CommandTimeoutSecs < 0 {
		return fmt.Errorf("command_timeout must not be negative, got %d", cfg.CommandTimeoutSecs)
	}
	if cfg.ApprovalTimeoutSecs < 0 {
		return fmt.Errorf("approval_timeout must not be negative, got %d", cfg.ApprovalTimeoutSecs)
	}
	if cfg.HistoryLimit < 0 {
		return fmt.Errorf("history_limit must not be negative, got %d", cfg.HistoryLimit)
	}
	if cfg.Log.Level != "" {
		switch strings.ToLower(cfg.Log.Level) {
		case "debug", "info", "warn", "warning", "error", "err":
		default:
			return fmt.Errorf("unknown log level %q", cfg.Log.Level)
		}
	}
	if len(cfg.Guardrails.AllowedDirectories) == 0 {
		return errors.New("guardrails.allowed_directories must not be empty")
	}
	for _, dir := range cfg.Guardrails.AllowedDirectories {
		if strings.TrimSpace(dir) == "" {
			return errors.New("guardrails.allowed_directories entries must not be blank")
		}
	}
	return nil
}

// applyEnvOverrides layers WARDEN_* environment variables over the file
// configuration. Only scalar daemon settings are overridable; the guardrails
// policy lists come exclusively from the file.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix("warden")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if s := v.GetString("listen"); s != "" {
		cfg.Listen = s
	}
	if s := v.GetString("log_file"); s != "" {
		cfg.Log.File = s
	}
	if s := v.GetString("log_level"); s != "" {
		cfg.Log.Level = s
	}
	if s := v.GetString("store_path"); s != "" {
		cfg.StorePath = s
	}
	if s := v.GetString("audit_file"); s != "" {
		cfg.AuditFile = s
	}
	if n := v.GetInt("command_timeout"); n > 0 {
		cfg.CommandTimeoutSecs = n
	}
	if n := v.GetInt("approval_timeout"); n > 0 {
		cfg.ApprovalTimeoutSecs = n
	}
}

// expandPaths expands ~ in all path-valued settings.
func expandPaths(cfg *Config) {
	cfg.StorePath = pathutil.ExpandHome(cfg.StorePath)
	cfg.AuditFile = pathutil.ExpandHome(cfg.AuditFile)
	cfg.Log.File = pathutil.ExpandHome(cfg.Log.File)
}
