package config

import (
	"os"
	"path/filepath"
)

// ConfigDir returns the warden configuration directory following XDG
// conventions: $XDG_CONFIG_HOME/warden or ~/.config/warden.
func ConfigDir() string {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		configHome = filepath.Join(home, ".config")
	}
	return filepath.Join(configHome, "warden")
}

// ConfigPath returns the path to the warden configuration file.
// WARDEN_CONFIG overrides the default location.
func ConfigPath() string {
	if path := os.Getenv("WARDEN_CONFIG"); path != "" {
		return path
	}
	return filepath.Join(ConfigDir(), "config.yaml")
}

// DataDir returns the warden data directory following XDG conventions:
// $XDG_DATA_HOME/warden or ~/.local/share/warden. Used for the bbolt store.
func DataDir() string {
	dataHome := os.Getenv("XDG_DATA_HOME")
	if dataHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataHome = filepath.Join(home, ".local", "share")
	}
	return filepath.Join(dataHome, "warden")
}
