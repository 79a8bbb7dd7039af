package config

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	// appDirName is the directory under the user's config and data directories owned by the reminder
	appDirName = "jira-reminder"
	// configFileName is the name of the configuration file inside the config directory
	configFileName = "config.yaml"
)

// MustConfigDir returns the reminder's directory in the user's config directory.
// It panics when the user config directory cannot be determined.
func MustConfigDir() string {
	userConfigDir, err := os.UserConfigDir()
	if err != nil {
		panic(fmt.Errorf("cannot obtain user config dir: %w", err))
	}

	return filepath.Join(userConfigDir, appDirName)
}

// DefaultPath is the configuration file used when no --config is given
func DefaultPath() string {
	return filepath.Join(MustConfigDir(), configFileName)
}

// DataDir returns the directory holding the log file and the instance lock
func DataDir() (string, error) {
	var dataDir string

	// Try XDG_DATA_HOME first, then fallback to ~/.local/share
	if xdgDataHome := os.Getenv("XDG_DATA_HOME"); xdgDataHome != "" {
		dataDir = xdgDataHome
	} else {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot obtain user home dir: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, appDirName), nil
}

// EnsureDataDir returns DataDir after creating it
func EnsureDataDir() (string, error) {
	dir, err := DataDir()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return dir, nil
}
