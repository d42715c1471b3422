// Package platform resolves per-OS directories for configuration and state.
package platform

import (
	"os"
	"os/user"
	"path/filepath"
	"runtime"
)

// Platform represents the operating system platform
type Platform string

const (
	MacOS   Platform = "darwin"
	Linux   Platform = "linux"
	Unknown Platform = "unknown"
)

// Detect returns the current platform
func Detect() Platform {
	switch runtime.GOOS {
	case "darwin":
		return MacOS
	case "linux":
		return Linux
	default:
		return Unknown
	}
}

// GetConfigDir returns the user's config directory
func GetConfigDir() (string, error) {
	switch Detect() {
	case MacOS:
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	case Linux:
		// Try XDG_CONFIG_HOME first
		if configDir := os.Getenv("XDG_CONFIG_HOME"); configDir != "" {
			return configDir, nil
		}
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".config"), nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

// GetStateDir returns the directory for persistent application state such
// as the undo ledger and the diagnostics log
func GetStateDir() (string, error) {
	switch Detect() {
	case MacOS:
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, "Library", "Application Support"), nil
	case Linux:
		if stateDir := os.Getenv("XDG_STATE_HOME"); stateDir != "" {
			return stateDir, nil
		}
		home, err := homeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, ".local", "state"), nil
	default:
		return "", ErrUnsupportedPlatform
	}
}

func homeDir() (string, error) {
	currentUser, err := user.Current()
	if err != nil {
		return "", err
	}
	return currentUser.HomeDir, nil
}

// Errors
var (
	ErrUnsupportedPlatform = &PlatformError{"unsupported platform"}
)

// PlatformError represents a platform-related error
type PlatformError struct {
	Message string
}

func (e *PlatformError) Error() string {
	return e.Message
}
