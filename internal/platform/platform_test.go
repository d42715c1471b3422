package platform

import (
	"path/filepath"
	"testing"
)

func TestXDGOverrides(t *testing.T) {
	if Detect() != Linux {
		t.Skip("XDG variables only apply on Linux")
	}

	config := t.TempDir()
	state := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", config)
	t.Setenv("XDG_STATE_HOME", state)

	if got, err := GetConfigDir(); err != nil || got != config {
		t.Errorf("GetConfigDir() = %q, %v, want %q", got, err, config)
	}
	if got, err := GetStateDir(); err != nil || got != state {
		t.Errorf("GetStateDir() = %q, %v, want %q", got, err, state)
	}
}

func TestDefaultsUnderHome(t *testing.T) {
	if Detect() != Linux {
		t.Skip("layout checked for Linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "")
	t.Setenv("XDG_STATE_HOME", "")

	home, err := homeDir()
	if err != nil {
		t.Skipf("no home directory: %v", err)
	}

	if got, _ := GetConfigDir(); got != filepath.Join(home, ".config") {
		t.Errorf("GetConfigDir() = %q", got)
	}
	if got, _ := GetStateDir(); got != filepath.Join(home, ".local", "state") {
		t.Errorf("GetStateDir() = %q", got)
	}
}
