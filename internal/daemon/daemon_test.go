package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/fenilsonani/sortdir/internal/testutil"
)

func newDaemon(t *testing.T, f *testutil.TestFixture) *Daemon {
	t.Helper()
	cfg := config.GetDefault()
	cfg.StateDir = f.StateDir
	cfg.Schedule.Directory = f.RootDir
	cfg.Schedule.IntervalMinutes = 60

	engine, err := organizer.New(organizer.Options{Config: cfg})
	if err != nil {
		t.Fatal(err)
	}
	d, err := New(cfg, engine, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return d
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// =============================================================================
// Daemon Tests
// =============================================================================

func TestNewRequiresDirectory(t *testing.T) {
	cfg := config.GetDefault()
	if _, err := New(cfg, nil, nil); !errors.Is(err, ErrNoDirectory) {
		t.Errorf("expected ErrNoDirectory, got %v", err)
	}

	cfg.Schedule.Directory = "/tmp"
	cfg.Schedule.IntervalMinutes = 0
	if _, err := New(cfg, nil, nil); err == nil {
		t.Error("expected error for zero interval")
	}
}

func TestRunWritesPidAndStops(t *testing.T) {
	f := testutil.NewFixture(t)
	d := newDaemon(t, f)

	done := make(chan error, 1)
	go func() { done <- d.Run(context.Background()) }()

	waitFor(t, func() bool { _, err := os.Stat(d.PidFile()); return err == nil && d.IsRunning() })

	pid, alive := ReadPid(d.PidFile())
	if !alive || pid != os.Getpid() {
		t.Errorf("ReadPid = %d, %v; want %d", pid, alive, os.Getpid())
	}

	d.Stop()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after Stop")
	}

	f.AssertFileNotExists(d.PidFile())
	if d.IsRunning() {
		t.Error("daemon should not report running after Run returns")
	}
}

func TestSecondInstanceRefused(t *testing.T) {
	f := testutil.NewFixture(t)
	first := newDaemon(t, f)
	second := newDaemon(t, f)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- first.Run(ctx) }()
	waitFor(t, first.IsRunning)
	waitFor(t, func() bool { _, err := os.Stat(first.PidFile()); return err == nil })

	if err := second.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}

	cancel()
	<-done
}

func TestReadPid(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
		alive   bool
	}{
		{"current process", fmt.Sprintf("%d\n", os.Getpid()), true},
		{"garbage", "not a pid", false},
		{"negative", "-4", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name+".pid")
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			if _, alive := ReadPid(path); alive != tt.alive {
				t.Errorf("ReadPid alive = %v, want %v", alive, tt.alive)
			}
		})
	}

	if _, alive := ReadPid(filepath.Join(dir, "missing.pid")); alive {
		t.Error("missing PID file should not be alive")
	}
}
