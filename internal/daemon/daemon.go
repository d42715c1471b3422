// Package daemon hosts the scheduler as a long-running background process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/organizer"
	"github.com/gofrs/flock"
)

// StopTimeout bounds how long shutdown waits for a pass in progress
const StopTimeout = 10 * time.Second

var (
	// ErrAlreadyRunning is returned when another daemon holds the lock
	ErrAlreadyRunning = errors.New("daemon already running")
	// ErrNoDirectory is returned when no schedule directory is configured
	ErrNoDirectory = errors.New("no schedule directory configured")
)

// Daemon runs scheduled passes until stopped or signalled
type Daemon struct {
	engine  *organizer.Engine
	log     *logger.Logger
	dir     string
	minutes int
	pidFile string
	lock    *flock.Flock
	running bool
	cancel  context.CancelFunc
	mu      sync.RWMutex
}

// New creates a daemon for the schedule in cfg
func New(cfg *config.Config, engine *organizer.Engine, log *logger.Logger) (*Daemon, error) {
	if cfg.Schedule.Directory == "" {
		return nil, ErrNoDirectory
	}
	if cfg.Schedule.IntervalMinutes <= 0 {
		return nil, fmt.Errorf("schedule.interval_minutes must be positive, got %d", cfg.Schedule.IntervalMinutes)
	}

	pidFile, err := cfg.ResolvePidFile()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve PID file: %w", err)
	}
	if log == nil {
		log = logger.Nop()
	}

	return &Daemon{
		engine:  engine,
		log:     log,
		dir:     cfg.Schedule.Directory,
		minutes: cfg.Schedule.IntervalMinutes,
		pidFile: pidFile,
		lock:    flock.New(pidFile + ".lock"),
	}, nil
}

// Run starts the scheduler and blocks until ctx is done, Stop is called
// or SIGINT/SIGTERM arrives. SIGHUP triggers an immediate pass.
func (d *Daemon) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return ErrAlreadyRunning
	}
	d.running = true
	d.cancel = cancel
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.running = false
		d.mu.Unlock()
	}()

	if err := d.acquireLock(); err != nil {
		return err
	}
	defer d.releaseLock()

	if err := d.writePidFile(); err != nil {
		return fmt.Errorf("failed to write PID file: %w", err)
	}
	defer os.Remove(d.pidFile)

	if err := d.engine.StartScheduler(d.dir, d.minutes); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	d.log.Info().Int("pid", os.Getpid()).Str("directory", d.dir).
		Int("interval_minutes", d.minutes).Msg("daemon started")

	d.handleSignals(ctx)
	<-ctx.Done()

	d.log.Info().Msg("daemon shutting down")
	select {
	case <-d.engine.StopScheduler().Done():
	case <-time.After(StopTimeout):
		d.log.Warn().Dur("timeout", StopTimeout).Msg("scheduler stop timed out")
	}

	return nil
}

// Stop ends Run
func (d *Daemon) Stop() {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.cancel != nil {
		d.cancel()
	}
}

// IsRunning returns whether Run is active in this process
func (d *Daemon) IsRunning() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.running
}

// PidFile returns the PID file path
func (d *Daemon) PidFile() string {
	return d.pidFile
}

func (d *Daemon) handleSignals(ctx context.Context) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	go func() {
		defer signal.Stop(sigChan)
		for {
			select {
			case <-ctx.Done():
				return
			case sig := <-sigChan:
				switch sig {
				case syscall.SIGINT, syscall.SIGTERM:
					d.log.Info().Str("signal", sig.String()).Msg("received shutdown signal")
					d.Stop()
				case syscall.SIGHUP:
					d.log.Info().Msg("received SIGHUP, running a pass now")
					go func() {
						if err := d.engine.RunScheduledNow(); err != nil {
							d.log.Error().Err(err).Msg("triggered pass failed")
						}
					}()
				}
			}
		}
	}()
}

func (d *Daemon) acquireLock() error {
	if err := os.MkdirAll(filepath.Dir(d.pidFile), 0755); err != nil {
		return fmt.Errorf("failed to create PID directory: %w", err)
	}
	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return ErrAlreadyRunning
	}
	return nil
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.log.Warn().Err(err).Msg("failed to release daemon lock")
	}
}

func (d *Daemon) writePidFile() error {
	return os.WriteFile(d.pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

// ReadPid returns the PID recorded in pidFile when that process is alive
func ReadPid(pidFile string) (int, bool) {
	data, err := os.ReadFile(pidFile)
	if err != nil {
		return 0, false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, false
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return 0, false
	}
	// Signal 0 checks existence without delivering anything
	if err := process.Signal(syscall.Signal(0)); err != nil {
		return 0, false
	}
	return pid, true
}
