// Package scheduler runs organization passes on a fixed interval.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/robfig/cron/v3"
	"github.com/spf13/afero"
)

var (
	// ErrAlreadyRunning is returned by Start while a schedule is active
	ErrAlreadyRunning = errors.New("scheduler already running")
	// ErrNotRunning is returned by RunNow when nothing is scheduled
	ErrNotRunning = errors.New("scheduler not running")
)

// RunFunc performs one pass over dir
type RunFunc func(ctx context.Context, dir string) error

// Status describes the active schedule
type Status struct {
	Directory string
	Interval  time.Duration
	Running   bool
	NextRun   time.Time
	LastRun   time.Time
	LastError error
}

// Scheduler triggers RunFunc for one directory at a fixed interval. A pass
// that outlasts the interval delays the next one; passes never overlap.
type Scheduler struct {
	fs  afero.Fs
	run RunFunc
	log *logger.Logger

	pass sync.Mutex // serializes cron ticks and RunNow

	mu       sync.RWMutex
	cron     *cron.Cron
	entry    cron.EntryID
	dir      string
	interval time.Duration
	running  bool
	lastRun  time.Time
	lastErr  error
}

// New creates a stopped scheduler
func New(fs afero.Fs, run RunFunc, log *logger.Logger) *Scheduler {
	if log == nil {
		log = logger.Nop()
	}
	return &Scheduler{fs: fs, run: run, log: log}
}

// Start schedules a pass over dir every interval. The first pass happens
// one interval after Start.
func (s *Scheduler) Start(dir string, interval time.Duration) error {
	if interval < time.Second {
		return fmt.Errorf("interval must be at least one second, got %s", interval)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return ErrAlreadyRunning
	}

	cl := s.log.Cron()
	c := cron.New(
		cron.WithLogger(cl),
		cron.WithChain(cron.Recover(cl), cron.DelayIfStillRunning(cl)),
	)

	id, err := c.AddFunc(fmt.Sprintf("@every %s", interval), s.tick)
	if err != nil {
		return fmt.Errorf("failed to add cron job: %w", err)
	}

	s.cron = c
	s.entry = id
	s.dir = dir
	s.interval = interval
	s.lastErr = nil
	s.running = true
	c.Start()

	s.log.Info().Str("directory", dir).Dur("interval", interval).
		Time("next_run", c.Entry(id).Next).Msg("scheduler started")
	return nil
}

// Stop cancels future passes. The returned context is done once a pass in
// progress has finished; Stop does not abort it.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	s.running = false
	s.log.Info().Str("directory", s.dir).Msg("scheduler stopped")
	return s.cron.Stop()
}

// Status returns the current schedule
func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := Status{
		Directory: s.dir,
		Interval:  s.interval,
		Running:   s.running,
		LastRun:   s.lastRun,
		LastError: s.lastErr,
	}
	if s.running {
		st.NextRun = s.cron.Entry(s.entry).Next
	}
	return st
}

// RunNow performs a scheduled pass immediately, outside the cron timer
func (s *Scheduler) RunNow() error {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()

	if !running {
		return ErrNotRunning
	}
	s.tick()

	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

func (s *Scheduler) tick() {
	s.pass.Lock()
	defer s.pass.Unlock()

	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()

	var err error
	if info, statErr := s.fs.Stat(dir); statErr != nil || !info.IsDir() {
		// The directory may be on removable media; try again next time
		s.log.Warn().Str("directory", dir).Msg("scheduled directory is missing, skipping pass")
	} else {
		s.log.Info().Str("directory", dir).Msg("scheduled pass starting")
		err = s.run(context.Background(), dir)
		if err != nil {
			s.log.Error().Str("directory", dir).Err(err).Msg("scheduled pass failed")
		}
	}

	s.mu.Lock()
	s.lastRun = time.Now()
	s.lastErr = err
	s.mu.Unlock()
}
