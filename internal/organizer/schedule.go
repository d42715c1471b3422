package organizer

import (
	"context"
	"fmt"
	"time"

	"github.com/fenilsonani/sortdir/internal/scheduler"
)

// StartScheduler organizes dir every minutes minutes until stopped. A second
// start returns scheduler.ErrAlreadyRunning.
func (e *Engine) StartScheduler(dir string, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("interval must be a positive number of minutes, got %d", minutes)
	}
	dir, err := e.validator.ValidateTarget(dir)
	if err != nil {
		return err
	}
	return e.scheduler.Start(dir, time.Duration(minutes)*time.Minute)
}

// StopScheduler prevents further scheduled passes. The returned context is
// done when a pass already in progress has finished.
func (e *Engine) StopScheduler() context.Context {
	return e.scheduler.Stop()
}

// SchedulerStatus reports the active schedule
func (e *Engine) SchedulerStatus() scheduler.Status {
	return e.scheduler.Status()
}

// RunScheduledNow triggers the scheduled pass immediately
func (e *Engine) RunScheduledNow() error {
	return e.scheduler.RunNow()
}
