package ui

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/ui/utils"
)

// LiveProgress redraws a single status line from engine progress updates
type LiveProgress struct {
	mu         sync.Mutex
	out        io.Writer
	width      int
	enabled    bool
	interval   time.Duration
	lastUpdate time.Time
	drawn      bool
}

// NewLiveProgress creates a display writing to out. A disabled display
// consumes updates without drawing.
func NewLiveProgress(out io.Writer, width int, enabled bool) *LiveProgress {
	return &LiveProgress{
		out:      out,
		width:    max(width, utils.MinTerminalWidth),
		enabled:  enabled,
		interval: 100 * time.Millisecond,
	}
}

// NewTerminalProgress draws on f only when it is a terminal
func NewTerminalProgress(f *os.File) *LiveProgress {
	return NewLiveProgress(f, utils.TerminalWidth(f), utils.IsTerminal(f))
}

// Follow renders updates until the channel is closed. The returned channel
// is closed once the last update has been handled.
func (lp *LiveProgress) Follow(updates <-chan interface{}) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := range updates {
			if p, ok := v.(*progress.Progress); ok {
				lp.Update(p)
			}
		}
	}()
	return done
}

// Update draws p, at most once per interval except for phase changes
// and completion
func (lp *LiveProgress) Update(p *progress.Progress) {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if !lp.enabled || p == nil {
		return
	}

	now := time.Now()
	final := p.Phase == progress.PhaseComplete || p.Done == p.Total
	if !final && now.Sub(lp.lastUpdate) < lp.interval {
		return
	}
	lp.lastUpdate = now

	fmt.Fprintf(lp.out, "\r\033[K%s", utils.TruncateString(progress.FormatProgress(p), lp.width-1))
	lp.drawn = true
}

// Finish clears the status line
func (lp *LiveProgress) Finish() {
	lp.mu.Lock()
	defer lp.mu.Unlock()

	if lp.drawn {
		fmt.Fprint(lp.out, "\r\033[K")
		lp.drawn = false
	}
}
