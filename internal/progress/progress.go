package progress

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fenilsonani/sortdir/pkg/utils"
)

// Phase represents the current phase of operation
type Phase string

const (
	PhaseScanning  Phase = "scanning"
	PhaseHashing   Phase = "hashing"
	PhaseMoving    Phase = "moving"
	PhaseDeleting  Phase = "deleting"
	PhaseRestoring Phase = "restoring"
	PhaseCopying   Phase = "copying"
	PhaseComplete  Phase = "complete"
	PhaseError     Phase = "error"
)

// Progress is a snapshot of one phase of a pass
type Progress struct {
	Phase       Phase
	Directory   string
	CurrentFile string
	Done        int
	Total       int
	Bytes       int64
	ErrorCount  int
	StartTime   time.Time
	Error       error
}

// Percent returns completion in the range 0-100
func (p *Progress) Percent() int {
	if p.Total <= 0 {
		return 0
	}
	return p.Done * 100 / p.Total
}

// ProgressReporter provides thread-safe progress reporting. A nil reporter
// discards every update.
type ProgressReporter struct {
	current   *Progress
	mu        sync.RWMutex
	listeners []chan interface{}
}

// NewProgressReporter creates a new progress reporter
func NewProgressReporter() *ProgressReporter {
	return &ProgressReporter{
		listeners: make([]chan interface{}, 0),
	}
}

// Subscribe returns a channel that receives *Progress updates and any
// other values passed to Publish, such as finished run summaries
func (pr *ProgressReporter) Subscribe() <-chan interface{} {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	ch := make(chan interface{}, 64)
	pr.listeners = append(pr.listeners, ch)
	return ch
}

// Unsubscribe closes and removes a listener channel
func (pr *ProgressReporter) Unsubscribe(ch <-chan interface{}) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	for i, listener := range pr.listeners {
		if listener == ch {
			close(listener)
			pr.listeners = append(pr.listeners[:i], pr.listeners[i+1:]...)
			return
		}
	}
}

// Update records p as the current progress and notifies listeners
func (pr *ProgressReporter) Update(p *Progress) {
	if pr == nil {
		return
	}
	pr.mu.Lock()
	pr.current = p
	pr.mu.Unlock()

	pr.Publish(p)
}

// Publish sends v to every listener without blocking
func (pr *ProgressReporter) Publish(v interface{}) {
	if pr == nil {
		return
	}
	// Sends are non-blocking, so holding the lock keeps Unsubscribe from
	// closing a channel mid-send
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	for _, listener := range pr.listeners {
		select {
		case listener <- v:
		default:
			// Skip if channel is full
		}
	}
}

// Current returns the latest progress, or nil
func (pr *ProgressReporter) Current() *Progress {
	if pr == nil {
		return nil
	}
	pr.mu.RLock()
	defer pr.mu.RUnlock()
	return pr.current
}

// Tracker counts completed items of one phase and reports each step.
// It is safe for concurrent use by pool workers.
type Tracker struct {
	pr     *ProgressReporter
	phase  Phase
	dir    string
	total  int
	start  time.Time
	done   atomic.Int64
	bytes  atomic.Int64
	errors atomic.Int64
}

// Track starts tracking a phase of total items
func (pr *ProgressReporter) Track(phase Phase, dir string, total int) *Tracker {
	t := &Tracker{pr: pr, phase: phase, dir: dir, total: total, start: time.Now()}
	pr.Update(t.snapshot(""))
	return t
}

// Step records one finished item
func (t *Tracker) Step(path string, size int64, err error) {
	t.done.Add(1)
	if err != nil {
		t.errors.Add(1)
	} else {
		t.bytes.Add(size)
	}
	t.pr.Update(t.snapshot(path))
}

// Done returns the number of finished items
func (t *Tracker) Done() int {
	return int(t.done.Load())
}

func (t *Tracker) snapshot(path string) *Progress {
	return &Progress{
		Phase:       t.phase,
		Directory:   t.dir,
		CurrentFile: path,
		Done:        int(t.done.Load()),
		Total:       t.total,
		Bytes:       t.bytes.Load(),
		ErrorCount:  int(t.errors.Load()),
		StartTime:   t.start,
	}
}

// FormatProgress returns a human-readable progress string
func FormatProgress(p *Progress) string {
	if p == nil {
		return "Preparing..."
	}

	elapsed := time.Since(p.StartTime)

	switch p.Phase {
	case PhaseScanning:
		return fmt.Sprintf("Scanning %s...", p.Directory)
	case PhaseHashing:
		return fmt.Sprintf("Checking for duplicates... %d/%d files (%d%%)", p.Done, p.Total, p.Percent())
	case PhaseMoving, PhaseDeleting, PhaseRestoring, PhaseCopying:
		verb := map[Phase]string{
			PhaseMoving:    "Moving",
			PhaseDeleting:  "Deleting",
			PhaseRestoring: "Restoring",
			PhaseCopying:   "Copying",
		}[p.Phase]

		eta := ""
		if p.Done > 0 && p.Total > p.Done {
			avgTime := elapsed / time.Duration(p.Done)
			remaining := time.Duration(p.Total-p.Done) * avgTime
			eta = fmt.Sprintf(" ETA: %s", FormatDuration(remaining))
		}

		return fmt.Sprintf("%s... %d/%d files (%d%%) - %s%s",
			verb,
			p.Done,
			p.Total,
			p.Percent(),
			utils.FormatBytes(p.Bytes),
			eta)
	case PhaseComplete:
		return fmt.Sprintf("Done: %d files (%s) in %s",
			p.Done,
			utils.FormatBytes(p.Bytes),
			FormatDuration(elapsed))
	case PhaseError:
		return fmt.Sprintf("Error: %v", p.Error)
	default:
		return "Working..."
	}
}

// FormatDuration formats duration in human-readable format
func FormatDuration(d time.Duration) string {
	d = d.Round(time.Second)

	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second

	if h > 0 {
		return fmt.Sprintf("%dh%dm%ds", h, m, s)
	}
	if m > 0 {
		return fmt.Sprintf("%dm%ds", m, s)
	}
	return fmt.Sprintf("%ds", s)
}
