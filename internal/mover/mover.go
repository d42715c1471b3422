// Package mover executes planned moves concurrently without overwriting
// anything at the destination.
package mover

import (
	"context"
	"fmt"
	"path/filepath"
	"runtime"
	"sync"

	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/ledger"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
)

// MaxWorkers caps the default pool size
const MaxWorkers = 12

// Action moves one file into a category folder
type Action struct {
	Source      string
	Destination string // desired path, renamed on collision
	Category    string // top-level folder, used for counters
	Size        int64
}

// Options configures an Executor
type Options struct {
	Root    string // directory being organized; folders are only created below it
	Workers int    // 0 = min(12, 2×NumCPU)
	DryRun  bool
}

// Result collects the outcome of every action. Each action produces exactly
// one record or one error.
type Result struct {
	Records     []ledger.Record // completion order
	Counts      map[string]int
	Bytes       map[string]int64
	Errors      []*fileops.FileError
	CreatedDirs []string // outermost first per directory, may repeat
	DryRun      bool
}

// Moved returns the number of successful moves
func (r *Result) Moved() int {
	return len(r.Records)
}

// Executor runs actions in a bounded worker pool
type Executor struct {
	fs       afero.Fs
	opts     Options
	namer    *fileops.Namer
	log      *logger.Logger
	progress *progress.ProgressReporter

	dirMu sync.Mutex
	dirs  map[string]*dirState
}

type dirState struct {
	once sync.Once
	err  error
}

// New creates an executor
func New(fs afero.Fs, opts Options, log *logger.Logger, pr *progress.ProgressReporter) *Executor {
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{
		fs:       fs,
		opts:     opts,
		namer:    fileops.NewNamer(fs),
		log:      log,
		progress: pr,
		dirs:     make(map[string]*dirState),
	}
}

// DefaultWorkers returns the move pool size for this machine
func DefaultWorkers() int {
	return min(MaxWorkers, 2*runtime.NumCPU())
}

// Execute runs every action. Cancelling ctx stops new submissions; actions
// not yet started are reported as cancelled.
func (e *Executor) Execute(ctx context.Context, actions []Action) (*Result, error) {
	result := &Result{
		Records: []ledger.Record{},
		Counts:  make(map[string]int),
		Bytes:   make(map[string]int64),
		DryRun:  e.opts.DryRun,
	}
	if len(actions) == 0 {
		return result, nil
	}

	pool, err := ants.NewPool(min(e.opts.Workers, len(actions)))
	if err != nil {
		return nil, fmt.Errorf("failed to create move pool: %w", err)
	}
	defer pool.Release()

	tracker := e.progress.Track(progress.PhaseMoving, e.opts.Root, len(actions))

	// Guards result; held only for the append and counter update
	var mu sync.Mutex
	finish := func(a Action, rec *ledger.Record, created []string, ferr *fileops.FileError) {
		mu.Lock()
		result.CreatedDirs = append(result.CreatedDirs, created...)
		if ferr != nil {
			result.Errors = append(result.Errors, ferr)
		} else {
			result.Records = append(result.Records, *rec)
			result.Counts[a.Category]++
			result.Bytes[a.Category] += a.Size
		}
		mu.Unlock()

		var stepErr error
		if ferr != nil {
			stepErr = ferr
		}
		tracker.Step(a.Source, a.Size, stepErr)
	}

	var wg sync.WaitGroup
	for i, a := range actions {
		if ctx.Err() != nil {
			for _, rest := range actions[i:] {
				finish(rest, nil, nil, fileops.NewFileError("move", rest.Source, ctx.Err()))
			}
			break
		}

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if err := ctx.Err(); err != nil {
				finish(a, nil, nil, fileops.NewFileError("move", a.Source, err))
				return
			}
			rec, created, ferr := e.run(a)
			finish(a, rec, created, ferr)
		})
		if submitErr != nil {
			wg.Done()
			finish(a, nil, nil, fileops.NewFileError("move", a.Source, submitErr))
		}
	}
	wg.Wait()

	// Reservations only matter while this batch runs
	for _, rec := range result.Records {
		e.namer.Release(rec.Destination)
	}

	return result, nil
}

// run performs one action and returns its record, or the error that
// stopped it
func (e *Executor) run(a Action) (*ledger.Record, []string, *fileops.FileError) {
	created, err := e.ensureDir(filepath.Dir(a.Destination))
	if err != nil {
		ferr := fileops.NewFileError("mkdir", filepath.Dir(a.Destination), err)
		e.log.Warn().Str("file", a.Source).Err(err).Msg("cannot create destination folder")
		return nil, created, ferr
	}

	dst, err := e.namer.Uniquify(a.Destination)
	if err != nil {
		ferr := fileops.NewFileError("rename", a.Destination, err)
		e.log.Warn().Str("file", a.Source).Err(err).Msg("no free destination name")
		return nil, created, ferr
	}

	if !e.opts.DryRun {
		if err := fileops.Move(e.fs, a.Source, dst); err != nil {
			e.namer.Release(dst)
			ferr := fileops.NewFileError("move", a.Source, err)
			e.log.Warn().Str("file", a.Source).Str("destination", dst).Err(err).Msg("move failed")
			return nil, created, ferr
		}
	}

	e.log.Debug().Str("file", a.Source).Str("destination", dst).Bool("dry_run", e.opts.DryRun).Msg("moved")
	return &ledger.Record{Original: a.Source, Destination: dst, Size: a.Size}, created, nil
}

// ensureDir creates dir once per executor. Only the call that created
// directories reports them.
func (e *Executor) ensureDir(dir string) ([]string, error) {
	if e.opts.DryRun {
		return nil, nil
	}

	e.dirMu.Lock()
	state, ok := e.dirs[dir]
	if !ok {
		state = &dirState{}
		e.dirs[dir] = state
	}
	e.dirMu.Unlock()

	var created []string
	state.once.Do(func() {
		root := e.opts.Root
		if root == "" {
			root = filepath.Dir(dir)
		}
		created, state.err = fileops.EnsureDir(e.fs, root, dir)
	})
	return created, state.err
}
