// Package organizer coordinates one pass over a directory: list, classify,
// detect duplicates, move, and record the moves for undo.
package organizer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/duplicates"
	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/ledger"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/mover"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/rules"
	"github.com/fenilsonani/sortdir/internal/scanner"
	"github.com/fenilsonani/sortdir/internal/scheduler"
	"github.com/fenilsonani/sortdir/internal/security"
	"github.com/spf13/afero"
)

// ErrLedgerPersist is returned, wrapped, when a pass moved files but the
// undo ledger could not be written. The summary is still returned.
var ErrLedgerPersist = errors.New("failed to persist undo ledger")

// Options carries everything an Engine needs. Nothing is read from
// process-wide state.
type Options struct {
	Config   *config.Config
	Fs       afero.Fs // defaults to the OS filesystem
	Logger   *logger.Logger
	Progress *progress.ProgressReporter
	StateDir string // overrides Config.StateDir
}

// Engine runs organization passes. Its methods are safe to call from one
// goroutine while the scheduler drives passes from another; passes, undo
// and duplicate deletion never run at the same time.
type Engine struct {
	cfg       *config.Config
	rules     *rules.Rules
	fs        afero.Fs
	log       *logger.Logger
	progress  *progress.ProgressReporter
	validator *security.PathValidator
	store     *ledger.Store
	scheduler *scheduler.Scheduler

	runMu sync.Mutex
}

// New builds an engine. Malformed configuration is returned as a
// *config.ConfigurationError.
func New(opts Options) (*Engine, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.GetDefault()
	}

	r, err := rules.Build(cfg)
	if err != nil {
		return nil, err
	}

	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}

	stateDir := opts.StateDir
	if stateDir == "" {
		stateDir, err = cfg.ResolveStateDir()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve state directory: %w", err)
		}
	}

	for _, c := range r.Conflicts() {
		log.Warn().Str("extension", c.Extension).Str("category", c.Winner).
			Str("ignored", c.Ignored).Msg("extension listed by more than one category")
	}

	e := &Engine{
		cfg:       cfg,
		rules:     r,
		fs:        fs,
		log:       log,
		progress:  opts.Progress,
		validator: security.NewPathValidator(cfg.ProtectedPaths...),
		store:     ledger.NewStore(stateDir),
	}
	e.scheduler = scheduler.New(fs, func(ctx context.Context, dir string) error {
		_, err := e.Organize(ctx, dir)
		return err
	}, log)

	return e, nil
}

// Rules returns the compiled category table
func (e *Engine) Rules() *rules.Rules {
	return e.rules
}

// Progress returns the reporter passes publish to, possibly nil
func (e *Engine) Progress() *progress.ProgressReporter {
	return e.progress
}

// LedgerPath returns where the undo ledger is stored
func (e *Engine) LedgerPath() string {
	return e.store.Path()
}

// =============================================================================
// Planning
// =============================================================================

// Plan lists the moves a pass would perform
type Plan struct {
	Directory   string
	Actions     []mover.Action
	Groups      []duplicates.Group
	Scanned     int
	Skipped     int
	Diagnostics []*fileops.FileError
}

func (e *Engine) plan(ctx context.Context, dir string) (*Plan, error) {
	e.progress.Update(&progress.Progress{Phase: progress.PhaseScanning, Directory: dir, StartTime: time.Now()})

	scan, err := scanner.New(e.fs, scanner.Options{
		IncludeHidden:   e.cfg.IncludeHidden,
		ExcludePatterns: e.cfg.ExcludePatterns,
	}).Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		Directory: dir,
		Actions:   make([]mover.Action, 0, len(scan.Files)),
		Scanned:   len(scan.Files),
		Skipped:   scan.Skipped,
	}

	// Every duplicate must be known before any destination is chosen
	dupes := map[string]bool{}
	if e.cfg.Duplicates.Enabled {
		result, err := e.detect(ctx, scan.Files)
		if err != nil {
			return nil, err
		}
		p.Groups = result.Groups
		p.Diagnostics = append(p.Diagnostics, result.Errors...)
		dupes = result.DuplicatePaths()
	}

	for _, f := range scan.Files {
		category := e.rules.Classify(f.Ext)
		folder := e.rules.Destination(f.Ext)
		if dupes[f.Path] {
			category = e.cfg.Duplicates.Category
			folder = category
		}
		p.Actions = append(p.Actions, mover.Action{
			Source:      f.Path,
			Destination: filepath.Join(dir, folder, f.Name),
			Category:    category,
			Size:        f.Size,
		})
	}

	return p, nil
}

func (e *Engine) detect(ctx context.Context, files []scanner.FileEntry) (*duplicates.Result, error) {
	d, err := duplicates.New(e.fs, duplicates.Options{
		SampleSize: e.cfg.SampleSizeBytes(),
		MinSize:    e.cfg.MinSizeBytes(),
		SampleHash: e.cfg.Duplicates.SampleHash,
		Workers:    e.cfg.Duplicates.Workers,
	}, e.progress)
	if err != nil {
		return nil, err
	}

	result, err := d.Find(ctx, files)
	if err != nil {
		return nil, err
	}
	for _, fe := range result.Errors {
		e.log.Warn().Str("file", fe.Path).Err(fe.Err).Msg("cannot hash file")
	}
	return result, nil
}

// Preview plans a pass over dir and resolves destination names without
// touching the filesystem
func (e *Engine) Preview(ctx context.Context, dir string) (*Plan, error) {
	dir, err := e.validator.ValidateTarget(dir)
	if err != nil {
		return nil, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	p, err := e.plan(ctx, dir)
	if err != nil {
		return nil, err
	}

	res, err := e.newMover(dir, true).Execute(ctx, p.Actions)
	if err != nil {
		return nil, err
	}
	resolved := make(map[string]string, len(res.Records))
	for _, r := range res.Records {
		resolved[r.Original] = r.Destination
	}
	for i, a := range p.Actions {
		if dst, ok := resolved[a.Source]; ok {
			p.Actions[i].Destination = dst
		}
	}
	p.Diagnostics = append(p.Diagnostics, res.Errors...)

	return p, nil
}

func (e *Engine) newMover(dir string, dryRun bool) *mover.Executor {
	return mover.New(e.fs, mover.Options{
		Root:    dir,
		Workers: e.cfg.Mover.Workers,
		DryRun:  dryRun,
	}, e.log, e.progress)
}

// =============================================================================
// Organize
// =============================================================================

// RunSummary reports the outcome of one pass
type RunSummary struct {
	RunID           string
	Directory       string
	Counts          map[string]int
	Bytes           map[string]int64
	Moves           []ledger.Record
	Moved           int
	Failed          int
	Scanned         int
	DuplicateGroups int
	Diagnostics     []*fileops.FileError
	DryRun          bool
	StartedAt       time.Time
	Duration        time.Duration
}

// TotalBytes returns the bytes moved across all categories
func (s *RunSummary) TotalBytes() int64 {
	var total int64
	for _, b := range s.Bytes {
		total += b
	}
	return total
}

// Organize moves every top-level file of dir into its category folder.
// Per-file failures end up in the summary diagnostics; only an invalid
// directory, a lock conflict or a ledger write failure is returned as an
// error. A pass that moves nothing leaves the previous ledger in place.
func (e *Engine) Organize(ctx context.Context, dir string) (*RunSummary, error) {
	dir, err := e.validator.ValidateTarget(dir)
	if err != nil {
		return nil, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer e.store.Unlock()

	dryRun := e.cfg.Mover.DryRun
	started := time.Now()
	e.log.Info().Str("directory", dir).Bool("dry_run", dryRun).Msg("pass started")

	p, err := e.plan(ctx, dir)
	if err != nil {
		e.log.Error().Str("directory", dir).Err(err).Msg("pass aborted")
		return nil, err
	}

	res, err := e.newMover(dir, dryRun).Execute(ctx, p.Actions)
	if err != nil {
		return nil, err
	}

	l := ledger.New(dir)
	for _, r := range res.Records {
		l.Append(r)
	}
	l.AddCreatedDirs(res.CreatedDirs...)

	summary := &RunSummary{
		RunID:           l.RunID,
		Directory:       dir,
		Counts:          res.Counts,
		Bytes:           res.Bytes,
		Moves:           res.Records,
		Moved:           res.Moved(),
		Failed:          len(res.Errors),
		Scanned:         p.Scanned,
		DuplicateGroups: len(p.Groups),
		Diagnostics:     append(p.Diagnostics, res.Errors...),
		DryRun:          dryRun,
		StartedAt:       started,
		Duration:        time.Since(started),
	}

	var persistErr error
	if !dryRun && !l.Empty() {
		if err := e.store.Save(l); err != nil {
			persistErr = fmt.Errorf("%w: %v", ErrLedgerPersist, err)
			e.log.Error().Str("ledger", e.store.Path()).Err(err).Msg("cannot write undo ledger")
		}
	}

	e.log.Info().Str("directory", dir).Str("run_id", summary.RunID).
		Int("moved", summary.Moved).Int("failed", summary.Failed).
		Int("duplicate_groups", summary.DuplicateGroups).
		Dur("duration", summary.Duration).Msg("pass finished")

	e.progress.Update(&progress.Progress{
		Phase:      progress.PhaseComplete,
		Directory:  dir,
		Done:       summary.Moved,
		Total:      len(p.Actions),
		Bytes:      summary.TotalBytes(),
		ErrorCount: summary.Failed,
		StartTime:  started,
	})
	e.progress.Publish(summary)

	return summary, persistErr
}
