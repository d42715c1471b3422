package organizer

import (
	"context"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/spf13/afero"
)

// UndoResult reports the reversal of the last pass
type UndoResult struct {
	RunID         string
	Directory     string
	Restored      int
	Failed        int
	Renamed       map[string]string // original path -> path used instead
	RemovedDirs   []string
	Errors        []*fileops.FileError
	NothingToUndo bool
}

// UndoLast moves the files of the last pass back where they came from,
// newest move first. An occupied original path gets a numbered name
// instead. Empty folders the pass created are removed and the ledger is
// cleared, so a second call reports nothing to undo.
//
// When ctx is cancelled the records not yet processed stay in the ledger.
func (e *Engine) UndoLast(ctx context.Context) (*UndoResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	if err := e.store.Lock(ctx); err != nil {
		return nil, err
	}
	defer e.store.Unlock()

	l, err := e.store.Load()
	if err != nil {
		return nil, err
	}
	if l.Empty() {
		if l != nil {
			if err := e.store.Clear(); err != nil {
				e.log.Warn().Str("ledger", e.store.Path()).Err(err).Msg("cannot clear empty undo ledger")
			}
		}
		return &UndoResult{NothingToUndo: true}, nil
	}

	result := &UndoResult{
		RunID:     l.RunID,
		Directory: l.Directory,
		Renamed:   make(map[string]string),
	}
	e.log.Info().Str("directory", l.Directory).Str("run_id", l.RunID).
		Int("records", len(l.Records)).Msg("undo started")

	tracker := e.progress.Track(progress.PhaseRestoring, l.Directory, len(l.Records))
	namer := fileops.NewNamer(e.fs)

	for i := len(l.Records) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			l.Records = l.Records[:i+1]
			if saveErr := e.store.Save(l); saveErr != nil {
				e.log.Error().Err(saveErr).Msg("cannot keep remaining undo records")
			}
			return result, err
		}

		rec := l.Records[i]
		dst, err := e.restore(namer, rec.Destination, rec.Original)
		tracker.Step(rec.Destination, rec.Size, err)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fileops.NewFileError("restore", rec.Destination, err))
			e.log.Warn().Str("file", rec.Destination).Str("original", rec.Original).Err(err).Msg("restore failed")
			continue
		}

		result.Restored++
		if dst != rec.Original {
			result.Renamed[rec.Original] = dst
			e.log.Warn().Str("original", rec.Original).Str("restored_as", dst).Msg("original path taken, restored under a new name")
		}
	}

	result.RemovedDirs = removeEmptyDirs(e.fs, l.CreatedDirs)

	if err := e.store.Clear(); err != nil {
		return result, err
	}

	e.log.Info().Str("directory", l.Directory).Int("restored", result.Restored).
		Int("failed", result.Failed).Msg("undo finished")
	e.progress.Publish(result)

	return result, nil
}

func (e *Engine) restore(namer *fileops.Namer, from, original string) (string, error) {
	if err := e.fs.MkdirAll(filepath.Dir(original), 0755); err != nil {
		return "", err
	}

	dst, err := namer.Uniquify(original)
	if err != nil {
		return "", err
	}
	defer namer.Release(dst)

	if err := fileops.Move(e.fs, from, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// removeEmptyDirs removes the given directories deepest first, leaving any
// that still hold something
func removeEmptyDirs(fs afero.Fs, dirs []string) []string {
	sorted := append([]string(nil), dirs...)
	sort.Slice(sorted, func(i, j int) bool {
		di := strings.Count(sorted[i], string(filepath.Separator))
		dj := strings.Count(sorted[j], string(filepath.Separator))
		if di != dj {
			return di > dj
		}
		return sorted[i] > sorted[j]
	})

	var removed []string
	for _, dir := range sorted {
		empty, err := afero.IsEmpty(fs, dir)
		if err != nil || !empty {
			continue
		}
		if err := fs.Remove(dir); err == nil {
			removed = append(removed, dir)
		}
	}
	return removed
}
