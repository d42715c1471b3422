package organizer

import (
	"context"
	"fmt"

	"github.com/fenilsonani/sortdir/internal/duplicates"
	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/scanner"
)

// FindDuplicates returns the duplicate groups among the top-level files of
// dir. Files that cannot be read are logged and left out.
func (e *Engine) FindDuplicates(ctx context.Context, dir string) ([]duplicates.Group, error) {
	dir, err := e.validator.ValidateTarget(dir)
	if err != nil {
		return nil, err
	}

	scan, err := scanner.New(e.fs, scanner.Options{
		IncludeHidden:   e.cfg.IncludeHidden,
		ExcludePatterns: e.cfg.ExcludePatterns,
	}).Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	result, err := e.detect(ctx, scan.Files)
	if err != nil {
		return nil, err
	}
	return result.Groups, nil
}

// DeleteResult reports a duplicate removal
type DeleteResult struct {
	Deleted int
	Bytes   int64
	Errors  []*fileops.FileError
}

// DeleteDuplicates removes every file of each group except its keeper.
// A group is skipped when its keeper is gone, and a file is kept when its
// size no longer matches the group.
func (e *Engine) DeleteDuplicates(ctx context.Context, groups []duplicates.Group) (*DeleteResult, error) {
	e.runMu.Lock()
	defer e.runMu.Unlock()

	result := &DeleteResult{}
	total := 0
	for _, g := range groups {
		total += len(g.Files) - 1
	}
	tracker := e.progress.Track(progress.PhaseDeleting, "", total)

	fail := func(path string, err error) {
		fe := fileops.NewFileError("delete", path, err)
		result.Errors = append(result.Errors, fe)
		e.log.Warn().Str("file", path).Err(err).Msg("duplicate not deleted")
	}

	for _, g := range groups {
		if len(g.Files) < 2 {
			continue
		}

		keeper := g.Keeper()
		if err := e.checkSize(keeper.Path, g.Size); err != nil {
			for _, f := range g.Extras() {
				fail(f.Path, fmt.Errorf("keeper %s: %w", keeper.Path, err))
				tracker.Step(f.Path, f.Size, err)
			}
			continue
		}

		for _, f := range g.Extras() {
			if err := ctx.Err(); err != nil {
				fail(f.Path, err)
				tracker.Step(f.Path, f.Size, err)
				continue
			}

			err := e.deleteOne(f, g.Size)
			tracker.Step(f.Path, f.Size, err)
			if err != nil {
				fail(f.Path, err)
				continue
			}
			result.Deleted++
			result.Bytes += f.Size
			e.log.Info().Str("file", f.Path).Str("keeper", keeper.Path).Msg("duplicate deleted")
		}
	}

	return result, nil
}

func (e *Engine) deleteOne(f scanner.FileEntry, size int64) error {
	if err := e.validator.ValidatePathForDeletion(f.Path); err != nil {
		return err
	}
	if err := e.checkSize(f.Path, size); err != nil {
		return err
	}
	return e.fs.Remove(f.Path)
}

func (e *Engine) checkSize(path string, size int64) error {
	info, err := e.fs.Stat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("no longer a regular file")
	}
	if info.Size() != size {
		return fmt.Errorf("size changed from %d to %d bytes", size, info.Size())
	}
	return nil
}
