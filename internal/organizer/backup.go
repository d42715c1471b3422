package organizer

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/scanner"
)

// BackupFolder receives the copies made by Backup, inside the target
// directory. Being a directory, it is never listed by a scan.
const BackupFolder = "_backup"

// BackupResult reports a backup of a directory's top-level files
type BackupResult struct {
	Directory string // the backup folder
	Copied    int
	Bytes     int64
	Renamed   map[string]string // source path -> copy saved under another name
	Errors    []*fileops.FileError
	Duration  time.Duration
}

// Backup copies every top-level regular file of dir, hidden ones included,
// into dir/_backup. Existing copies are never overwritten; a name already
// taken gets a numbered suffix. Per-file failures are collected in the
// result. Backups are not recorded in the undo ledger.
func (e *Engine) Backup(ctx context.Context, dir string) (*BackupResult, error) {
	dir, err := e.validator.ValidateTarget(dir)
	if err != nil {
		return nil, err
	}

	e.runMu.Lock()
	defer e.runMu.Unlock()

	started := time.Now()
	scan, err := scanner.New(e.fs, scanner.Options{IncludeHidden: true}).Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	target := filepath.Join(dir, BackupFolder)
	if _, err := fileops.EnsureDir(e.fs, dir, target); err != nil {
		return nil, err
	}

	result := &BackupResult{Directory: target, Renamed: make(map[string]string)}
	e.log.Info().Str("directory", dir).Int("files", len(scan.Files)).Msg("backup started")

	tracker := e.progress.Track(progress.PhaseCopying, dir, len(scan.Files))
	namer := fileops.NewNamer(e.fs)

	for _, f := range scan.Files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		want := filepath.Join(target, f.Name)
		dst, err := namer.Uniquify(want)
		if err == nil {
			err = fileops.Copy(e.fs, f.Path, dst)
		}
		tracker.Step(f.Path, f.Size, err)
		if err != nil {
			result.Errors = append(result.Errors, fileops.NewFileError("copy", f.Path, err))
			e.log.Warn().Str("file", f.Path).Err(err).Msg("file not backed up")
			continue
		}

		if dst != want {
			result.Renamed[f.Path] = dst
		}
		result.Copied++
		result.Bytes += f.Size
	}

	result.Duration = time.Since(started)
	e.log.Info().Str("directory", dir).Int("copied", result.Copied).
		Int("failed", len(result.Errors)).Dur("duration", result.Duration).Msg("backup finished")

	return result, nil
}
