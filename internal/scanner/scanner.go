// Package scanner lists the top-level regular files of a directory.
package scanner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fenilsonani/sortdir/internal/rules"
	"github.com/spf13/afero"
)

// FileEntry describes one regular file directly inside the scanned directory.
// Entries are read once per pass and not updated afterwards.
type FileEntry struct {
	Path    string
	Name    string
	Size    int64
	Ext     string // lowercase, no leading dot, possibly empty
	ModTime time.Time
	Index   int // position in the directory listing
}

// ScanResult represents the result of a scan operation
type ScanResult struct {
	Dir       string
	Files     []FileEntry
	TotalSize int64
	Skipped   int // directories, symlinks, hidden and excluded entries
}

// Options controls which entries are listed
type Options struct {
	IncludeHidden   bool
	ExcludePatterns []string // matched against the file name
}

// Scanner lists candidate files through an afero filesystem
type Scanner struct {
	fs   afero.Fs
	opts Options
}

// New creates a scanner
func New(fs afero.Fs, opts Options) *Scanner {
	return &Scanner{fs: fs, opts: opts}
}

// Scan lists the regular files directly inside dir in name order.
// Subdirectories are never descended into.
func (s *Scanner) Scan(ctx context.Context, dir string) (*ScanResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	infos, err := afero.ReadDir(s.fs, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	result := &ScanResult{
		Dir:   dir,
		Files: make([]FileEntry, 0, len(infos)),
	}

	for _, info := range infos {
		if !s.shouldInclude(info) {
			result.Skipped++
			continue
		}

		entry := FileEntry{
			Path:    filepath.Join(dir, info.Name()),
			Name:    info.Name(),
			Size:    info.Size(),
			Ext:     rules.ExtensionOf(info.Name()),
			ModTime: info.ModTime(),
			Index:   len(result.Files),
		}
		result.Files = append(result.Files, entry)
		result.TotalSize += entry.Size
	}

	return result, nil
}

func (s *Scanner) shouldInclude(info os.FileInfo) bool {
	// Directories, symlinks, sockets and devices are left alone
	if !info.Mode().IsRegular() {
		return false
	}

	name := info.Name()
	if !s.opts.IncludeHidden && strings.HasPrefix(name, ".") {
		return false
	}

	for _, pattern := range s.opts.ExcludePatterns {
		if matched, _ := filepath.Match(pattern, name); matched {
			return false
		}
	}

	return true
}
