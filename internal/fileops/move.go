package fileops

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/afero"
)

// CopyChunkSize is the buffer used by the copy fallback
const CopyChunkSize = 64 * 1024

// Move moves src to dst. A rename is tried first; when the paths are on
// different volumes it falls back to copy, sync and delete. A failed
// fallback leaves src untouched and removes the partial copy.
func Move(fs afero.Fs, src, dst string) error {
	err := fs.Rename(src, dst)
	if err == nil {
		return nil
	}
	if !needsCopy(err) {
		return NewFileError("move", src, err)
	}
	if err := copyAndDelete(fs, src, dst); err != nil {
		return NewFileError("move", src, err)
	}
	return nil
}

func needsCopy(err error) bool {
	return errors.Is(err, syscall.EXDEV) || errors.Is(err, syscall.ENOTSUP)
}

// Copy copies src to dst preserving mode and modification time. dst must
// not exist. A failed copy removes the partial file.
func Copy(fs afero.Fs, src, dst string) error {
	if err := copyFile(fs, src, dst); err != nil {
		return NewFileError("copy", src, err)
	}
	return nil
}

// copyAndDelete copies src to dst, then removes src
func copyAndDelete(fs afero.Fs, src, dst string) error {
	if err := copyFile(fs, src, dst); err != nil {
		return err
	}

	if err := fs.Remove(src); err != nil {
		// Keep exactly one copy: the original
		fs.Remove(dst)
		return fmt.Errorf("failed to remove source after copy: %w", err)
	}

	return nil
}

func copyFile(fs afero.Fs, src, dst string) error {
	in, err := fs.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	info, err := in.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("not a regular file: %s", src)
	}

	// O_EXCL: never clobber something that appeared at dst meanwhile
	out, err := fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return err
	}

	if err := copyContents(out, in); err != nil {
		fs.Remove(dst)
		return err
	}

	// Best effort, some filesystems do not support these
	fs.Chmod(dst, info.Mode().Perm())
	fs.Chtimes(dst, info.ModTime(), info.ModTime())
	return nil
}

func copyContents(out afero.File, in io.Reader) error {
	buf := make([]byte, CopyChunkSize)
	if _, err := io.CopyBuffer(out, in, buf); err != nil {
		out.Close()
		return fmt.Errorf("copy failed: %w", err)
	}
	if err := out.Sync(); err != nil {
		out.Close()
		return fmt.Errorf("sync failed: %w", err)
	}
	return out.Close()
}

// EnsureDir creates dir and any missing parents below root. It returns the
// directories it created, outermost first. An existing directory is not an
// error; an existing non-directory is.
func EnsureDir(fs afero.Fs, root, dir string) ([]string, error) {
	rel, err := filepath.Rel(root, dir)
	if err != nil {
		return nil, err
	}
	if strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("%s is outside %s", dir, root)
	}

	var missing []string
	current := root
	if rel != "." {
		for _, part := range strings.Split(rel, string(filepath.Separator)) {
			current = filepath.Join(current, part)
			info, err := lstat(fs, current)
			if err == nil && info.Mode()&os.ModeSymlink != 0 {
				info, err = fs.Stat(current)
			}
			if err == nil {
				if !info.IsDir() {
					return nil, NewFileError("mkdir", current, syscall.ENOTDIR)
				}
				continue
			}
			if !os.IsNotExist(err) {
				return nil, NewFileError("mkdir", current, err)
			}
			missing = append(missing, current)
		}
	}

	if len(missing) == 0 {
		return nil, nil
	}
	if err := fs.MkdirAll(dir, 0755); err != nil {
		return nil, NewFileError("mkdir", dir, err)
	}
	return missing, nil
}
