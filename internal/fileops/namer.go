package fileops

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/afero"
)

// MaxCollisionAttempts bounds the numeric suffixes tried for one name
const MaxCollisionAttempts = 10000

// Namer hands out destination paths that do not overwrite existing files.
// Names it returns stay reserved until released, so concurrent workers in
// this process never receive the same path. Other processes creating files
// between the check and the move are not guarded against.
type Namer struct {
	fs       afero.Fs
	limit    int
	mu       sync.Mutex
	reserved map[string]struct{}
}

// NewNamer creates a namer over fs
func NewNamer(fs afero.Fs) *Namer {
	return &Namer{
		fs:       fs,
		limit:    MaxCollisionAttempts,
		reserved: make(map[string]struct{}),
	}
}

// Uniquify returns desired when it is free, otherwise the first free
// "stem (n)ext" for n = 1, 2, ... The returned path is reserved.
func (n *Namer) Uniquify(desired string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	dir := filepath.Dir(desired)
	stem, ext := SplitName(filepath.Base(desired))

	candidate := desired
	for i := 1; i <= n.limit+1; i++ {
		taken, err := n.taken(candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			n.reserved[candidate] = struct{}{}
			return candidate, nil
		}
		candidate = filepath.Join(dir, fmt.Sprintf("%s (%d)%s", stem, i, ext))
	}

	return "", &FileError{
		Op:     "rename",
		Path:   desired,
		Reason: ReasonCollisionExhausted,
		Err:    ErrCollisionExhausted,
	}
}

// Release drops a reservation made by Uniquify
func (n *Namer) Release(path string) {
	n.mu.Lock()
	delete(n.reserved, path)
	n.mu.Unlock()
}

func (n *Namer) taken(path string) (bool, error) {
	if _, ok := n.reserved[path]; ok {
		return true, nil
	}
	// A dangling symlink still occupies the name
	_, err := lstat(n.fs, path)
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// SplitName splits a file name into stem and extension. Dotfiles have no
// extension.
func SplitName(name string) (stem, ext string) {
	ext = filepath.Ext(name)
	if ext == name || strings.TrimSuffix(name, ext) == "" {
		return name, ""
	}
	return strings.TrimSuffix(name, ext), ext
}

func lstat(fs afero.Fs, path string) (os.FileInfo, error) {
	if l, ok := fs.(afero.Lstater); ok {
		info, _, err := l.LstatIfPossible(path)
		return info, err
	}
	return fs.Stat(path)
}
