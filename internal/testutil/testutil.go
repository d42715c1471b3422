// Package testutil provides test helpers and fixtures for sortdir tests.
// All file operations use t.TempDir() for safe, isolated testing.
package testutil

import (
	"crypto/rand"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"testing"
	"time"
)

// TestFixture holds a target directory to organize and a separate state
// directory for the undo ledger and log
type TestFixture struct {
	T        *testing.T
	RootDir  string // Directory being organized (auto-cleaned)
	StateDir string // Ledger and log location, outside RootDir
}

// NewFixture creates a new test fixture
func NewFixture(t *testing.T) *TestFixture {
	t.Helper()

	base := t.TempDir()

	f := &TestFixture{
		T:        t,
		RootDir:  filepath.Join(base, "target"),
		StateDir: filepath.Join(base, "state"),
	}

	for _, dir := range []string{f.RootDir, f.StateDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatalf("failed to create directory %s: %v", dir, err)
		}
	}

	return f
}

// =============================================================================
// File Creation Helpers
// =============================================================================

// CreateFile creates a file with specified content and returns its path
func (f *TestFixture) CreateFile(relPath string, content []byte) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	dir := filepath.Dir(fullPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		f.T.Fatalf("failed to create file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateFiles creates one file per entry of name to content
func (f *TestFixture) CreateFiles(files map[string]string) {
	f.T.Helper()
	for name, content := range files {
		f.CreateFile(name, []byte(content))
	}
}

// CreateFileWithAge creates a file and sets its modification time to the past
func (f *TestFixture) CreateFileWithAge(relPath string, content []byte, age time.Duration) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	oldTime := time.Now().Add(-age)

	if err := os.Chtimes(fullPath, oldTime, oldTime); err != nil {
		f.T.Fatalf("failed to set file time for %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateRandomFile creates a file with random content
func (f *TestFixture) CreateRandomFile(relPath string, size int) string {
	f.T.Helper()
	content := make([]byte, size)
	rand.Read(content)
	return f.CreateFile(relPath, content)
}

// CreateFileWithMode creates a file with specific permissions
func (f *TestFixture) CreateFileWithMode(relPath string, content []byte, mode os.FileMode) string {
	f.T.Helper()

	fullPath := f.CreateFile(relPath, content)
	if err := os.Chmod(fullPath, mode); err != nil {
		f.T.Fatalf("failed to chmod file %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateNoPermissionFile creates a file with no permissions (000)
func (f *TestFixture) CreateNoPermissionFile(relPath string, content []byte) string {
	f.T.Helper()
	path := f.CreateFileWithMode(relPath, content, 0000)
	f.T.Cleanup(func() {
		os.Chmod(path, 0644)
	})
	return path
}

// =============================================================================
// Directory Helpers
// =============================================================================

// CreateDir creates a directory and returns its path
func (f *TestFixture) CreateDir(relPath string) string {
	f.T.Helper()

	fullPath := filepath.Join(f.RootDir, relPath)
	if err := os.MkdirAll(fullPath, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", fullPath, err)
	}

	return fullPath
}

// CreateReadOnlyDir creates a read-only directory (files inside can't be moved out)
func (f *TestFixture) CreateReadOnlyDir(relPath string) string {
	f.T.Helper()

	dirPath := f.CreateDir(relPath)
	if err := os.Chmod(dirPath, 0555); err != nil {
		f.T.Fatalf("failed to chmod directory %s: %v", dirPath, err)
	}

	// Restore permissions so TempDir cleanup works
	f.T.Cleanup(func() {
		os.Chmod(dirPath, 0755)
	})

	return dirPath
}

// =============================================================================
// Symlink Helpers
// =============================================================================

// CreateSymlink creates a symbolic link
func (f *TestFixture) CreateSymlink(target, linkPath string) string {
	f.T.Helper()

	fullLinkPath := filepath.Join(f.RootDir, linkPath)
	dir := filepath.Dir(fullLinkPath)

	if err := os.MkdirAll(dir, 0755); err != nil {
		f.T.Fatalf("failed to create directory %s: %v", dir, err)
	}

	if err := os.Symlink(target, fullLinkPath); err != nil {
		f.T.Fatalf("failed to create symlink %s -> %s: %v", fullLinkPath, target, err)
	}

	return fullLinkPath
}

// CreateBrokenSymlink creates a symlink pointing to a non-existent target
func (f *TestFixture) CreateBrokenSymlink(linkPath string) string {
	f.T.Helper()
	return f.CreateSymlink(filepath.Join(f.StateDir, "nonexistent", "target"), linkPath)
}

// =============================================================================
// Path Helpers
// =============================================================================

// Path returns the full path for a relative path within the fixture
func (f *TestFixture) Path(relPath ...string) string {
	return filepath.Join(append([]string{f.RootDir}, relPath...)...)
}

// RelPath returns the relative path from the fixture root
func (f *TestFixture) RelPath(fullPath string) string {
	rel, _ := filepath.Rel(f.RootDir, fullPath)
	return rel
}

// =============================================================================
// Assertion Helpers
// =============================================================================

// FileExists checks if a file exists
func (f *TestFixture) FileExists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil
}

// AssertFileExists fails the test if the file doesn't exist
func (f *TestFixture) AssertFileExists(path string) {
	f.T.Helper()
	if !f.FileExists(path) {
		f.T.Errorf("expected file to exist: %s", path)
	}
}

// AssertFileNotExists fails the test if the file exists
func (f *TestFixture) AssertFileNotExists(path string) {
	f.T.Helper()
	if f.FileExists(path) {
		f.T.Errorf("expected file to not exist: %s", path)
	}
}

// AssertFileContent fails if path does not hold exactly content
func (f *TestFixture) AssertFileContent(path string, content string) {
	f.T.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		f.T.Errorf("failed to read %s: %v", path, err)
		return
	}
	if string(data) != content {
		f.T.Errorf("file %s has content %q, want %q", path, data, content)
	}
}

// AssertFileMode checks if file has expected permissions
func (f *TestFixture) AssertFileMode(path string, expectedMode os.FileMode) {
	f.T.Helper()
	info, err := os.Stat(path)
	if err != nil {
		f.T.Errorf("failed to stat %s: %v", path, err)
		return
	}
	if actualMode := info.Mode().Perm(); actualMode != expectedMode {
		f.T.Errorf("file %s has mode %o, want %o", path, actualMode, expectedMode)
	}
}

// =============================================================================
// Tree Helpers
// =============================================================================

// Snapshot returns every regular file under RootDir as relative path -> content
func (f *TestFixture) Snapshot() map[string]string {
	f.T.Helper()

	tree := make(map[string]string)
	err := filepath.Walk(f.RootDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		tree[f.RelPath(path)] = string(data)
		return nil
	})
	if err != nil {
		f.T.Fatalf("failed to snapshot %s: %v", f.RootDir, err)
	}
	return tree
}

// Entries returns the sorted names of everything directly inside RootDir,
// with a trailing slash on directories
func (f *TestFixture) Entries() []string {
	f.T.Helper()

	entries, err := os.ReadDir(f.RootDir)
	if err != nil {
		f.T.Fatalf("failed to read %s: %v", f.RootDir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DiffTrees describes the differences between two snapshots, or returns ""
func DiffTrees(want, got map[string]string) string {
	var diffs []string
	for path, content := range want {
		other, ok := got[path]
		switch {
		case !ok:
			diffs = append(diffs, "missing "+path)
		case other != content:
			diffs = append(diffs, "changed "+path)
		}
	}
	for path := range got {
		if _, ok := want[path]; !ok {
			diffs = append(diffs, "unexpected "+path)
		}
	}
	sort.Strings(diffs)
	return strings.Join(diffs, ", ")
}

// =============================================================================
// Utility Functions
// =============================================================================

// IsRoot returns true if running as root/admin
func IsRoot() bool {
	return os.Geteuid() == 0
}

// SkipIfRoot skips the test if running as root
func SkipIfRoot(t *testing.T) {
	t.Helper()
	if IsRoot() {
		t.Skip("skipping test when running as root")
	}
}

// IsMacOS returns true if running on macOS
func IsMacOS() bool {
	return runtime.GOOS == "darwin"
}
