package security

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator guards the directories a pass may reorganize and the files
// duplicate removal may delete
type PathValidator struct {
	protectedPaths []string
}

// NewPathValidator creates a new PathValidator with default protected paths
// plus any extra absolute paths
func NewPathValidator(extra ...string) *PathValidator {
	pv := &PathValidator{
		protectedPaths: []string{
			// Unix system directories
			"/",
			"/bin",
			"/boot",
			"/dev",
			"/etc",
			"/lib",
			"/lib64",
			"/proc",
			"/root",
			"/sbin",
			"/sys",
			"/usr",
			"/var",
			// macOS system directories
			"/System",
			"/Applications",
			"/Library/System",
		},
	}
	for _, p := range extra {
		pv.AddProtectedPath(p)
	}
	return pv
}

// ValidateTarget checks that dir can be organized: absolute, an existing
// directory, and not a protected system location. It returns the cleaned path.
func (pv *PathValidator) ValidateTarget(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		return "", fmt.Errorf("target directory must be absolute: %s", dir)
	}
	cleanPath := filepath.Clean(dir)

	info, err := os.Stat(cleanPath)
	if err != nil {
		return "", fmt.Errorf("target directory: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("target is not a directory: %s", cleanPath)
	}

	// Check the path as given and as resolved through symlinks
	if err := pv.checkProtectedPaths(cleanPath, "organize"); err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(cleanPath); err == nil && resolved != cleanPath {
		if err := pv.checkProtectedPaths(resolved, "organize"); err != nil {
			return "", err
		}
	}

	return cleanPath, nil
}

// ValidatePathForDeletion performs validation on a file before it is removed
func (pv *PathValidator) ValidatePathForDeletion(path string) error {
	if !filepath.IsAbs(path) {
		return fmt.Errorf("path must be absolute: %s", path)
	}

	// Resolve symlinks so ~/dir/../../etc/passwd style paths are caught
	resolvedPath, err := filepath.EvalSymlinks(path)
	if err != nil {
		if os.IsNotExist(err) {
			resolvedPath = path
		} else {
			return fmt.Errorf("failed to resolve symlinks: %w", err)
		}
	}

	cleanPath := filepath.Clean(resolvedPath)

	if filepath.Clean(path) != path {
		return fmt.Errorf("path contains suspicious elements: %s", path)
	}

	if strings.ContainsAny(cleanPath, "\x00\n\r") {
		return fmt.Errorf("path contains control characters: %q", cleanPath)
	}

	return pv.checkProtectedPaths(cleanPath, "delete")
}

// checkProtectedPaths validates that a path is not in a protected system directory
func (pv *PathValidator) checkProtectedPaths(cleanPath, verb string) error {
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected {
			return fmt.Errorf("refusing to %s protected path: %s", verb, cleanPath)
		}

		// Direct children of a protected directory are off limits too:
		// /usr/foo is refused, /usr/local/share/foo is not
		if strings.HasPrefix(cleanPath, protected+"/") {
			rel, _ := filepath.Rel(protected, cleanPath)
			if !strings.Contains(rel, "/") {
				return fmt.Errorf("refusing to %s critical system path: %s", verb, cleanPath)
			}
		}
	}

	return nil
}

// IsProtectedPath checks if a path is a protected system path
func (pv *PathValidator) IsProtectedPath(path string) bool {
	cleanPath := filepath.Clean(path)
	for _, protected := range pv.protectedPaths {
		if cleanPath == protected || strings.HasPrefix(cleanPath, protected+"/") {
			return true
		}
	}
	return false
}

// AddProtectedPath adds a custom protected path
func (pv *PathValidator) AddProtectedPath(path string) {
	cleanPath := filepath.Clean(path)
	for _, p := range pv.protectedPaths {
		if p == cleanPath {
			return
		}
	}
	pv.protectedPaths = append(pv.protectedPaths, cleanPath)
}

// ValidateGlobPattern validates that an exclude pattern is a usable basename glob
func ValidateGlobPattern(pattern string) error {
	if strings.Contains(pattern, "..") {
		return fmt.Errorf("glob pattern contains directory traversal: %s", pattern)
	}
	if strings.ContainsRune(pattern, '/') {
		return fmt.Errorf("glob pattern must match a file name, not a path: %s", pattern)
	}

	// Try to match the pattern to ensure it's valid
	if _, err := filepath.Match(pattern, "test"); err != nil {
		return fmt.Errorf("invalid glob pattern: %w", err)
	}

	return nil
}
