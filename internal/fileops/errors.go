package fileops

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"strings"
	"syscall"
)

// ErrCollisionExhausted is returned when no free name is found within
// MaxCollisionAttempts suffixes
var ErrCollisionExhausted = errors.New("collision resolution exhausted")

// ErrorReason categorizes why a file operation failed
type ErrorReason int

const (
	ReasonPermissionDenied ErrorReason = iota
	ReasonFileInUse
	ReasonNotFound
	ReasonIsDirectory
	ReasonCrossDevice
	ReasonCollisionExhausted
	ReasonCancelled
	ReasonUnknown
)

// String returns a human-readable error reason
func (r ErrorReason) String() string {
	switch r {
	case ReasonPermissionDenied:
		return "Permission denied"
	case ReasonFileInUse:
		return "File is in use"
	case ReasonNotFound:
		return "File not found"
	case ReasonIsDirectory:
		return "Is a directory"
	case ReasonCrossDevice:
		return "Cross-device move failed"
	case ReasonCollisionExhausted:
		return "No free file name"
	case ReasonCancelled:
		return "Cancelled"
	case ReasonUnknown:
		return "Unknown error"
	default:
		return "Unspecified error"
	}
}

// FileError reports a failed operation on a single file. It is never fatal
// to a pass; callers collect it as a diagnostic.
type FileError struct {
	Op     string // hash, move, copy, mkdir, delete, restore
	Path   string
	Reason ErrorReason
	Err    error
}

// NewFileError wraps err with its categorized reason. An err that already
// is a *FileError is returned unchanged.
func NewFileError(op, path string, err error) *FileError {
	if err == nil {
		return nil
	}
	var fe *FileError
	if errors.As(err, &fe) {
		return fe
	}
	return &FileError{Op: op, Path: path, Reason: CategorizeError(err), Err: err}
}

// Error implements the error interface
func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %s (%v)", e.Op, e.Path, e.Reason, e.Err)
}

// Unwrap returns the underlying cause
func (e *FileError) Unwrap() error {
	return e.Err
}

// UserMessage returns a user-friendly error message
func (e *FileError) UserMessage() string {
	switch e.Reason {
	case ReasonPermissionDenied:
		return fmt.Sprintf("Permission denied: %s", e.Path)
	case ReasonFileInUse:
		return fmt.Sprintf("File is being used: %s (close the application and try again)", e.Path)
	case ReasonNotFound:
		return fmt.Sprintf("Disappeared before it could be processed: %s", e.Path)
	case ReasonIsDirectory:
		return fmt.Sprintf("Expected a file but found a directory: %s", e.Path)
	case ReasonCrossDevice:
		return fmt.Sprintf("Could not copy across volumes: %s", e.Path)
	case ReasonCollisionExhausted:
		return fmt.Sprintf("Too many files named like %s, skipped", e.Path)
	case ReasonCancelled:
		return fmt.Sprintf("Skipped after cancellation: %s", e.Path)
	default:
		return fmt.Sprintf("Error processing %s: %v", e.Path, e.Err)
	}
}

// CategorizeError maps an error to an ErrorReason
func CategorizeError(err error) ErrorReason {
	switch {
	case err == nil:
		return ReasonUnknown
	case errors.Is(err, ErrCollisionExhausted):
		return ReasonCollisionExhausted
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCancelled
	case errors.Is(err, fs.ErrNotExist):
		return ReasonNotFound
	case errors.Is(err, fs.ErrPermission):
		return ReasonPermissionDenied
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EACCES, syscall.EPERM, syscall.EROFS:
			return ReasonPermissionDenied
		case syscall.EBUSY, syscall.ETXTBSY:
			return ReasonFileInUse
		case syscall.ENOENT:
			return ReasonNotFound
		case syscall.EISDIR:
			return ReasonIsDirectory
		case syscall.EXDEV:
			return ReasonCrossDevice
		}
	}

	return ReasonUnknown
}

// GroupErrors groups file errors by reason
func GroupErrors(errs []*FileError) map[ErrorReason][]*FileError {
	grouped := make(map[ErrorReason][]*FileError)
	for _, err := range errs {
		grouped[err.Reason] = append(grouped[err.Reason], err)
	}
	return grouped
}

// FormatErrorSummary creates a user-friendly summary of errors
func FormatErrorSummary(errs []*FileError) string {
	if len(errs) == 0 {
		return ""
	}

	grouped := GroupErrors(errs)
	reasons := make([]ErrorReason, 0, len(grouped))
	for reason := range grouped {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	var b strings.Builder
	b.WriteString("\nIssues encountered:\n")
	for i, reason := range reasons {
		branch := "├─"
		if i == len(reasons)-1 {
			branch = "└─"
		}
		fmt.Fprintf(&b, "   %s %s: %d files\n", branch, reason, len(grouped[reason]))

		switch reason {
		case ReasonPermissionDenied:
			b.WriteString("   │  └─ Tip: check ownership of the directory\n")
		case ReasonFileInUse:
			b.WriteString("   │  └─ Tip: close applications and retry\n")
		case ReasonCancelled:
			b.WriteString("   │  └─ Tip: run again to finish the remaining files\n")
		}
	}

	return b.String()
}
