package utils

import (
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/term"
)

const (
	// DefaultTerminalWidth is used when the output is not a terminal
	DefaultTerminalWidth = 80
	// MinTerminalWidth is the narrowest layout the views adapt to
	MinTerminalWidth = 40
)

// TerminalWidth returns the column count of f, or DefaultTerminalWidth
func TerminalWidth(f *os.File) int {
	if f == nil {
		return DefaultTerminalWidth
	}
	if w, _, err := term.GetSize(int(f.Fd())); err == nil && w > 0 {
		return max(w, MinTerminalWidth)
	}
	return DefaultTerminalWidth
}

// IsTerminal reports whether f is attached to a terminal
func IsTerminal(f *os.File) bool {
	return f != nil && term.IsTerminal(int(f.Fd()))
}

// TruncatePath shortens a path to maxWidth, keeping the file name and
// dropping directories from the middle
func TruncatePath(path string, maxWidth int) string {
	if len(path) <= maxWidth {
		return path
	}
	if maxWidth < 10 {
		return "..."
	}

	dir, file := filepath.Split(path)
	if len(file) > maxWidth-4 {
		return "..." + file[len(file)-(maxWidth-4):]
	}

	available := maxWidth - len(file) - 3
	dir = filepath.Clean(dir)
	if available < 10 {
		return ".../" + file
	}

	sep := string(filepath.Separator)
	parts := strings.Split(dir, sep)
	if len(parts) <= 2 {
		return "..." + dir[len(dir)-available:] + sep + file
	}

	first := parts[0]
	if first == "" {
		first = sep + parts[1]
	}
	last := parts[len(parts)-1]
	if len(first)+len(last)+5 <= available {
		return first + sep + "..." + sep + last + sep + file
	}
	return "..." + sep + last + sep + file
}

// TruncateString truncates a string to maxLen, adding ellipsis if needed
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen < 3 {
		return "..."
	}
	return s[:maxLen-3] + "..."
}
