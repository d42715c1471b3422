package utils

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
)

const (
	B  = 1
	KB = 1024 * B
	MB = 1024 * KB
	GB = 1024 * MB
	TB = 1024 * GB
)

// FormatBytes converts bytes to human-readable format
func FormatBytes(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}

// ParseSize converts a human-readable size such as "16KB" or "1.5 MB" to bytes.
// Units are binary (1KB = 1024 bytes); a bare number is taken as bytes.
func ParseSize(size string) (int64, error) {
	s := strings.TrimSpace(size)
	if s == "" {
		return 0, fmt.Errorf("invalid size format: %q", size)
	}

	i := 0
	for i < len(s) && (s[i] >= '0' && s[i] <= '9' || s[i] == '.') {
		i++
	}
	if i == 0 {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}

	value, err := strconv.ParseFloat(s[:i], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size format: %s", size)
	}

	unit := strings.ToUpper(strings.TrimSpace(s[i:]))
	switch unit {
	case "", "B":
		return int64(value), nil
	case "KB", "K", "KIB":
		return int64(value * KB), nil
	case "MB", "M", "MIB":
		return int64(value * MB), nil
	case "GB", "G", "GIB":
		return int64(value * GB), nil
	case "TB", "T", "TIB":
		return int64(value * TB), nil
	default:
		return 0, fmt.Errorf("unknown unit: %s", unit)
	}
}

// SumSizes adds up a slice of sizes
func SumSizes(sizes []int64) int64 {
	var total int64
	for _, size := range sizes {
		total += size
	}
	return total
}
