package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"

	"github.com/spf13/afero"
)

// =============================================================================
// ParseSize Tests
// =============================================================================

func TestParseSize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected int64
	}{
		{"bytes", "512", 512},
		{"bytes unit", "1B", 1},
		{"zero bytes", "0B", 0},
		{"kilobytes", "16KB", 16 * 1024},
		{"short unit", "16k", 16 * 1024},
		{"binary unit", "4KiB", 4 * 1024},
		{"megabytes with space", "1 MB", 1024 * 1024},
		{"fractional", "1.5MB", 1536 * 1024},
		{"gigabytes", "2GB", 2 * 1024 * 1024 * 1024},
		{"padded", "  8KB ", 8 * 1024},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSize(tt.input)
			if err != nil {
				t.Fatalf("ParseSize(%q) returned error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseSize(%q) = %d, want %d", tt.input, got, tt.expected)
			}
		})
	}
}

func TestParseSizeInvalid(t *testing.T) {
	for _, input := range []string{"", "KB", "abc", "10XB", "1.2.3MB"} {
		if _, err := ParseSize(input); err == nil {
			t.Errorf("ParseSize(%q) expected error", input)
		}
	}
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		input    int64
		expected string
	}{
		{-1, "0 B"},
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.0 KiB"},
		{1536, "1.5 KiB"},
	}

	for _, tt := range tests {
		if got := FormatBytes(tt.input); got != tt.expected {
			t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, got, tt.expected)
		}
	}
}

// =============================================================================
// Hash Tests
// =============================================================================

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func TestHashFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	content := []byte("the quick brown fox")
	if err := afero.WriteFile(fs, "/a.txt", content, 0644); err != nil {
		t.Fatal(err)
	}

	got, err := HashFile(fs, "/a.txt")
	if err != nil {
		t.Fatalf("HashFile failed: %v", err)
	}
	if got != sha256Hex(content) {
		t.Errorf("HashFile = %s, want %s", got, sha256Hex(content))
	}
}

func TestHashFileMissing(t *testing.T) {
	if _, err := HashFile(afero.NewMemMapFs(), "/missing"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestHashFileSample(t *testing.T) {
	fs := afero.NewMemMapFs()
	if err := afero.WriteFile(fs, "/a.bin", []byte("abcdefXXXX"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(fs, "/b.bin", []byte("abcdefYYYY"), 0644); err != nil {
		t.Fatal(err)
	}

	newHash, ok := NewHasher(AlgoSHA256)
	if !ok {
		t.Fatal("sha256 should be a known algorithm")
	}

	a, err := HashFileSample(fs, "/a.bin", 6, newHash)
	if err != nil {
		t.Fatal(err)
	}
	b, err := HashFileSample(fs, "/b.bin", 6, newHash)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("files sharing a prefix should have equal sample hashes")
	}
	if a != sha256Hex([]byte("abcdef")) {
		t.Errorf("sample hash should cover exactly the prefix")
	}

	whole, err := HashFileSample(fs, "/a.bin", 1024, newHash)
	if err != nil {
		t.Fatal(err)
	}
	full, _ := HashFile(fs, "/a.bin")
	if whole != full {
		t.Error("sample larger than file should equal the full hash")
	}
}

func TestNewHasher(t *testing.T) {
	if _, ok := NewHasher(AlgoXXHash); !ok {
		t.Error("xxhash should be a known algorithm")
	}
	if _, ok := NewHasher("md4"); ok {
		t.Error("md4 should be rejected")
	}
}
