package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/afero"
)

// HashChunkSize is the read buffer used when streaming a file into a hash
const HashChunkSize = 64 * 1024

// Hash algorithm names accepted by NewHasher
const (
	AlgoSHA256 = "sha256"
	AlgoXXHash = "xxhash"
)

// NewHasher returns a hash constructor for the named algorithm
func NewHasher(algo string) (func() hash.Hash, bool) {
	switch algo {
	case AlgoSHA256, "":
		return sha256.New, true
	case AlgoXXHash:
		return func() hash.Hash { return xxhash.New() }, true
	default:
		return nil, false
	}
}

// HashFile computes the SHA256 hash of a whole file, streaming it in fixed-size chunks
func HashFile(fs afero.Fs, path string) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	h := sha256.New()
	buf := make([]byte, HashChunkSize)
	if _, err := io.CopyBuffer(h, file, buf); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// HashFileSample hashes at most the first n bytes of a file.
// Files shorter than n are hashed in full.
func HashFileSample(fs afero.Fs, path string, n int64, newHash func() hash.Hash) (string, error) {
	file, err := fs.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if newHash == nil {
		newHash = sha256.New
	}
	h := newHash()
	if _, err := io.Copy(h, io.LimitReader(file, n)); err != nil {
		return "", err
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}
