// Package duplicates finds files with byte-identical content using a
// size, sample hash, full hash funnel.
package duplicates

import (
	"context"
	"fmt"
	"hash"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/scanner"
	"github.com/fenilsonani/sortdir/pkg/utils"
	"github.com/panjf2000/ants/v2"
	"github.com/spf13/afero"
)

// Defaults for Options fields left zero
const (
	DefaultSampleSize = 16 * 1024
	MaxWorkers        = 32
)

// Options tunes the detector
type Options struct {
	SampleSize int64  // bytes hashed in the sample stage
	MinSize    int64  // smaller files are never candidates
	SampleHash string // utils.AlgoSHA256 or utils.AlgoXXHash
	Workers    int    // 0 = min(32, 4×NumCPU)
}

// Group is a set of files with identical content. The first file, in
// directory listing order, is the keeper.
type Group struct {
	Hash  string
	Size  int64
	Files []scanner.FileEntry
}

// Keeper returns the file that stays in place
func (g Group) Keeper() scanner.FileEntry {
	return g.Files[0]
}

// Extras returns every file except the keeper
func (g Group) Extras() []scanner.FileEntry {
	return g.Files[1:]
}

// Wasted returns the bytes taken by the extras
func (g Group) Wasted() int64 {
	return g.Size * int64(len(g.Files)-1)
}

// Result holds the confirmed groups and the files that could not be read
type Result struct {
	Groups []Group
	Errors []*fileops.FileError
	Hashed int // files read in the sample stage
}

// DuplicatePaths returns the set of non-keeper paths
func (r *Result) DuplicatePaths() map[string]bool {
	out := make(map[string]bool)
	for _, g := range r.Groups {
		for _, f := range g.Extras() {
			out[f.Path] = true
		}
	}
	return out
}

// Detector finds duplicate groups among scanned files
type Detector struct {
	fs        afero.Fs
	opts      Options
	newSample func() hash.Hash
	progress  *progress.ProgressReporter
}

// New creates a detector. An unknown sample algorithm is an error.
func New(fs afero.Fs, opts Options, pr *progress.ProgressReporter) (*Detector, error) {
	newSample, ok := utils.NewHasher(opts.SampleHash)
	if !ok {
		return nil, fmt.Errorf("unsupported sample hash %q", opts.SampleHash)
	}
	if opts.SampleHash == "" {
		opts.SampleHash = utils.AlgoSHA256
	}
	if opts.SampleSize <= 0 {
		opts.SampleSize = DefaultSampleSize
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers()
	}
	return &Detector{fs: fs, opts: opts, newSample: newSample, progress: pr}, nil
}

// DefaultWorkers returns the hash pool size for this machine
func DefaultWorkers() int {
	return min(MaxWorkers, 4*runtime.NumCPU())
}

// Find returns the duplicate groups among entries. Unreadable files are
// reported in Result.Errors and treated as unique. Cancellation aborts the
// search and returns the context error.
func (d *Detector) Find(ctx context.Context, entries []scanner.FileEntry) (*Result, error) {
	result := &Result{}

	// Stage 1: size buckets, no I/O
	var candidates []scanner.FileEntry
	for _, bucket := range bucketBySize(entries, d.opts.MinSize) {
		candidates = append(candidates, bucket...)
	}
	if len(candidates) == 0 {
		return result, nil
	}

	tracker := d.progress.Track(progress.PhaseHashing, filepath.Dir(candidates[0].Path), len(candidates))

	// Stage 2: sample hash
	samples, errs, err := d.hashAll(ctx, candidates, tracker, func(e scanner.FileEntry) (string, error) {
		return utils.HashFileSample(d.fs, e.Path, d.opts.SampleSize, d.newSample)
	})
	if err != nil {
		return nil, err
	}
	result.Hashed = len(candidates)

	sampled := make([]hashed, 0, len(candidates))
	for i, e := range candidates {
		if errs[i] != nil {
			result.Errors = append(result.Errors, fileops.NewFileError("hash", e.Path, errs[i]))
			continue
		}
		sampled = append(sampled, hashed{entry: e, digest: samples[i]})
	}

	// Stage 3: full hash, only for files sharing size and sample
	var collided []hashed
	for _, bucket := range groupByDigest(sampled) {
		if len(bucket) >= 2 {
			collided = append(collided, bucket...)
		}
	}

	fullEntries := make([]scanner.FileEntry, len(collided))
	for i, h := range collided {
		fullEntries[i] = h.entry
	}
	fulls, errs, err := d.hashAll(ctx, fullEntries, nil, func(e scanner.FileEntry) (string, error) {
		return d.fullHash(e)
	})
	if err != nil {
		return nil, err
	}

	confirmed := make([]hashed, 0, len(collided))
	for i, h := range collided {
		if errs[i] != nil {
			result.Errors = append(result.Errors, fileops.NewFileError("hash", h.entry.Path, errs[i]))
			continue
		}
		// A whole-file sha256 sample is already the full digest
		digest := fulls[i]
		if digest == "" {
			digest = h.digest
		}
		confirmed = append(confirmed, hashed{entry: h.entry, digest: digest})
	}

	for _, bucket := range groupByDigest(confirmed) {
		if len(bucket) < 2 {
			continue
		}
		g := Group{Hash: bucket[0].digest, Size: bucket[0].entry.Size}
		for _, h := range bucket {
			g.Files = append(g.Files, h.entry)
		}
		sort.Slice(g.Files, func(i, j int) bool { return g.Files[i].Index < g.Files[j].Index })
		result.Groups = append(result.Groups, g)
	}
	sort.Slice(result.Groups, func(i, j int) bool {
		return result.Groups[i].Keeper().Index < result.Groups[j].Keeper().Index
	})

	return result, nil
}

type hashed struct {
	entry  scanner.FileEntry
	digest string
}

// groupByDigest buckets by (size, digest) keeping first-seen bucket order
func groupByDigest(items []hashed) [][]hashed {
	index := make(map[string]int)
	var buckets [][]hashed
	for _, h := range items {
		key := fmt.Sprintf("%d:%s", h.entry.Size, h.digest)
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], h)
	}
	return buckets
}

// bucketBySize returns size buckets with at least two members, in listing order
func bucketBySize(entries []scanner.FileEntry, minSize int64) [][]scanner.FileEntry {
	index := make(map[int64]int)
	var buckets [][]scanner.FileEntry
	for _, e := range entries {
		if e.Size < minSize {
			continue
		}
		i, ok := index[e.Size]
		if !ok {
			i = len(buckets)
			index[e.Size] = i
			buckets = append(buckets, nil)
		}
		buckets[i] = append(buckets[i], e)
	}

	out := buckets[:0]
	for _, b := range buckets {
		if len(b) >= 2 {
			out = append(out, b)
		}
	}
	return out
}

// fullHash returns the SHA-256 of the whole file, or "" when the sample
// stage already covered the whole file with SHA-256
func (d *Detector) fullHash(e scanner.FileEntry) (string, error) {
	if d.opts.SampleHash == utils.AlgoSHA256 && e.Size <= d.opts.SampleSize {
		return "", nil
	}
	return utils.HashFile(d.fs, e.Path)
}

// hashAll runs fn over entries in a bounded ants pool. Results are indexed
// like entries.
func (d *Detector) hashAll(ctx context.Context, entries []scanner.FileEntry, tracker *progress.Tracker, fn func(scanner.FileEntry) (string, error)) ([]string, []error, error) {
	digests := make([]string, len(entries))
	errs := make([]error, len(entries))
	if len(entries) == 0 {
		return digests, errs, nil
	}

	pool, err := ants.NewPool(min(d.opts.Workers, len(entries)))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create hash pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range entries {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			digests[i], errs[i] = fn(entries[i])
			if tracker != nil {
				tracker.Step(entries[i].Path, entries[i].Size, errs[i])
			}
		})
		if submitErr != nil {
			wg.Done()
			errs[i] = submitErr
		}
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	return digests, errs, nil
}
