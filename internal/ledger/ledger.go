// Package ledger records the moves of the most recent organization pass so
// they can be reverted.
package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
)

// FileName is the ledger slot inside the state directory
const FileName = "last-run.json"

// ErrLocked is returned when another process holds the ledger slot
var ErrLocked = errors.New("ledger is locked by another sortdir process")

// Record is one completed move
type Record struct {
	Original    string `json:"original"`
	Destination string `json:"destination"`
	Size        int64  `json:"size"`
}

// Ledger holds the moves of a single pass, in completion order
type Ledger struct {
	RunID       string    `json:"run_id"`
	Directory   string    `json:"directory"`
	CreatedAt   time.Time `json:"created_at"`
	Records     []Record  `json:"records"`
	CreatedDirs []string  `json:"created_dirs"`
}

// New creates an empty ledger for a pass over dir
func New(dir string) *Ledger {
	return &Ledger{
		RunID:       uuid.NewString(),
		Directory:   dir,
		CreatedAt:   time.Now(),
		Records:     []Record{},
		CreatedDirs: []string{},
	}
}

// Append adds a record. Callers serialize access.
func (l *Ledger) Append(r Record) {
	l.Records = append(l.Records, r)
}

// AddCreatedDirs remembers directories the pass created, skipping ones
// already known
func (l *Ledger) AddCreatedDirs(dirs ...string) {
	for _, d := range dirs {
		known := false
		for _, existing := range l.CreatedDirs {
			if existing == d {
				known = true
				break
			}
		}
		if !known {
			l.CreatedDirs = append(l.CreatedDirs, d)
		}
	}
}

// Empty reports whether the ledger holds no moves
func (l *Ledger) Empty() bool {
	return l == nil || len(l.Records) == 0
}

// Store persists one ledger at a fixed path
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore creates a store for the slot in stateDir
func NewStore(stateDir string) *Store {
	path := filepath.Join(stateDir, FileName)
	return &Store{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Path returns the ledger file path
func (s *Store) Path() string {
	return s.path
}

// Lock takes the cross-process lock on the slot, retrying until ctx is done
func (s *Store) Lock(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if ok, err := s.lock.TryLock(); err != nil {
		return fmt.Errorf("acquire ledger lock: %w", err)
	} else if ok {
		return nil
	}

	ok, err := s.lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		if ctx.Err() != nil {
			return ErrLocked
		}
		return fmt.Errorf("acquire ledger lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

// Unlock releases the slot lock
func (s *Store) Unlock() error {
	return s.lock.Unlock()
}

// Save replaces the stored ledger. The file is written to a temporary name,
// synced and renamed over the slot, so readers see the old or the new
// ledger and never a mix.
func (s *Store) Save(l *Ledger) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	data, err := json.MarshalIndent(l, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ledger: %w", err)
	}

	tmp, err := os.CreateTemp(dir, FileName+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create ledger file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close ledger: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace ledger: %w", err)
	}

	return nil
}

// Load returns the stored ledger, or nil when there is none
func (s *Store) Load() (*Ledger, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ledger: %w", err)
	}
	if len(data) == 0 {
		return nil, nil
	}

	var l Ledger
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("failed to parse ledger %s: %w", s.path, err)
	}
	return &l, nil
}

// Clear removes the stored ledger
func (s *Store) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear ledger: %w", err)
	}
	return nil
}
