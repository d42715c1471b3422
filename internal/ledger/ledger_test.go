package ledger

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fenilsonani/sortdir/internal/testutil"
)

// =============================================================================
// Ledger Tests
// =============================================================================

func TestNewLedger(t *testing.T) {
	l := New("/data/downloads")

	if l.RunID == "" {
		t.Error("RunID should be set")
	}
	if l.Directory != "/data/downloads" {
		t.Errorf("Directory = %s", l.Directory)
	}
	if !l.Empty() {
		t.Error("new ledger should be empty")
	}
	if New("/x").RunID == l.RunID {
		t.Error("run IDs should be unique")
	}
}

func TestAppendKeepsOrder(t *testing.T) {
	l := New("/d")
	l.Append(Record{Original: "/d/a", Destination: "/d/X/a"})
	l.Append(Record{Original: "/d/b", Destination: "/d/X/b"})

	if l.Empty() {
		t.Fatal("ledger should not be empty")
	}
	if l.Records[0].Original != "/d/a" || l.Records[1].Original != "/d/b" {
		t.Errorf("records out of order: %+v", l.Records)
	}
}

func TestAddCreatedDirsDedupes(t *testing.T) {
	l := New("/d")
	l.AddCreatedDirs("/d/Images", "/d/Documents")
	l.AddCreatedDirs("/d/Documents", "/d/Documents/PDFs")

	want := []string{"/d/Images", "/d/Documents", "/d/Documents/PDFs"}
	if len(l.CreatedDirs) != len(want) {
		t.Fatalf("CreatedDirs = %v, want %v", l.CreatedDirs, want)
	}
	for i := range want {
		if l.CreatedDirs[i] != want[i] {
			t.Errorf("CreatedDirs[%d] = %s, want %s", i, l.CreatedDirs[i], want[i])
		}
	}
}

func TestNilLedgerIsEmpty(t *testing.T) {
	var l *Ledger
	if !l.Empty() {
		t.Error("nil ledger should be empty")
	}
}

// =============================================================================
// Store Tests
// =============================================================================

func TestStoreSaveLoad(t *testing.T) {
	f := testutil.NewFixture(t)
	store := NewStore(f.StateDir)

	l := New(f.RootDir)
	l.Append(Record{Original: f.Path("a.txt"), Destination: f.Path("Documents", "a.txt"), Size: 3})
	l.AddCreatedDirs(f.Path("Documents"))

	if err := store.Save(l); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if loaded.RunID != l.RunID || loaded.Directory != l.Directory {
		t.Errorf("loaded header mismatch: %+v", loaded)
	}
	if len(loaded.Records) != 1 || loaded.Records[0] != l.Records[0] {
		t.Errorf("loaded records mismatch: %+v", loaded.Records)
	}
	if len(loaded.CreatedDirs) != 1 {
		t.Errorf("loaded dirs mismatch: %v", loaded.CreatedDirs)
	}
	if !loaded.CreatedAt.Equal(l.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", loaded.CreatedAt, l.CreatedAt)
	}
}

func TestStoreLoadMissing(t *testing.T) {
	store := NewStore(t.TempDir())

	l, err := store.Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if l != nil {
		t.Errorf("expected nil ledger, got %+v", l)
	}
}

func TestStoreLoadCorrupt(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := NewStore(dir).Load(); err == nil {
		t.Error("expected error for corrupt ledger")
	}
}

func TestStoreSaveSupersedes(t *testing.T) {
	store := NewStore(t.TempDir())

	first := New("/first")
	first.Append(Record{Original: "/first/a", Destination: "/first/X/a"})
	second := New("/second")
	second.Append(Record{Original: "/second/b", Destination: "/second/X/b"})

	if err := store.Save(first); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(second); err != nil {
		t.Fatal(err)
	}

	loaded, err := store.Load()
	if err != nil {
		t.Fatal(err)
	}
	if loaded.RunID != second.RunID || len(loaded.Records) != 1 {
		t.Errorf("expected only the second ledger, got %+v", loaded)
	}

	entries, _ := os.ReadDir(filepath.Dir(store.Path()))
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestStoreClear(t *testing.T) {
	store := NewStore(t.TempDir())
	if err := store.Save(New("/d")); err != nil {
		t.Fatal(err)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if l, _ := store.Load(); l != nil {
		t.Error("ledger should be gone after Clear")
	}
	if err := store.Clear(); err != nil {
		t.Errorf("clearing an empty store should succeed: %v", err)
	}
}

func TestStoreLockExclusive(t *testing.T) {
	dir := t.TempDir()
	a := NewStore(dir)
	b := NewStore(dir)

	if err := a.Lock(context.Background()); err != nil {
		t.Fatalf("first Lock failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	if err := b.Lock(ctx); !errors.Is(err, ErrLocked) {
		t.Errorf("second Lock should fail with ErrLocked, got %v", err)
	}

	if err := a.Unlock(); err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	if err := b.Lock(context.Background()); err != nil {
		t.Errorf("Lock after Unlock failed: %v", err)
	}
	b.Unlock()
}
