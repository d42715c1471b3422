package organizer

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fenilsonani/sortdir/internal/config"
	"github.com/fenilsonani/sortdir/internal/fileops"
	"github.com/fenilsonani/sortdir/internal/ledger"
	"github.com/fenilsonani/sortdir/internal/logger"
	"github.com/fenilsonani/sortdir/internal/progress"
	"github.com/fenilsonani/sortdir/internal/scheduler"
	"github.com/fenilsonani/sortdir/internal/testutil"
)

func newEngine(t *testing.T, f *testutil.TestFixture, mutate ...func(*config.Config)) *Engine {
	t.Helper()
	cfg := config.GetDefault()
	for _, m := range mutate {
		m(cfg)
	}
	e, err := New(Options{Config: cfg, StateDir: f.StateDir})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	return e
}

// =============================================================================
// Organize Tests
// =============================================================================

func TestOrganizeScenario(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{
		"a.txt": "some notes",
		"b.jpg": "jpeg bytes",
		"c.jpg": "jpeg bytes",
	})

	summary, err := newEngine(t, f).Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatalf("Organize failed: %v", err)
	}

	f.AssertFileContent(f.Path("Documents", "Text", "a.txt"), "some notes")
	f.AssertFileContent(f.Path("Images", "b.jpg"), "jpeg bytes")
	f.AssertFileContent(f.Path("Duplicates", "c.jpg"), "jpeg bytes")

	want := map[string]int{"Documents": 1, "Images": 1, "Duplicates": 1}
	if fmt.Sprint(summary.Counts) != fmt.Sprint(want) {
		t.Errorf("Counts = %v, want %v", summary.Counts, want)
	}
	if summary.Moved != 3 || summary.Failed != 0 || summary.DuplicateGroups != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	if summary.TotalBytes() != 30 {
		t.Errorf("TotalBytes = %d, want 30", summary.TotalBytes())
	}
	if got := f.Entries(); fmt.Sprint(got) != "[Documents/ Duplicates/ Images/]" {
		t.Errorf("top level after organize = %v", got)
	}
}

func TestOrganizeCategoryRouting(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{
		"Report.PDF":  "1",
		"sheet.xlsx":  "22",
		"song.mp3":    "333",
		"README":      "4444",
		"data.xyz":    "55555",
		".hidden.txt": "666666",
	})

	summary, err := newEngine(t, f).Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}

	f.AssertFileExists(f.Path("Documents", "PDFs", "Report.PDF"))
	f.AssertFileExists(f.Path("Documents", "Excel", "sheet.xlsx"))
	f.AssertFileExists(f.Path("Music", "song.mp3"))
	f.AssertFileExists(f.Path("NoExtension", "README"))
	f.AssertFileExists(f.Path("Others", "data.xyz"))
	f.AssertFileExists(f.Path(".hidden.txt"))
	if summary.Moved != 5 {
		t.Errorf("Moved = %d, want 5", summary.Moved)
	}
}

func TestOrganizeCollisionWithNumberedName(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("Documents/PDFs/report.pdf", []byte("first"))
	f.CreateFile("Documents/PDFs/report (1).pdf", []byte("second"))
	f.CreateFile("report (1).pdf", []byte("new"))

	if _, err := newEngine(t, f).Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}

	f.AssertFileContent(f.Path("Documents", "PDFs", "report.pdf"), "first")
	f.AssertFileContent(f.Path("Documents", "PDFs", "report (1).pdf"), "second")
	f.AssertFileContent(f.Path("Documents", "PDFs", "report (1) (1).pdf"), "new")
}

func TestOrganizeTwiceIsNoop(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.txt": "a", "b.png": "bb"})
	e := newEngine(t, f)

	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	after := f.Snapshot()
	ledgerBefore, _ := os.ReadFile(e.LedgerPath())

	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatalf("second Organize failed: %v", err)
	}
	if summary.Moved != 0 || summary.Failed != 0 {
		t.Errorf("second pass should do nothing: %+v", summary)
	}
	if diff := testutil.DiffTrees(after, f.Snapshot()); diff != "" {
		t.Errorf("second pass changed the tree: %s", diff)
	}

	ledgerAfter, _ := os.ReadFile(e.LedgerPath())
	if string(ledgerBefore) != string(ledgerAfter) {
		t.Error("an empty pass must not replace the ledger")
	}
}

func TestOrganizeDuplicatesDisabled(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"b.jpg": "same", "c.jpg": "same"})

	e := newEngine(t, f, func(c *config.Config) { c.Duplicates.Enabled = false })
	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}

	if summary.Counts["Images"] != 2 || summary.DuplicateGroups != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	f.AssertFileNotExists(f.Path("Duplicates"))
}

func TestOrganizeEmptyDuplicates(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.txt": "", "b.txt": ""})
	e := newEngine(t, f)

	groups, err := e.FindDuplicates(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Files) != 2 || groups[0].Size != 0 {
		t.Fatalf("unexpected groups: %+v", groups)
	}

	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	f.AssertFileContent(f.Path("Documents", "Text", "a.txt"), "")
	f.AssertFileContent(f.Path("Duplicates", "b.txt"), "")
	if summary.DuplicateGroups != 1 || summary.Counts["Duplicates"] != 1 {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestOrganizeExcludePatterns(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"keep.part": "x", "a.txt": "y"})

	e := newEngine(t, f, func(c *config.Config) { c.ExcludePatterns = []string{"*.part"} })
	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	f.AssertFileExists(f.Path("keep.part"))
	f.AssertFileExists(f.Path("Documents", "Text", "a.txt"))
}

func TestOrganizeDryRun(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.txt": "a", "b.jpg": "b"})
	before := f.Snapshot()

	e := newEngine(t, f, func(c *config.Config) { c.Mover.DryRun = true })
	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}

	if !summary.DryRun || summary.Moved != 2 {
		t.Errorf("unexpected dry-run summary: %+v", summary)
	}
	if diff := testutil.DiffTrees(before, f.Snapshot()); diff != "" {
		t.Errorf("dry run changed the tree: %s", diff)
	}
	if _, err := os.Stat(e.LedgerPath()); !os.IsNotExist(err) {
		t.Error("dry run must not write a ledger")
	}
}

func TestOrganizeCategoryPathBlocked(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("Images", []byte("a file where the folder should be"))
	f.CreateFiles(map[string]string{"a.jpg": "a", "b.txt": "bb"})

	e := newEngine(t, f, func(c *config.Config) { c.ExcludePatterns = []string{"Images"} })
	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatalf("blocked category must not fail the pass: %v", err)
	}

	if summary.Moved != 1 || summary.Failed != 1 {
		t.Errorf("Moved = %d, Failed = %d", summary.Moved, summary.Failed)
	}
	if len(summary.Diagnostics) != 1 || summary.Diagnostics[0].Op != "mkdir" {
		t.Errorf("expected one mkdir diagnostic, got %v", summary.Diagnostics)
	}
	f.AssertFileExists(f.Path("a.jpg"))
	f.AssertFileContent(f.Path("Images"), "a file where the folder should be")
	f.AssertFileExists(f.Path("Documents", "Text", "b.txt"))
}

func TestOrganizeRejectsInvalidTarget(t *testing.T) {
	f := testutil.NewFixture(t)
	e := newEngine(t, f)

	tests := []struct {
		name string
		dir  string
	}{
		{"relative", "relative/dir"},
		{"missing", f.Path("missing")},
		{"file", f.CreateFile("plain.txt", []byte("x"))},
		{"protected", "/etc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := e.Organize(context.Background(), tt.dir); err == nil {
				t.Errorf("expected error for %s", tt.dir)
			}
		})
	}
}

func TestOrganizeStateDirUnusable(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))

	// A file where the state directory should be
	blocked := filepath.Join(f.StateDir, "blocked")
	if err := os.WriteFile(blocked, nil, 0644); err != nil {
		t.Fatal(err)
	}
	e, err := New(Options{Config: config.GetDefault(), StateDir: blocked})
	if err != nil {
		t.Fatal(err)
	}

	summary, err := e.Organize(context.Background(), f.RootDir)
	if err == nil || summary != nil {
		t.Fatalf("expected an error before any move, got %v, %+v", err, summary)
	}
	f.AssertFileExists(f.Path("a.txt"))
}

func TestOrganizeLedgerPersistFailure(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))
	e := newEngine(t, f)

	// A non-empty directory at the ledger path cannot be renamed over
	if err := os.MkdirAll(filepath.Join(e.LedgerPath(), "occupied"), 0755); err != nil {
		t.Fatal(err)
	}

	summary, err := e.Organize(context.Background(), f.RootDir)
	if !errors.Is(err, ErrLedgerPersist) {
		t.Fatalf("expected ErrLedgerPersist, got %v", err)
	}
	if summary == nil || summary.Moved != 1 {
		t.Fatalf("summary must still be returned: %+v", summary)
	}
	f.AssertFileExists(f.Path("Documents", "Text", "a.txt"))
}

func TestOrganizePublishesSummary(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))

	pr := progress.NewProgressReporter()
	ch := pr.Subscribe()
	defer pr.Unsubscribe(ch)

	e, err := New(Options{Config: config.GetDefault(), StateDir: f.StateDir, Progress: pr})
	if err != nil {
		t.Fatal(err)
	}
	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}

	timeout := time.After(2 * time.Second)
	for {
		select {
		case v := <-ch:
			if s, ok := v.(*RunSummary); ok {
				if s.Moved != 1 {
					t.Errorf("published summary Moved = %d", s.Moved)
				}
				return
			}
		case <-timeout:
			t.Fatal("no summary published")
		}
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := config.GetDefault()
	cfg.OthersCategory = "a/b"

	_, err := New(Options{Config: cfg, StateDir: t.TempDir()})
	var cfgErr *config.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Errorf("expected ConfigurationError, got %v", err)
	}
}

func TestPreview(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("Images/b.jpg", []byte("old"))
	f.CreateFiles(map[string]string{"a.txt": "a", "b.jpg": "new"})
	before := f.Snapshot()

	p, err := newEngine(t, f).Preview(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}

	got := map[string]string{}
	for _, a := range p.Actions {
		got[f.RelPath(a.Source)] = f.RelPath(a.Destination)
	}
	want := map[string]string{
		"a.txt": filepath.Join("Documents", "Text", "a.txt"),
		"b.jpg": filepath.Join("Images", "b (1).jpg"),
	}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("planned moves = %v, want %v", got, want)
	}
	if diff := testutil.DiffTrees(before, f.Snapshot()); diff != "" {
		t.Errorf("preview changed the tree: %s", diff)
	}
}

// =============================================================================
// Undo Tests
// =============================================================================

func TestOrganizeUndoRestoresTen(t *testing.T) {
	f := testutil.NewFixture(t)
	exts := []string{"txt", "jpg", "pdf", "mp3", "zip", "docx", "xyz", "png", "mp4", "csv"}
	for i, ext := range exts {
		f.CreateFile(fmt.Sprintf("file%d.%s", i, ext), []byte(fmt.Sprintf("content %d", i)))
	}
	before := f.Snapshot()
	e := newEngine(t, f)

	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Moved != 10 {
		t.Fatalf("Moved = %d, want 10", summary.Moved)
	}

	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatalf("UndoLast failed: %v", err)
	}
	if result.Restored != 10 || result.Failed != 0 || result.NothingToUndo {
		t.Errorf("unexpected undo result: %+v", result)
	}
	if diff := testutil.DiffTrees(before, f.Snapshot()); diff != "" {
		t.Errorf("tree differs after undo: %s", diff)
	}
	if got := len(f.Entries()); got != 10 {
		t.Errorf("expected only the 10 files at top level, got %v", f.Entries())
	}

	again, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatalf("second UndoLast failed: %v", err)
	}
	if !again.NothingToUndo || again.Restored != 0 || again.Failed != 0 {
		t.Errorf("second undo should report nothing to undo: %+v", again)
	}
}

func TestUndoKeepsPreexistingFolders(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("Images/old.png", []byte("old"))
	f.CreateFile("new.png", []byte("new"))
	e := newEngine(t, f)

	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if len(result.RemovedDirs) != 0 {
		t.Errorf("folder that existed before must stay: removed %v", result.RemovedDirs)
	}
	f.AssertFileExists(f.Path("Images", "old.png"))
	f.AssertFileExists(f.Path("new.png"))
}

func TestUndoOriginalOccupied(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("moved"))
	e := newEngine(t, f)

	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	f.CreateFile("a.txt", []byte("newcomer"))

	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}

	if result.Restored != 1 {
		t.Fatalf("Restored = %d", result.Restored)
	}
	f.AssertFileContent(f.Path("a.txt"), "newcomer")
	f.AssertFileContent(f.Path("a (1).txt"), "moved")
	if result.Renamed[f.Path("a.txt")] != f.Path("a (1).txt") {
		t.Errorf("Renamed = %v", result.Renamed)
	}
}

func TestUndoMissingFileCountsAsFailed(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.txt": "a", "b.jpg": "b"})
	e := newEngine(t, f)

	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(f.Path("Images", "b.jpg")); err != nil {
		t.Fatal(err)
	}

	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Restored != 1 || result.Failed != 1 {
		t.Errorf("Restored = %d, Failed = %d", result.Restored, result.Failed)
	}
	if result.Errors[0].Reason != fileops.ReasonNotFound {
		t.Errorf("reason = %v", result.Errors[0].Reason)
	}

	again, _ := e.UndoLast(context.Background())
	if !again.NothingToUndo {
		t.Error("partial undo must still clear the ledger")
	}
}

func TestUndoNothing(t *testing.T) {
	f := testutil.NewFixture(t)
	result, err := newEngine(t, f).UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.NothingToUndo {
		t.Error("expected nothing to undo")
	}
}

func TestUndoEmptyLedger(t *testing.T) {
	f := testutil.NewFixture(t)
	path := filepath.Join(f.StateDir, ledger.FileName)
	if err := os.WriteFile(path, []byte(`{"run_id":"r1","directory":"/d","records":[]}`), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := newEngine(t, f).UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.NothingToUndo {
		t.Error("expected nothing to undo")
	}
	f.AssertFileNotExists(path)
}

func TestUndoEmptyLedgerClearFailureIsLogged(t *testing.T) {
	testutil.SkipIfRoot(t)

	f := testutil.NewFixture(t)
	path := filepath.Join(f.StateDir, ledger.FileName)
	if err := os.WriteFile(path, []byte(`{"run_id":"r1","directory":"/d","records":[]}`), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path+".lock", nil, 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Chmod(f.StateDir, 0555); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chmod(f.StateDir, 0755) })

	var buf bytes.Buffer
	log, err := logger.New(logger.Options{Level: "warn", Console: &buf})
	if err != nil {
		t.Fatal(err)
	}
	e, err := New(Options{Config: config.GetDefault(), StateDir: f.StateDir, Logger: log})
	if err != nil {
		t.Fatal(err)
	}

	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if !result.NothingToUndo {
		t.Error("expected nothing to undo")
	}
	if !strings.Contains(buf.String(), "cannot clear empty undo ledger") {
		t.Errorf("expected a warning about the ledger, got %q", buf.String())
	}
	f.AssertFileExists(path)
}

func TestUndoCancelledKeepsRemainingRecords(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.txt": "a", "b.jpg": "b"})
	e := newEngine(t, f)

	if _, err := e.Organize(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.UndoLast(ctx); err == nil {
		t.Fatal("expected an error for a cancelled context")
	}

	result, err := e.UndoLast(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Restored != 2 {
		t.Errorf("records should survive a cancelled undo, restored %d", result.Restored)
	}
}

// =============================================================================
// Duplicate Tests
// =============================================================================

func TestFindAndDeleteDuplicates(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{
		"a.jpg": "same content",
		"b.jpg": "same content",
		"c.png": "same content",
		"d.txt": "different!!!",
	})
	e := newEngine(t, f)

	groups, err := e.FindDuplicates(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 || len(groups[0].Files) != 3 {
		t.Fatalf("unexpected groups: %+v", groups)
	}
	if groups[0].Keeper().Name != "a.jpg" {
		t.Errorf("keeper = %s", groups[0].Keeper().Name)
	}

	result, err := e.DeleteDuplicates(context.Background(), groups)
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 2 || len(result.Errors) != 0 {
		t.Errorf("Deleted = %d, errors %v", result.Deleted, result.Errors)
	}
	f.AssertFileExists(f.Path("a.jpg"))
	f.AssertFileNotExists(f.Path("b.jpg"))
	f.AssertFileNotExists(f.Path("c.png"))
	f.AssertFileExists(f.Path("d.txt"))
}

func TestDeleteDuplicatesRechecksSize(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.bin": "1234", "b.bin": "1234", "c.bin": "1234"})
	e := newEngine(t, f)

	groups, err := e.FindDuplicates(context.Background(), f.RootDir)
	if err != nil || len(groups) != 1 {
		t.Fatalf("groups = %v, err = %v", groups, err)
	}
	f.CreateFile("c.bin", []byte("grown since the scan"))

	result, err := e.DeleteDuplicates(context.Background(), groups)
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 1 || len(result.Errors) != 1 {
		t.Errorf("Deleted = %d, errors %v", result.Deleted, result.Errors)
	}
	f.AssertFileExists(f.Path("c.bin"))
}

func TestDeleteDuplicatesKeeperGone(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.bin": "xy", "b.bin": "xy"})
	e := newEngine(t, f)

	groups, err := e.FindDuplicates(context.Background(), f.RootDir)
	if err != nil || len(groups) != 1 {
		t.Fatalf("groups = %v, err = %v", groups, err)
	}
	os.Remove(f.Path("a.bin"))

	result, err := e.DeleteDuplicates(context.Background(), groups)
	if err != nil {
		t.Fatal(err)
	}
	if result.Deleted != 0 {
		t.Error("the last copy must never be deleted")
	}
	f.AssertFileExists(f.Path("b.bin"))
}

// =============================================================================
// Backup Tests
// =============================================================================

func TestBackupCopiesTopLevelFiles(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{
		"a.txt":          "notes",
		".hidden":        "dotfile",
		"Images/old.jpg": "nested",
	})
	e := newEngine(t, f)

	result, err := e.Backup(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if result.Directory != f.Path(BackupFolder) {
		t.Errorf("Directory = %s", result.Directory)
	}
	if result.Copied != 2 || result.Bytes != 12 || len(result.Errors) != 0 {
		t.Errorf("unexpected result: %+v", result)
	}

	f.AssertFileContent(f.Path(BackupFolder, "a.txt"), "notes")
	f.AssertFileContent(f.Path(BackupFolder, ".hidden"), "dotfile")
	f.AssertFileNotExists(f.Path(BackupFolder, "old.jpg"))
	f.AssertFileContent(f.Path("a.txt"), "notes")
	f.AssertFileContent(f.Path(".hidden"), "dotfile")
}

func TestBackupNeverOverwritesCopies(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("first"))
	e := newEngine(t, f)

	if _, err := e.Backup(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(f.Path("a.txt"), []byte("second"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := e.Backup(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	want := f.Path(BackupFolder, "a (1).txt")
	if result.Renamed[f.Path("a.txt")] != want {
		t.Errorf("Renamed = %v", result.Renamed)
	}
	f.AssertFileContent(f.Path(BackupFolder, "a.txt"), "first")
	f.AssertFileContent(want, "second")
}

func TestBackupFolderIsNotOrganized(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFiles(map[string]string{"a.jpg": "same", "b.txt": "text"})
	e := newEngine(t, f)

	if _, err := e.Backup(context.Background(), f.RootDir); err != nil {
		t.Fatal(err)
	}

	// The copies in _backup are neither scanned nor grouped with the originals
	groups, err := e.FindDuplicates(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 0 {
		t.Errorf("backup copies reported as duplicates: %+v", groups)
	}

	summary, err := e.Organize(context.Background(), f.RootDir)
	if err != nil {
		t.Fatal(err)
	}
	if summary.Moved != 2 || summary.DuplicateGroups != 0 {
		t.Errorf("unexpected summary: %+v", summary)
	}
	f.AssertFileContent(f.Path(BackupFolder, "a.jpg"), "same")
	f.AssertFileContent(f.Path(BackupFolder, "b.txt"), "text")
	if got := f.Entries(); fmt.Sprint(got) != "[Documents/ Images/ _backup/]" {
		t.Errorf("top level after organize = %v", got)
	}
}

func TestBackupRejectsInvalidTarget(t *testing.T) {
	f := testutil.NewFixture(t)
	e := newEngine(t, f)

	for _, dir := range []string{"relative", f.Path("missing"), "/etc"} {
		if _, err := e.Backup(context.Background(), dir); err == nil {
			t.Errorf("expected error for %s", dir)
		}
	}
}

func TestBackupCancelled(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := newEngine(t, f).Backup(ctx, f.RootDir); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	f.AssertFileNotExists(f.Path(BackupFolder))
}

// =============================================================================
// Scheduler Tests
// =============================================================================

func TestSchedulerLifecycle(t *testing.T) {
	f := testutil.NewFixture(t)
	f.CreateFile("a.txt", []byte("a"))
	e := newEngine(t, f)

	if err := e.StartScheduler(f.RootDir, 0); err == nil {
		t.Error("zero interval should be rejected")
	}
	if err := e.StartScheduler(f.RootDir, 60); err != nil {
		t.Fatalf("StartScheduler failed: %v", err)
	}
	if err := e.StartScheduler(f.RootDir, 60); !errors.Is(err, scheduler.ErrAlreadyRunning) {
		t.Errorf("second start = %v, want ErrAlreadyRunning", err)
	}

	if err := e.RunScheduledNow(); err != nil {
		t.Fatalf("scheduled pass failed: %v", err)
	}
	f.AssertFileExists(f.Path("Documents", "Text", "a.txt"))

	st := e.SchedulerStatus()
	if !st.Running || st.Interval != time.Hour || st.LastRun.IsZero() {
		t.Errorf("unexpected status: %+v", st)
	}

	<-e.StopScheduler().Done()
	if e.SchedulerStatus().Running {
		t.Error("scheduler should be stopped")
	}
}
